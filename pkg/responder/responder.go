// Package responder serves canned HTTP/1.1 responses over raw TCP, closing every
// connection a fixed grace period after the response is written.
package responder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daniesso/chunkfault/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// maxRequestBytes caps how much of a request is buffered before the response is sent anyway.
const maxRequestBytes = 64 << 10

// State is the lifecycle position of an accepted connection.
type State int

const (
	StateReadingRequest State = iota
	StateWritingResponse
	StateDrainingDelay
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReadingRequest:
		return "reading-request"
	case StateWritingResponse:
		return "writing-response"
	case StateDrainingDelay:
		return "draining-delay"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	Name     string
	Host     string
	Port     uint32
	Template Template
	// GraceDelay is how long a connection is held open after the response is written.
	GraceDelay time.Duration
	// ReadTimeout bounds the request read. Zero waits forever.
	ReadTimeout time.Duration
	// MaxConns caps concurrently handled connections. Zero means no cap.
	MaxConns int
}

// Stats are cumulative connection counters of one responder.
type Stats struct {
	Accepted int64
	Served   int64
	Failed   int64
	Closed   int64
}

type Responder struct {
	logger   *zap.Logger
	opts     Options
	listener net.Listener
	wg       sync.WaitGroup

	accepted atomic.Int64
	served   atomic.Int64
	failed   atomic.Int64
	closed   atomic.Int64
}

// New binds the listening socket right away. A failure is returned as *BindError.
func New(logger *zap.Logger, opts Options) (*Responder, error) {
	if opts.Name == "" {
		opts.Name = opts.Template.Name()
	}
	addr := net.JoinHostPort(opts.Host, strconv.FormatUint(uint64(opts.Port), 10))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, NewBindError(opts.Name+" responder", addr, opts.Port, err)
	}
	if opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConns)
	}

	r := &Responder{
		logger:   logger.With(zap.String("responder", opts.Name)),
		opts:     opts,
		listener: ln,
	}
	r.logger.Info("started TCP responder",
		zap.String("addr", ln.Addr().String()),
		zap.String("template", opts.Template.Name()),
		zap.Duration("graceDelay", opts.GraceDelay),
		zap.Int("maxConns", opts.MaxConns))
	return r, nil
}

func (r *Responder) Name() string {
	return r.opts.Name
}

// Addr is the bound address, useful when Options.Port was 0.
func (r *Responder) Addr() net.Addr {
	return r.listener.Addr()
}

// URL is the http URL a client uses to reach this responder.
func (r *Responder) URL() string {
	return "http://" + r.listener.Addr().String() + "/"
}

func (r *Responder) Stats() Stats {
	return Stats{
		Accepted: r.accepted.Load(),
		Served:   r.served.Load(),
		Failed:   r.failed.Load(),
		Closed:   r.closed.Load(),
	}
}

// Close releases the listening socket. Run closes it on its own when its context ends.
func (r *Responder) Close() error {
	err := r.listener.Close()
	if utils.IsClosedConnErr(err) {
		return nil
	}
	return err
}

// Run accepts connections until ctx is cancelled and hands each one to its own goroutine.
// It returns nil once ctx is done and every connection has been closed. Any other accept
// failure ends this responder and is returned.
func (r *Responder) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = r.listener.Close()
	})
	defer func() {
		stop()
		_ = r.listener.Close()
		r.wg.Wait()
	}()

	r.logger.Info("listening...")
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Debug("stopping accept loop", zap.Error(ctx.Err()))
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%s responder stopped accepting on %s: %w", r.opts.Name, r.listener.Addr(), err)
		}

		r.accepted.Add(1)
		r.wg.Add(1)
		go func(c net.Conn) {
			defer r.wg.Done()
			r.handle(c)
		}(conn)
	}
}

// handle runs read, write, delay and close strictly in that order. Errors and
// panics never skip the delay or the close.
func (r *Responder) handle(conn net.Conn) {
	connID := uuid.NewString()
	logger := r.logger.With(zap.String("conn", connID), zap.String("peer", conn.RemoteAddr().String()))

	state := StateReadingRequest
	defer r.linger(logger, conn, &state)
	defer utils.Recover(logger, "responder connection", func(any) {
		r.failed.Add(1)
	})

	logger.Debug("accepted connection", zap.Stringer("state", state))
	lines, err := readRequest(conn, r.opts.ReadTimeout)
	if err != nil {
		r.failed.Add(1)
		utils.LogError(logger, &ConnError{Responder: r.opts.Name, ConnID: connID, State: state, Err: err}, "failed to read the request")
		return
	}
	requestLine := ""
	if len(lines) > 0 {
		requestLine = lines[0]
	}
	logger.Info("received request", zap.String("requestLine", requestLine), zap.Int("lines", len(lines)))
	logger.Debug("request lines", zap.String("request", strings.Join(lines, "\n")))

	state = StateWritingResponse
	n, err := conn.Write(r.opts.Template.Bytes())
	if err != nil {
		r.failed.Add(1)
		utils.LogError(logger, &ConnError{Responder: r.opts.Name, ConnID: connID, State: state, Err: err}, "failed to write the response", zap.Int("written", n))
		return
	}
	r.served.Add(1)
	logger.Info("responded", zap.String("template", r.opts.Template.Name()), zap.Int("bytes", n))
}

// linger waits the grace delay so the peer starts reading, then closes the socket
// whether or not the peer consumed everything. Input arriving meanwhile is discarded
// so the close ends the stream with a FIN rather than a reset.
func (r *Responder) linger(logger *zap.Logger, conn net.Conn, state *State) {
	*state = StateDrainingDelay
	logger.Debug("holding connection open", zap.Stringer("state", *state), zap.Duration("graceDelay", r.opts.GraceDelay))

	deadline := time.Now().Add(r.opts.GraceDelay)
	if err := conn.SetReadDeadline(deadline); err == nil {
		if n, _ := io.Copy(io.Discard, conn); n > 0 {
			logger.Debug("discarded unread input", zap.Int64("bytes", n))
		}
	}
	if wait := time.Until(deadline); wait > 0 {
		time.Sleep(wait)
	}

	*state = StateClosed
	if err := conn.Close(); err != nil && !utils.IsClosedConnErr(err) {
		utils.LogError(logger, err, "failed to close the connection")
	}
	r.closed.Add(1)
	logger.Debug("closed connection", zap.Stringer("state", *state))
}

// readRequest collects lines up to and including the first empty one. EOF ends the
// request without an error, as does reaching maxRequestBytes.
func readRequest(conn net.Conn, timeout time.Duration) ([]string, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}

	reader := bufio.NewReader(io.LimitReader(conn, maxRequestBytes))
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					lines = append(lines, line)
				}
				return lines, nil
			}
			return lines, err
		}
		lines = append(lines, line)
		if line == "" {
			return lines, nil
		}
	}
}
