package responder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testRequest = "GET / HTTP/1.1\r\nHost: x\r\n\r\n"

// startResponder binds on an ephemeral loopback port and runs the accept loop until the test ends.
func startResponder(t *testing.T, opts Options) *Responder {
	t.Helper()
	opts.Host = "127.0.0.1"
	opts.Port = 0

	r, err := New(zaptest.NewLogger(t), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("responder did not stop")
		}
	})
	return r
}

// rawExchange sends request (if any) and reads until the responder closes the socket.
func rawExchange(addr net.Addr, request string) ([]byte, time.Duration, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	if request != "" {
		if _, err := conn.Write([]byte(request)); err != nil {
			return nil, 0, err
		}
	}
	got, err := io.ReadAll(conn)
	return got, time.Since(start), err
}

func exchange(t *testing.T, addr net.Addr, request string) ([]byte, time.Duration) {
	t.Helper()
	got, elapsed, err := rawExchange(addr, request)
	require.NoError(t, err)
	return got, elapsed
}

func TestResponder_WritesTemplateVerbatim(t *testing.T) {
	requests := map[string]string{
		"http request":       testRequest,
		"lf only lines":      "GET /x HTTP/1.0\nHost: y\n\n",
		"garbage then blank": "\x00\x01 not http at all\r\n\r\n",
		"blank line only":    "\r\n",
	}

	for _, tpl := range []Template{WellFormed, Truncated} {
		r := startResponder(t, Options{Template: tpl, GraceDelay: 20 * time.Millisecond})
		for name, req := range requests {
			t.Run(tpl.Name()+"/"+name, func(t *testing.T) {
				got, _ := exchange(t, r.Addr(), req)
				assert.Equal(t, tpl.Bytes(), got)
			})
		}
	}
}

func TestResponder_PeerHalfClosesWithoutTerminator(t *testing.T) {
	r := startResponder(t, Options{Template: WellFormed, GraceDelay: 20 * time.Millisecond})

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x"))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, WellFormed.Bytes(), got)
}

func TestResponder_WellFormedEndToEnd(t *testing.T) {
	grace := 200 * time.Millisecond
	r := startResponder(t, Options{Template: WellFormed, GraceDelay: grace})

	got, elapsed := exchange(t, r.Addr(), testRequest)
	assert.Equal(t, string(WellFormed), string(got))
	assert.GreaterOrEqual(t, elapsed, grace)

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(got)), nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestResponder_TruncatedEndToEnd(t *testing.T) {
	grace := 100 * time.Millisecond
	r := startResponder(t, Options{Template: Truncated, GraceDelay: grace})

	got, elapsed := exchange(t, r.Addr(), testRequest)
	assert.Equal(t, string(Truncated), string(got))
	assert.GreaterOrEqual(t, elapsed, grace)

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(got)), nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	assert.Equal(t, "helloh", string(body))
}

func TestResponder_SilentPeerIsClosedAfterReadTimeout(t *testing.T) {
	readTimeout := 100 * time.Millisecond
	grace := 50 * time.Millisecond
	r := startResponder(t, Options{Template: WellFormed, GraceDelay: grace, ReadTimeout: readTimeout})

	got, elapsed := exchange(t, r.Addr(), "")
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, elapsed, readTimeout+grace-10*time.Millisecond)

	assert.Eventually(t, func() bool {
		s := r.Stats()
		return s.Accepted == 1 && s.Failed == 1 && s.Served == 0 && s.Closed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResponder_ConcurrentConnectionsGetIndependentCopies(t *testing.T) {
	const n = 25
	r := startResponder(t, Options{Template: Truncated, GraceDelay: 100 * time.Millisecond})

	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = rawExchange(r.Addr(), testRequest)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		require.NoError(t, errs[i], "connection %d", i)
		assert.Equal(t, Truncated.Bytes(), got, "connection %d", i)
	}
	assert.Eventually(t, func() bool {
		s := r.Stats()
		return s.Accepted == n && s.Served == n && s.Closed == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResponder_MaxConnsGatesAcceptance(t *testing.T) {
	grace := 200 * time.Millisecond
	r := startResponder(t, Options{Template: WellFormed, GraceDelay: grace, MaxConns: 1})

	var wg sync.WaitGroup
	elapsed := make([]time.Duration, 2)
	results := make([][]byte, 2)
	errs := make([]error, 2)
	for i := range elapsed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], elapsed[i], errs[i] = rawExchange(r.Addr(), testRequest)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, WellFormed.Bytes(), results[i])
	}

	slowest := elapsed[0]
	if elapsed[1] > slowest {
		slowest = elapsed[1]
	}
	assert.GreaterOrEqual(t, slowest, 2*grace-20*time.Millisecond)
}

func TestResponder_RunReturnsOnCancel(t *testing.T) {
	r, err := New(zaptest.NewLogger(t), Options{Host: "127.0.0.1", Template: WellFormed, GraceDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	got, _ := exchange(t, r.Addr(), testRequest)
	assert.Equal(t, WellFormed.Bytes(), got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = net.DialTimeout("tcp", r.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestResponder_RunWaitsForInFlightConnections(t *testing.T) {
	grace := 200 * time.Millisecond
	r, err := New(zaptest.NewLogger(t), Options{Host: "127.0.0.1", Template: WellFormed, GraceDelay: grace})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(testRequest))
	require.NoError(t, err)

	buf := make([]byte, len(WellFormed))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)

	start := time.Now()
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), r.Stats().Closed)
	assert.Less(t, time.Since(start), grace+time.Second)
}

func TestResponder_AcceptFailureIsReturned(t *testing.T) {
	r, err := New(zaptest.NewLogger(t), Options{Host: "127.0.0.1", Template: WellFormed})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	require.NoError(t, r.Close())
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, net.ErrClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the listener was closed")
	}
}

func TestNew_BindErrors(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	takenPort := uint32(taken.Addr().(*net.TCPAddr).Port)

	tests := []struct {
		name string
		host string
		port uint32
		code BindErrorCode
	}{
		{name: "port in use", host: "127.0.0.1", port: takenPort, code: ErrCodePortInUse},
		{name: "port out of range", host: "127.0.0.1", port: 70000, code: ErrCodeInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(zaptest.NewLogger(t), Options{Name: "good", Host: tt.host, Port: tt.port, Template: WellFormed})
			require.Error(t, err)
			assert.Nil(t, r)

			var bindErr *BindError
			require.True(t, errors.As(err, &bindErr))
			assert.Equal(t, tt.code, bindErr.Code)
			assert.Equal(t, tt.port, bindErr.Port)
			assert.Equal(t, "good responder", bindErr.Component)
			assert.NotEmpty(t, bindErr.Solutions)
		})
	}
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "crlf request", input: testRequest + "ignored body", want: []string{"GET / HTTP/1.1", "Host: x", ""}},
		{name: "lf request", input: "a\nb\n\nc\n", want: []string{"a", "b", ""}},
		{name: "eof before terminator", input: "a\r\npartial", want: []string{"a", "partial"}},
		{name: "nothing sent", input: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			go func() {
				if tt.input != "" {
					_, _ = client.Write([]byte(tt.input))
				}
				_ = client.Close()
			}()
			got, err := readRequest(server, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			_ = server.Close()
		})
	}
}

func TestReadRequest_TimeoutIsAnError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_, err := readRequest(server, 50*time.Millisecond)
	require.Error(t, err)
	var ne net.Error
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "reading-request", StateReadingRequest.String())
	assert.Equal(t, "writing-response", StateWritingResponse.String())
	assert.Equal(t, "draining-delay", StateDrainingDelay.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

// brokenWriteConn fails or panics on Write and records whether it was closed.
type brokenWriteConn struct {
	net.Conn
	panics bool
	closed atomic.Bool
}

func (c *brokenWriteConn) Write([]byte) (int, error) {
	if c.panics {
		panic("write exploded")
	}
	return 0, errors.New("broken pipe")
}

func (c *brokenWriteConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func TestHandle_WriteFailureStillDelaysAndCloses(t *testing.T) {
	grace := 50 * time.Millisecond
	tests := []struct {
		name   string
		panics bool
	}{
		{name: "write error", panics: false},
		{name: "write panic", panics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Responder{
				logger: zaptest.NewLogger(t),
				opts:   Options{Name: "good", Template: WellFormed, GraceDelay: grace, ReadTimeout: time.Second},
			}
			client, server := net.Pipe()
			defer client.Close()
			conn := &brokenWriteConn{Conn: server, panics: tt.panics}

			go func() { _, _ = client.Write([]byte(testRequest)) }()

			start := time.Now()
			require.NotPanics(t, func() { r.handle(conn) })
			elapsed := time.Since(start)

			assert.True(t, conn.closed.Load())
			assert.GreaterOrEqual(t, elapsed, grace)
			assert.Equal(t, Stats{Failed: 1, Closed: 1}, r.Stats())

			_, err := client.Read(make([]byte, 1))
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestResponder_OversizedRequestEndsWithCleanEOF(t *testing.T) {
	r := startResponder(t, Options{Template: WellFormed, GraceDelay: 200 * time.Millisecond, ReadTimeout: 2 * time.Second})

	request := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 200<<10) + "\r\n\r\n"
	got, _, err := rawExchange(r.Addr(), request)
	require.NoError(t, err)
	assert.Equal(t, WellFormed.Bytes(), got)

	assert.Eventually(t, func() bool {
		s := r.Stats()
		return s.Served == 1 && s.Closed == 1
	}, 2*time.Second, 10*time.Millisecond)
}
