package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/daniesso/chunkfault/utils"
	"go.uber.org/zap"
)

const defaultReadBufferSize = 4096

type Options struct {
	// Timeout bounds every request including its body. Zero means no bound.
	Timeout time.Duration
	// ReadBufferSize is the block size of incremental body reads.
	ReadBufferSize int
}

type Result struct {
	Healthy    bool
	StatusCode int
	Err        error
	Class      ErrorClass
	Elapsed    time.Duration
}

type StreamResult struct {
	StatusCode int
	Body       []byte
	Blocks     int
	Err        error
	Class      ErrorClass
	Elapsed    time.Duration
}

type Probe struct {
	logger *zap.Logger
	client *http.Client
	opts   Options
}

// NewHTTPClient builds the client shared by every probe of a run. Sharing it is
// what exposes connection pool state carried over from the truncated stream.
func NewHTTPClient(disableKeepAlives bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = disableKeepAlives
	return &http.Client{Transport: transport}
}

func New(logger *zap.Logger, client *http.Client, opts Options) *Probe {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}
	return &Probe{
		logger: logger,
		client: client,
		opts:   opts,
	}
}

func (p *Probe) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(ctx, p.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// Check issues a GET and reports healthy iff a 200 arrives and its body reads to the end.
// Transport errors end up in the Result, they are never returned.
func (p *Probe) Check(ctx context.Context, url string) Result {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := Result{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to build health request: %w", err)
		res.Class = ClassOther
		return p.logResult(url, res, start)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		res.Class = Classify(err)
		return p.logResult(url, res, start)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("failed to close health response body", zap.Error(cerr))
		}
	}()

	res.StatusCode = resp.StatusCode
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		res.Err = fmt.Errorf("failed to read health response body: %w", err)
		res.Class = Classify(err)
		return p.logResult(url, res, start)
	}

	res.Healthy = resp.StatusCode == http.StatusOK
	res.Class = ClassNone
	return p.logResult(url, res, start)
}

func (p *Probe) Healthy(ctx context.Context, url string) bool {
	return p.Check(ctx, url).Healthy
}

// Stream issues a GET and reads the body block by block until EOF or an error.
func (p *Probe) Stream(ctx context.Context, url string) StreamResult {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := StreamResult{Class: ClassNone}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to build stream request: %w", err)
		res.Class = ClassOther
		res.Elapsed = time.Since(start)
		return res
	}

	p.logger.Info("making streaming request", zap.String("url", url))
	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		res.Class = Classify(err)
		res.Elapsed = time.Since(start)
		utils.LogError(p.logger, err, "streaming request failed", zap.String("url", url), zap.String("class", string(res.Class)))
		return res
	}
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode

	p.logger.Info("reading response...", zap.Int("status", resp.StatusCode), zap.Strings("transferEncoding", resp.TransferEncoding))
	buf := make([]byte, p.opts.ReadBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			res.Body = append(res.Body, buf[:n]...)
			res.Blocks++
			p.logger.Debug("read body block", zap.Int("bytes", n), zap.Int("total", len(res.Body)))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Err = err
			res.Class = Classify(err)
			break
		}
	}
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		p.logger.Warn("stream ended before the body was complete",
			zap.Int("bytes", len(res.Body)),
			zap.String("class", string(res.Class)),
			zap.Error(res.Err))
		return res
	}
	p.logger.Info("response", zap.Int("status", res.StatusCode), zap.String("body", string(res.Body)))
	return res
}

func (p *Probe) logResult(url string, res Result, start time.Time) Result {
	res.Elapsed = time.Since(start)
	if res.Err != nil {
		p.logger.Info("is http client healthy? false",
			zap.String("url", url),
			zap.String("class", string(res.Class)),
			zap.Error(res.Err))
		return res
	}
	p.logger.Info(fmt.Sprintf("is http client healthy? %v", res.Healthy),
		zap.String("url", url),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", res.Elapsed))
	return res
}
