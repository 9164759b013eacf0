package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/daniesso/chunkfault/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group supervises a set of responders. Every responder is bound before any
// accept loop starts, and the first accept loop to fail stops the others.
type Group struct {
	logger     *zap.Logger
	responders []*Responder
	byName     map[string]*Responder

	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func NewGroup(logger *zap.Logger) *Group {
	return &Group{
		logger: logger,
		byName: make(map[string]*Responder),
	}
}

// Bind creates all responders. On failure the ones already bound are closed and
// the *BindError of the failing one is returned.
func (g *Group) Bind(opts ...Options) error {
	for _, o := range opts {
		if o.Name == "" {
			o.Name = o.Template.Name()
		}
		if _, ok := g.byName[o.Name]; ok {
			g.release()
			return fmt.Errorf("responder %q is configured twice", o.Name)
		}
		r, err := New(g.logger, o)
		if err != nil {
			g.release()
			return err
		}
		g.responders = append(g.responders, r)
		g.byName[o.Name] = r
	}
	return nil
}

// Start launches one accept loop per bound responder.
func (g *Group) Start(ctx context.Context) error {
	if len(g.responders) == 0 {
		return errors.New("no responders bound")
	}
	if g.eg != nil {
		return errors.New("responder group already started")
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.eg, g.ctx = errgroup.WithContext(ctx)
	for _, r := range g.responders {
		g.eg.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%s responder panicked: %v", r.Name(), p)
				}
			}()
			if err := r.Run(g.ctx); err != nil {
				utils.LogError(g.logger, err, "responder terminated", zap.String("responder", r.Name()))
				return err
			}
			return nil
		})
	}
	return nil
}

// Done is closed once the group stops, either via Stop or because a responder failed.
func (g *Group) Done() <-chan struct{} {
	if g.ctx == nil {
		return nil
	}
	return g.ctx.Done()
}

// Wait blocks until every accept loop has returned and reports the first failure.
func (g *Group) Wait() error {
	if g.eg == nil {
		return nil
	}
	return g.eg.Wait()
}

// Stop cancels every accept loop and waits for their connections to close.
func (g *Group) Stop() error {
	if g.cancel != nil {
		g.cancel()
	}
	err := g.Wait()
	g.Close()
	return err
}

// Close releases listeners of responders whose loop never started.
func (g *Group) Close() {
	for _, r := range g.responders {
		if err := r.Close(); err != nil {
			utils.LogError(g.logger, err, "failed to close responder", zap.String("responder", r.Name()))
		}
	}
}

func (g *Group) release() {
	g.Close()
	g.responders = nil
	g.byName = make(map[string]*Responder)
}

func (g *Group) Responder(name string) (*Responder, bool) {
	r, ok := g.byName[name]
	return r, ok
}

func (g *Group) Responders() []*Responder {
	return g.responders
}

func (g *Group) URL(name string) (string, error) {
	r, ok := g.byName[name]
	if !ok {
		return "", fmt.Errorf("no responder named %q", name)
	}
	return r.URL(), nil
}
