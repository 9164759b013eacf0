// Package serve runs the well-formed and the truncated responder without any
// probing, so external clients can be pointed at them.
package serve

import (
	"context"
	"fmt"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/pkg/responder"
	"go.uber.org/zap"
)

type Serve struct {
	logger          *zap.Logger
	responderLogger *zap.Logger
	cfg             *config.Config
	// started is a test seam: it receives the bound group once both responders accept
	// connections, so tests can read the ephemeral URLs. Nil in production.
	started chan<- *responder.Group
}

func New(logger, responderLogger *zap.Logger, cfg *config.Config) *Serve {
	return &Serve{
		logger:          logger,
		responderLogger: responderLogger,
		cfg:             cfg,
	}
}

// Start blocks until ctx is cancelled or a responder fails.
func (s *Serve) Start(ctx context.Context) error {
	group := responder.NewGroup(s.responderLogger)
	if err := group.Bind(responder.OptionsFromConfig(s.cfg)...); err != nil {
		return err
	}
	if err := group.Start(ctx); err != nil {
		group.Close()
		return fmt.Errorf("failed to start responders: %w", err)
	}

	for _, r := range group.Responders() {
		s.logger.Info(fmt.Sprintf("%s responder ready", r.Name()), zap.String("url", r.URL()))
	}
	if s.started != nil {
		s.started <- group
	}

	<-group.Done()
	if err := group.Stop(); err != nil {
		return fmt.Errorf("responders failed: %w", err)
	}

	for _, r := range group.Responders() {
		st := r.Stats()
		s.logger.Info("responder stopped",
			zap.String("responder", r.Name()),
			zap.Int64("accepted", st.Accepted),
			zap.Int64("served", st.Served),
			zap.Int64("failed", st.Failed))
	}
	return nil
}
