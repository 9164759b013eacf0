// Package fault runs the fault injection sequence: probe the well-formed responder,
// stream the truncated body, then probe again to see whether the client recovered.
package fault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/pkg/responder"
	"github.com/daniesso/chunkfault/pkg/service/probe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Driver owns the responders for the length of one run.
type Driver struct {
	logger          *zap.Logger
	responderLogger *zap.Logger
	cfg             *config.Config
	prober          probe.Service
}

func New(logger, responderLogger *zap.Logger, cfg *config.Config, prober probe.Service) *Driver {
	return &Driver{
		logger:          logger,
		responderLogger: responderLogger,
		cfg:             cfg,
		prober:          prober,
	}
}

// Start binds and starts both responders, runs the probe sequence and stops the
// responders again. A bind failure or a responder dying mid-run aborts with an error.
func (d *Driver) Start(ctx context.Context) (*Report, error) {
	group := responder.NewGroup(d.responderLogger)
	if err := group.Bind(responder.OptionsFromConfig(d.cfg)...); err != nil {
		return nil, err
	}
	if err := group.Start(ctx); err != nil {
		group.Close()
		return nil, fmt.Errorf("failed to start responders: %w", err)
	}

	report, runErr := d.run(ctx, group)

	if err := group.Stop(); err != nil && runErr == nil {
		runErr = fmt.Errorf("responders failed: %w", err)
	}
	if report != nil {
		for _, r := range group.Responders() {
			s := r.Stats()
			report.Responders = append(report.Responders, ResponderRecord{
				Name:     r.Name(),
				Addr:     r.Addr().String(),
				Accepted: s.Accepted,
				Served:   s.Served,
				Failed:   s.Failed,
				Closed:   s.Closed,
			})
		}
		report.Duration = time.Since(report.StartedAt)
	}
	if runErr != nil {
		return nil, runErr
	}
	return report, nil
}

func (d *Driver) run(ctx context.Context, group *responder.Group) (*Report, error) {
	goodURL, err := group.URL(responder.GoodName)
	if err != nil {
		return nil, err
	}
	badURL, err := group.URL(responder.BadName)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		GoodURL:   goodURL,
		BadURL:    badURL,
	}
	logger := d.logger.With(zap.String("runId", report.RunID))

	if err := alive(ctx, group); err != nil {
		return report, err
	}
	report.Before = newProbeRecord("before", 0, d.prober.Check(ctx, goodURL))

	if err := alive(ctx, group); err != nil {
		return report, err
	}
	stream := d.prober.Stream(ctx, badURL)
	report.Stream = newStreamRecord(badURL, stream)
	report.FaultReproduced = stream.Class == probe.ClassUnexpectedEOF
	if !report.FaultReproduced {
		logger.Warn("the truncated stream did not end in a short read",
			zap.String("class", string(stream.Class)),
			zap.Int("bytes", len(stream.Body)))
	}

	for i := 1; i <= d.cfg.Probe.Attempts; i++ {
		if err := alive(ctx, group); err != nil {
			return report, err
		}
		report.After = append(report.After, newProbeRecord("after", i, d.prober.Check(ctx, goodURL)))
	}

	report.Verdict = Judge(report.After)
	logger.Info("fault injection finished",
		zap.Bool("faultReproduced", report.FaultReproduced),
		zap.String("verdict", string(report.Verdict)))
	return report, nil
}

// alive fails once the caller cancelled or a responder stopped on its own.
func alive(ctx context.Context, group *responder.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-group.Done():
		err := group.Wait()
		if err == nil {
			err = errors.New("responders stopped unexpectedly")
		}
		return fmt.Errorf("responders stopped during the run: %w", err)
	default:
		return nil
	}
}
