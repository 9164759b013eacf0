package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NewCtx returns a context that is cancelled on SIGINT or SIGTERM.
func NewCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	// os.Interrupt is more portable than syscall.SIGINT
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()

	return ctx
}
