package cli

import (
	"context"

	"github.com/daniesso/chunkfault/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type HookFunc func(ctx context.Context, logger *zap.Logger, conf *config.Config, svc ServiceFactory, cmdConfigurator CmdConfigurator) *cobra.Command

// Registered holds the registered command hooks
var Registered map[string]HookFunc

func Register(name string, f HookFunc) {
	if Registered == nil {
		Registered = make(map[string]HookFunc)
	}
	Registered[name] = f
}
