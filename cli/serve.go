package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/daniesso/chunkfault/config"
	serveSvc "github.com/daniesso/chunkfault/pkg/service/serve"
	"github.com/daniesso/chunkfault/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	Register("serve", Serve)
}

func Serve(ctx context.Context, logger *zap.Logger, _ *config.Config, serviceFactory ServiceFactory, cmdConfigurator CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "Start only the well-formed and the truncated responder",
		Long: `Start the well-formed and the truncated responder and keep them running until interrupted.
Point any HTTP client at them to observe how it handles a truncated chunked body.

Example usage:
  # Serve on the default ports 10001 and 10002
  chunkfault serve

  # Serve on custom ports and hold connections open for two seconds
  chunkfault serve --goodPort 8001 --badPort 8002 --graceDelay 2s
`,
		Example: `chunkfault serve --goodPort 8001 --badPort 8002`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmdConfigurator.ValidateFlags(ctx, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// main logs every returned error
			svc, err := serviceFactory.GetService(ctx, cmd.Name())
			if err != nil {
				return fmt.Errorf("failed to get service %q: %w", cmd.Name(), err)
			}
			var serve serveSvc.Service
			var ok bool
			if serve, ok = svc.(serveSvc.Service); !ok {
				return errors.New("service doesn't satisfy serve service interface")
			}

			return serve.Start(ctx)
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add serve flags")
		return nil
	}
	return cmd
}
