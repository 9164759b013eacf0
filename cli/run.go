package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/daniesso/chunkfault/config"
	faultSvc "github.com/daniesso/chunkfault/pkg/service/fault"
	"github.com/daniesso/chunkfault/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	Register("run", Run)
}

func Run(ctx context.Context, logger *zap.Logger, cfg *config.Config, serviceFactory ServiceFactory, cmdConfigurator CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "run",
		Short: "Probe a client against a well-formed and a truncated chunked response",
		Long: `Start the well-formed and the truncated responder, probe the well-formed one,
stream the truncated body and probe the well-formed one again. The report shows
whether the HTTP client recovered from the short read.`,
		Example: `chunkfault run --graceDelay 1s --attempts 3 --reportPath ./chunkfault-report.yaml`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmdConfigurator.ValidateFlags(ctx, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// main logs every returned error
			svc, err := serviceFactory.GetService(ctx, cmd.Name())
			if err != nil {
				return fmt.Errorf("failed to get service %q: %w", cmd.Name(), err)
			}
			var driver faultSvc.Service
			var ok bool
			if driver, ok = svc.(faultSvc.Service); !ok {
				return errors.New("service doesn't satisfy fault service interface")
			}

			report, err := driver.Start(ctx)
			if err != nil {
				return err
			}

			if err := report.Render(cmd.OutOrStdout(), cfg.DisableANSI); err != nil {
				utils.LogError(logger, err, "failed to render the report")
			}
			if cfg.Report.Path != "" {
				if err := report.WriteYAML(cfg.Report.Path); err != nil {
					return fmt.Errorf("failed to write the report to %s: %w", cfg.Report.Path, err)
				}
				logger.Info("report written", zap.String("path", cfg.Report.Path))
			}
			return nil
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add run flags")
		return nil
	}
	return cmd
}
