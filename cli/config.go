package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/daniesso/chunkfault/config"
	generateConfigSvc "github.com/daniesso/chunkfault/pkg/service/generateConfig"
	"github.com/daniesso/chunkfault/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	Register("config", Config)
}

func Config(ctx context.Context, logger *zap.Logger, _ *config.Config, serviceFactory ServiceFactory, cmdConfigurator CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "config",
		Short:   "manage chunkfault configuration file",
		Example: "chunkfault config --generate --path /path/to/localdir",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmdConfigurator.ValidateFlags(ctx, cmd); err != nil {
				utils.LogError(logger, err, "failed to validate flags")
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			isGenerate, err := cmd.Flags().GetBool("generate")
			if err != nil {
				utils.LogError(logger, err, "failed to get generate flag")
				return err
			}
			if !isGenerate {
				return errors.New("only generate flag is supported in the config command")
			}

			path, err := cmd.Flags().GetString("path")
			if err != nil {
				utils.LogError(logger, err, "failed to get path flag")
				return err
			}
			filePath := filepath.Join(path, "chunkfault.yml")
			if utils.CheckFileExists(filePath) {
				force, err := cmd.Flags().GetBool("force")
				if err != nil {
					utils.LogError(logger, err, "failed to get force flag")
					return err
				}
				if !force {
					logger.Info("config file already exists, pass --force to override it", zap.String("path", filePath))
					return nil
				}
			}

			// main logs every returned error
			svc, err := serviceFactory.GetService(ctx, cmd.Name())
			if err != nil {
				return fmt.Errorf("failed to get service %q: %w", cmd.Name(), err)
			}
			var generator generateConfigSvc.GeneratorConfig
			var ok bool
			if generator, ok = svc.(generateConfigSvc.GeneratorConfig); !ok {
				return errors.New("service doesn't satisfy config generator interface")
			}
			if err := generator.GenerateConfig(ctx, filePath, ""); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			return nil
		},
	}
	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add flags")
		return nil
	}
	return cmd
}
