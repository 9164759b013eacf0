package cli

import (
	"context"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootExamples = `
  Run the fault injection sequence:
	chunkfault run --goodPort 10001 --badPort 10002

  Only serve the two responders:
	chunkfault serve --graceDelay 2s

  Generate-Config:
	chunkfault config --generate --path /path/to/localdir
`

// Root builds the chunkfault command. conf must be the config the configurator and the
// service factory were built with.
func Root(ctx context.Context, logger *zap.Logger, conf *config.Config, svcFactory ServiceFactory, cmdConfigurator CmdConfigurator) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "chunkfault",
		Short:         "Reproduce truncated chunked responses against an HTTP client",
		Example:       rootExamples,
		Version:       utils.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(`{{with .Version}}{{printf "chunkfault %s" .}}{{end}}{{"\n"}}`)

	if err := cmdConfigurator.AddFlags(rootCmd); err != nil {
		utils.LogError(logger, err, "failed to set flags")
		return nil
	}

	for _, hook := range Registered {
		c := hook(ctx, logger, conf, svcFactory, cmdConfigurator)
		if c == nil {
			continue
		}
		rootCmd.AddCommand(c)
	}
	return rootCmd
}
