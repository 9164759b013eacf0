package main

import (
	"fmt"
	"os"
	"time"

	"github.com/daniesso/chunkfault/cli"
	"github.com/daniesso/chunkfault/cli/provider"
	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/utils"
	"github.com/daniesso/chunkfault/utils/log"
	sentry "github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// version and dsn are injected during build by ldflags

var version string
var dsn string

func main() {
	setVersion()
	os.Exit(start())
}

func setVersion() {
	if version == "" {
		version = "0-dev"
	}
	utils.Version = version
}

func start() int {
	logger, err := log.New()
	if err != nil {
		fmt.Println("Failed to start the logger for the CLI", err)
		return 1
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Debug("failed to sync the logger", zap.Error(err))
		}
	}()

	if dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          version,
			TracesSampleRate: 1.0,
		}); err != nil {
			logger.Debug("Could not initialize sentry", zap.Error(err))
		}
	}
	defer utils.HandlePanic()
	defer sentry.Flush(2 * time.Second)

	ctx := utils.NewCtx()
	conf := config.New()
	svcProvider := provider.NewServiceProvider(logger, conf)
	cmdConfigurator := provider.NewCmdConfigurator(logger, conf)
	rootCmd := cli.Root(ctx, logger, conf, svcProvider, cmdConfigurator)
	if rootCmd == nil {
		return 1
	}
	if err := rootCmd.Execute(); err != nil {
		utils.LogError(logger, err, "failed to run chunkfault")
		return 1
	}
	return 0
}
