package provider

import (
	"context"
	"fmt"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/pkg/service/fault"
	"github.com/daniesso/chunkfault/pkg/service/generateConfig"
	"github.com/daniesso/chunkfault/pkg/service/probe"
	"github.com/daniesso/chunkfault/pkg/service/serve"
	"github.com/daniesso/chunkfault/utils/log"
	"go.uber.org/zap"
)

type ServiceProvider struct {
	logger *zap.Logger
	cfg    *config.Config
}

func NewServiceProvider(logger *zap.Logger, cfg *config.Config) *ServiceProvider {
	return &ServiceProvider{
		logger: logger,
		cfg:    cfg,
	}
}

func (n *ServiceProvider) GetService(_ context.Context, cmd string) (interface{}, error) {
	loggers := log.NewModuleLoggerFactory(n.logger, n.cfg.Debug, n.cfg.DebugModules)

	switch cmd {
	case "run":
		p := probe.New(loggers.GetLogger(log.ModuleProbe), probe.NewHTTPClient(n.cfg.Probe.DisableKeepAlives), probe.Options{
			Timeout:        n.cfg.Probe.Timeout,
			ReadBufferSize: n.cfg.Probe.ReadBufferSize,
		})
		return fault.New(loggers.GetLogger(log.ModuleDriver), loggers.GetLogger(log.ModuleResponder), n.cfg, p), nil
	case "serve":
		return serve.New(loggers.GetLogger(log.ModuleServe), loggers.GetLogger(log.ModuleResponder), n.cfg), nil
	case "config":
		return generateConfig.NewGeneratorConfig(n.logger), nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}
