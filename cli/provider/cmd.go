package provider

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/utils"
	"github.com/daniesso/chunkfault/utils/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// flagKeys maps flag names onto their config keys where the two differ.
var flagKeys = map[string]string{
	"graceDelay":        "responder.graceDelay",
	"readTimeout":       "responder.readTimeout",
	"maxConns":          "responder.maxConns",
	"attempts":          "probe.attempts",
	"timeout":           "probe.timeout",
	"readBufferSize":    "probe.readBufferSize",
	"disableKeepAlives": "probe.disableKeepAlives",
	"reportPath":        "report.path",
}

type CmdConfigurator struct {
	logger *zap.Logger
	cfg    *config.Config
}

func NewCmdConfigurator(logger *zap.Logger, cfg *config.Config) *CmdConfigurator {
	return &CmdConfigurator{
		logger: logger,
		cfg:    cfg,
	}
}

func (c *CmdConfigurator) AddFlags(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "chunkfault":
		cmd.PersistentFlags().Bool("debug", c.cfg.Debug, "Run in debug mode")
		cmd.PersistentFlags().StringSlice("debugModules", c.cfg.DebugModules, "Modules to log at debug level e.g. --debugModules responder,probe")
		cmd.PersistentFlags().Bool("disableANSI", c.cfg.DisableANSI, "Disable ANSI colours in logs and reports")
		cmd.PersistentFlags().String("configPath", c.cfg.ConfigPath, "Path to the local directory where chunkfault configuration file is stored")
		cmd.PersistentFlags().SetNormalizeFunc(aliasNormalizeFunc)
		if err := viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug")); err != nil {
			errMsg := "failed to bind flag to config"
			utils.LogError(c.logger, err, errMsg)
			return errors.New(errMsg)
		}
	case "config":
		cmd.Flags().StringP("path", "p", ".", "Path to local directory where generated config is stored")
		cmd.Flags().Bool("generate", false, "Generate a new chunkfault configuration file")
		cmd.Flags().Bool("force", false, "Override an existing configuration file")
	case "run", "serve":
		cmd.Flags().String("host", c.cfg.Host, "Address the responders listen on")
		cmd.Flags().Uint32("goodPort", c.cfg.GoodPort, "Port of the responder sending a well-formed chunked response")
		cmd.Flags().Uint32("badPort", c.cfg.BadPort, "Port of the responder sending a truncated chunked response")
		cmd.Flags().Duration("graceDelay", c.cfg.Responder.GraceDelay, "How long a connection stays open after the response is written")
		cmd.Flags().Duration("readTimeout", c.cfg.Responder.ReadTimeout, "Upper bound for reading a request, 0 disables it")
		cmd.Flags().Int("maxConns", c.cfg.Responder.MaxConns, "Concurrently handled connections per responder, 0 means unbounded")
		if cmd.Name() == "run" {
			cmd.Flags().IntP("attempts", "a", c.cfg.Probe.Attempts, "Health probes to issue after the truncated stream")
			cmd.Flags().Duration("timeout", c.cfg.Probe.Timeout, "Timeout of each probe request")
			cmd.Flags().Int("readBufferSize", c.cfg.Probe.ReadBufferSize, "Block size used while streaming the truncated body")
			cmd.Flags().Bool("disableKeepAlives", c.cfg.Probe.DisableKeepAlives, "Use a fresh connection for every probe")
			cmd.Flags().String("reportPath", c.cfg.Report.Path, "Write the run report as YAML to this file")
		}
	default:
		return errors.New("unknown command name")
	}
	cmd.Flags().SetNormalizeFunc(aliasNormalizeFunc)
	return nil
}

func (c *CmdConfigurator) ValidateFlags(_ context.Context, cmd *cobra.Command) error {
	if err := utils.BindFlagsToViper(c.logger, cmd, flagKeys); err != nil {
		return errors.New("failed to bind flags to config")
	}

	if cmd.Name() == "run" || cmd.Name() == "serve" {
		configPath, err := cmd.Flags().GetString("configPath")
		if err != nil {
			utils.LogError(c.logger, err, "failed to read the config path")
			return err
		}
		viper.SetConfigName("chunkfault")
		viper.SetConfigType("yml")
		viper.AddConfigPath(configPath)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				errMsg := "failed to read config file"
				utils.LogError(c.logger, err, errMsg)
				return errors.New(errMsg)
			}
			c.logger.Debug("config file not found; proceeding with flags only", zap.String("configPath", configPath))
		}
	}

	if err := viper.Unmarshal(c.cfg); err != nil {
		errMsg := "failed to unmarshal the config"
		utils.LogError(c.logger, err, errMsg)
		return errors.New(errMsg)
	}

	if c.cfg.DisableANSI {
		logger, err := log.DisableANSI()
		if err != nil {
			errMsg := "failed to disable ANSI colours"
			utils.LogError(c.logger, err, errMsg)
			return errors.New(errMsg)
		}
		*c.logger = *logger
	}
	if c.cfg.Debug {
		logger, err := log.ChangeLogLevel(zap.DebugLevel)
		if err != nil {
			errMsg := "failed to change log level"
			utils.LogError(c.logger, err, errMsg)
			return errors.New(errMsg)
		}
		*c.logger = *logger
	}

	if err := c.cfg.Validate(); err != nil {
		utils.LogError(c.logger, err, "invalid configuration")
		return err
	}

	if c.cfg.Debug {
		printer := pp.New()
		printer.WithLineInfo = false
		printer.SetColoringEnabled(!c.cfg.DisableANSI)
		c.logger.Debug("config has been initialised", zap.String("for cmd", cmd.Name()))
		c.logger.Debug(printer.Sprint(c.cfg))
	}
	return nil
}

// aliasNormalizeFunc accepts kebab-case spellings of the camelCase flags.
func aliasNormalizeFunc(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if !strings.Contains(name, "-") {
		return pflag.NormalizedName(name)
	}
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return pflag.NormalizedName(b.String())
}
