package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Emoji = "\U0001F9E9" + " chunkfault:"

var (
	cfgMu  sync.Mutex
	logCfg zap.Config
	out    io.Writer = os.Stdout
)

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Emoji + " " + t.Format(time.RFC3339) + " ")
}

// New builds the console logger used by every command.
func New() (*zap.Logger, error) {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	logCfg = zap.NewDevelopmentConfig()
	logCfg.Encoding = "colorConsole"

	// Customize the encoder config to put the emoji at the beginning.
	logCfg.EncoderConfig.EncodeTime = customTimeEncoder
	logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logCfg.DisableStacktrace = true
	logCfg.EncoderConfig.EncodeCaller = nil

	return build()
}

// ChangeLogLevel rebuilds the logger at the given level. Debug also turns on callers and stack traces.
func ChangeLogLevel(level zapcore.Level) (*zap.Logger, error) {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	logCfg.Level = zap.NewAtomicLevelAt(level)
	if level == zap.DebugLevel {
		logCfg.DisableStacktrace = false
		logCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return build()
}

// DisableANSI switches the level encoder to plain capitals.
func DisableANSI() (*zap.Logger, error) {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return build()
}

// SetConsoleWriter redirects log output, tests use it to capture entries.
func SetConsoleWriter(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	cfgMu.Lock()
	out = w
	cfgMu.Unlock()
}

func build() (*zap.Logger, error) {
	if logCfg.Encoding == "" {
		return nil, fmt.Errorf("logger is not initialised")
	}
	enc := NewColor(logCfg.EncoderConfig)
	core := zapcore.NewCore(enc, zapcore.AddSync(out), logCfg.Level)

	opts := []zap.Option{zap.Development()}
	if logCfg.EncoderConfig.EncodeCaller != nil {
		opts = append(opts, zap.AddCaller())
	}
	if !logCfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zap.New(core, opts...), nil
}
