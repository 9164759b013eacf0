// Package utils provides utility functions for the chunkfault harness.
package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var Emoji = "\U0001F9E9" + " chunkfault:"

var Version string

func CheckFileExists(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}
	return true
}

// LogError logs err with msg unless err is a context cancellation.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if logger == nil {
		fmt.Println(Emoji, msg, err)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(msg, fields...)
}

// IsClosedConnErr reports whether err comes from using an already closed socket.
func IsClosedConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	// Use string matching as a last resort to check for the specific error
	return strings.Contains(err.Error(), "use of closed network connection")
}

// HandlePanic is deferred in main. It reports the panic to sentry when a DSN is configured.
func HandlePanic() {
	if r := recover(); r != nil {
		sentry.CaptureException(errors.New(fmt.Sprint(r)))
		stackTrace := debug.Stack()
		fmt.Println(Emoji, "Recovered from:", r, "\nstack trace:\n", string(stackTrace))
		sentry.Flush(time.Second * 2)
	}
}

// Recover guards a goroutine. The panic is logged and reported but not re-raised.
// onPanic hooks run after the panic is logged.
func Recover(logger *zap.Logger, scope string, onPanic ...func(p any)) {
	if r := recover(); r != nil {
		for _, f := range onPanic {
			defer f(r)
		}
		sentry.CaptureException(errors.New(fmt.Sprint(r)))
		LogError(logger, nil, "recovered from panic", zap.String("scope", scope), zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
	}
}

// BindFlagsToViper binds every flag of cmd to viper. keys maps a flag name onto its
// config key where the two differ.
func BindFlagsToViper(logger *zap.Logger, cmd *cobra.Command, keys map[string]string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		key, ok := keys[flag.Name]
		if !ok {
			key = flag.Name
		}
		if err := viper.BindPFlag(key, flag); err != nil && bindErr == nil {
			bindErr = err
			LogError(logger, err, "failed to bind flag to config", zap.String("flag", flag.Name))
		}
	})
	return bindErr
}
