// Package log provides the structured logging facade used across the
// daemon. Call Configure once at startup; the default is info level with
// console output.
package log

import (
	"github.com/paularlott/logger"
	logslog "github.com/paularlott/logger/slog"
)

var global logger.Logger = logslog.New(logslog.Config{Level: "info", Format: "console"})

// Configure sets the global log level and output format. Level is one of
// debug, info, warn, error; format is "console" or "json".
func Configure(level, format string) {
	global = logslog.New(logslog.Config{Level: level, Format: format})
}

// Debug logs a message at debug level with alternating key/value pairs.
func Debug(msg string, args ...any) {
	global.Debug(msg, args...)
}

// Info logs a message at info level with alternating key/value pairs.
func Info(msg string, args ...any) {
	global.Info(msg, args...)
}

// Warn logs a message at warn level with alternating key/value pairs.
func Warn(msg string, args ...any) {
	global.Warn(msg, args...)
}

// Error logs a message at error level with alternating key/value pairs.
func Error(msg string, args ...any) {
	global.Error(msg, args...)
}
