// Package worker runs report generation outside the request path: an in-process
// dispatcher, an asynq queue dispatcher and server, and the stale job sweeper.
package worker

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger with configurable level and format.
// level: "debug", "info", "warn", "error" (defaults to info if invalid)
// format: "json" for JSON output, anything else for human-readable text
func NewLogger(level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// asynqLogger adapts slog.Logger to the asynq.Logger interface.
type asynqLogger struct {
	logger *slog.Logger
}

func (a *asynqLogger) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }

func (a *asynqLogger) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}
