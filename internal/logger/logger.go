// Package logger provides structured logging utilities for propdesk.
// It includes context-aware logging and log level management.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/propdesk/propdesk/internal/constants"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
)

// Initialize sets up the global slog logger based on the environment
func Initialize(env constants.Environment, level slog.Level) *slog.Logger {
	return InitializeWriter(os.Stderr, env, level)
}

// InitializeWriter is Initialize with an explicit destination.
func InitializeWriter(w io.Writer, env constants.Environment, level slog.Level) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch env {
	case constants.Production:
		handler = slog.NewJSONHandler(w, opts)
	case constants.Development:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.StampMilli,
			NoColor:    color.NoColor,
		})
	default:
		handler = NewColorHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "env", env, "level", level)

	return logger
}

// ForInternals returns the logger used by the API client and notification channel internals.
// Their chatter is only wanted in development builds; otherwise it goes nowhere.
func ForInternals(dev bool, base *slog.Logger) *slog.Logger {
	if !dev {
		return Discard()
	}
	if base == nil {
		return slog.Default()
	}
	return base
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
