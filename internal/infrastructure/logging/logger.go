// Package logging provides structured logging utilities.
//
// Console logs are formatted as:
// [LEVEL] [SCOPE] [HH:MM:SS] message key=value
package logging

import (
	"log/slog"
	"os"

	"rent-reconciliation-backend/internal/infrastructure/config"
)

// NewLogger creates a structured logger based on config
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(NewConsoleHandler(os.Stdout, opts))
}

// NewLoggerWithScope creates a logger tagged with a subsystem name
// (e.g. "engine", "api", "storage") that shows up in the log prefix
func NewLoggerWithScope(cfg config.LoggingConfig, scope string) *slog.Logger {
	logger := NewLogger(cfg)
	return logger.With("scope", scope)
}
