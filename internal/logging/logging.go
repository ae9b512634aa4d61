// Package logging configures the engine's structured logger, following the
// same level/format knobs and component tagging the teacher's
// internal/logging.New uses.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/l0p7/httpdiff/internal/config"
)

// New shapes slog so every line the engine emits carries a consistent
// component tag and level/format chosen by config.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("logging: unsupported level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}

	return slog.New(handler).With(slog.String("component", "httpdiff")), nil
}

// ForRun returns a child logger tagged with the run's correlation ID, used
// for every log line emitted while executing one Run call.
func ForRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String("run_id", runID))
}

// ForCell returns a child logger tagged with the route and environment a
// log line concerns, layered on top of ForRun's run_id tag.
func ForCell(logger *slog.Logger, route, environment string) *slog.Logger {
	return logger.With(slog.String("route", route), slog.String("environment", environment))
}
