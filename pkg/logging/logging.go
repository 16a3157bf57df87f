// Package logging configures structured logging with log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level to emit.
	Level slog.Level
	// JSON switches to JSON output, for machine-read logs.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// FromEnv returns Options honoring the CARDSCOPE_LOG_LEVEL and
// CARDSCOPE_LOG_JSON environment variables. Level defaults to INFO.
func FromEnv() Options {
	opts := Options{Level: slog.LevelInfo, Output: os.Stderr}
	if v := os.Getenv("CARDSCOPE_LOG_LEVEL"); v != "" {
		opts.Level = ParseLevel(v)
	}
	if v := os.Getenv("CARDSCOPE_LOG_JSON"); v == "1" || strings.EqualFold(v, "true") {
		opts.JSON = true
	}
	return opts
}

// ParseLevel converts a level name to slog.Level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from opts and installs it as the slog default.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	} else {
		handler = slog.NewTextHandler(opts.Output, hopts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Component returns a child logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
