// Package telemetry builds the structured logger and Prometheus collector
// a caller embeds this library with. The library never owns os.Stderr or
// calls os.Exit; it accepts a *slog.Logger, defaulting to slog.Default()
// when the caller does not supply one.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// LogConfig controls NewLogger's output.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error". Unknown values
	// default to info.
	Level string
	// Format is "json" or "text". Unknown values default to json.
	Format string
}

// NewLogger builds a *slog.Logger writing to os.Stdout, behind a
// slog.LevelVar so the level can be changed at runtime via the returned
// LevelVar.
func NewLogger(cfg LogConfig) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

// ParseLevel maps a log level string to its slog.Level, defaulting to
// slog.LevelInfo for anything unrecognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
