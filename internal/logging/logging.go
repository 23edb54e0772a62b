// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default slog logger on stderr. JSON output is used when
// stdout carries machine-readable output, text otherwise.
func Init(json bool, level slog.Level) {
	slog.SetDefault(New(os.Stderr, json, level))
}

// New builds a logger writing to w.
func New(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsJSONFormat reports whether format selects the JSON handler.
func IsJSONFormat(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "json")
}
