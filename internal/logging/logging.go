// Package logging builds the slog loggers shared by the sherpa server,
// worker, and CLI. Components derive child loggers from the one returned
// here (logger.With("component", "reaper")) so every line names its origin.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process-wide logger for a sherpa binary.
//
// level: slog level (DEBUG, INFO, WARN, ERROR)
// format: "text" for terminals, "json" for log shippers
//
// Output goes to stderr: the CLI prints study tables and trial results on
// stdout, and logs must stay off that stream.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter is NewLogger with an explicit destination, used by
// tests that assert on log output.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a --log-level flag value to a slog.Level.
// Unrecognized values fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
