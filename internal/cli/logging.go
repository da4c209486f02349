// Package cli provides the command-line interface of the backup
// process.
package cli

import (
	"log/slog"
	"os"
)

// NewLogger creates the process logger: structured JSON on stderr so
// stdout stays clean.
func NewLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// ParseLogLevelOrDefault parses a log level string, defaulting to info.
func ParseLogLevelOrDefault(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
