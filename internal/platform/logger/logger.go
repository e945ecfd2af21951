package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON in production so log
// shippers can index fields; text when LOG_FORMAT=text for local runs.
func New(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("LOG_FORMAT") == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
