package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger used across all binaries. The service
// attribute separates the three processes in shared log pipelines.
func New(service string) *slog.Logger {
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With("service", service)
}
