package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON in production, text otherwise.
func NewLogger(app App) *slog.Logger {
	opts := &slog.HandlerOptions{Level: app.LogLevel}
	if app.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
