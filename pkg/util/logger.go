package util

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Development gets readable
// text at debug level; everything else gets JSON for log shipping.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", "edugate")
}
