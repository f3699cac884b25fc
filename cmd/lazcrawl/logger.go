package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/use-agent/lazcrawl/config"
)

// initLogger configures slog based on the LogConfig. Logs go to w so the
// run summary on stdout stays readable.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
