package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the service-wide root logger.
type Config struct {
	Service string
	Version string
	Env     string // "dev" enables source locations
	Level   string // "debug", "info", "warn", "error"
	Format  string // "text" or "json" (the default)
}

// New builds the root logger, tags every record with the service
// identity and installs the logger as the slog default.
func New(cfg Config) *slog.Logger {
	logger := slog.New(handlerFor(cfg, os.Stdout)).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)
	slog.SetDefault(logger)
	return logger
}

func handlerFor(cfg Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Env == "dev",
		Level:     parseLevel(cfg.Level),
	}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
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
