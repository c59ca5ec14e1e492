package backend

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the package-level structured logger.
// Components derive their own logger from it with a "component" attribute.
var Logger = slog.Default()

// InitLogger initialises the slog default logger.
// logLevel should be one of: "debug", "info", "warn", "error".
// logFormat is "text" or "json". LOG_LEVEL and LOG_FORMAT override both.
func InitLogger(logLevel, logFormat string) *slog.Logger {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		logLevel = env
	}
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		logFormat = env
	}

	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler
	if strings.EqualFold(logFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	Logger = logger
	return logger
}

// componentLogger returns log (or the package logger when nil) tagged with a component name.
func componentLogger(log *slog.Logger, component string) *slog.Logger {
	if log == nil {
		log = Logger
	}
	return log.With(slog.String("component", component))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
