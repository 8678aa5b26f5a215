package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"sensor-dashboard/internal/config"

	"github.com/charmbracelet/log"
)

func parseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Invalid log level %q in config, defaulting to INFO\n", name)
		return slog.LevelInfo
	}
}

// newLogHandler returns a JSON handler, or a human readable one for "text".
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(format, "text") {
		return log.NewWithOptions(w, log.Options{
			Level:           log.Level(level),
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Initialize logger
func initLogger(cfg *config.Config, format string) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	logger := slog.New(newLogHandler(os.Stderr, format, level))
	slog.SetDefault(logger)

	slog.Debug("Logger initialized", "level", level.String(), "format", format)
	return logger
}
