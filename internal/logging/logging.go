// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w at the given level. The text format is
// rendered by charmbracelet/log; json uses the standard JSON handler.
// The writer defaults to os.Stderr.
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	switch format {
	case FormatText, "":
		handler := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(level),
		})
		return slog.New(handler), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// Setup creates a stderr logger and installs it as the slog default.
func Setup(level slog.Level, format string) (*slog.Logger, error) {
	logger, err := New(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
