// Package log builds [slog.Handler] values from the string flags used by syncdemo.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	JSONFormat = "json"
	TextFormat = "text"
)

// ErrUnknownFormat is returned by [CreateHandler] for formats other than text and json.
var ErrUnknownFormat = errors.New("unknown log format")

// CreateHandler creates a [slog.Handler] writing to w by strings.
func CreateHandler(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: GetLevel(logLevel)}

	switch strings.ToLower(logFormat) {
	case JSONFormat:
		return slog.NewJSONHandler(w, opts), nil
	case TextFormat, "logfmt", "":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, logFormat)
	}
}

func GetLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
