package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophcemper/syncplus/internal/log"
)

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"trace":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}

	for in, want := range tests {
		in, want := in, want
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, want, log.GetLevel(in))
		})
	}
}

func TestCreateHandler(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		h, err := log.CreateHandler(&buf, "warn", "json")
		require.NoError(t, err)

		assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))

		slog.New(h).Warn("slow", slog.String("context", "m1"))
		assert.Contains(t, buf.String(), `"context":"m1"`)
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		h, err := log.CreateHandler(&buf, "debug", "text")
		require.NoError(t, err)

		slog.New(h).Debug("acquired", slog.String("context", "m1"))
		assert.Contains(t, buf.String(), "context=m1")
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		_, err := log.CreateHandler(&bytes.Buffer{}, "info", "xml")
		require.ErrorIs(t, err, log.ErrUnknownFormat)
	})
}
