package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		level slog.Level
		attrs []slog.Attr
		want  []string
	}{
		{"debug", slog.LevelDebug, []slog.Attr{slog.String("key", "value")}, []string{"DEBUG:", `"key":"value"`}},
		{"info", slog.LevelInfo, []slog.Attr{slog.Int("count", 42)}, []string{"INFO:", `"count":42`}},
		{"warn", slog.LevelWarn, []slog.Attr{slog.Bool("flag", true)}, []string{"WARN:", `"flag":true`}},
		{"error value", slog.LevelError, []slog.Attr{slog.Any("error", errors.New("boom"))}, []string{"ERROR:", `"error":"boom"`}},
		{"no attrs", slog.LevelInfo, nil, []string{"INFO:", "{}"}},
		{"group", slog.LevelInfo, []slog.Attr{slog.Group("req", slog.String("id", "r1"))}, []string{`"req":{"id":"r1"}`}},
		{"duration", slog.LevelInfo, []slog.Attr{slog.Duration("took", 1500 * time.Millisecond)}, []string{`"took":"1.5s"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug}})

			r := slog.NewRecord(time.Now(), tt.level, "the message", 0)
			r.AddAttrs(tt.attrs...)
			require.NoError(t, h.Handle(ctx, r))

			out := buf.String()
			assert.Contains(t, out, "the message")
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestPrettyHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{}))

	logger.With("component", "indexer").WithGroup("stats").Info("done", "files", 3)

	out := buf.String()
	assert.Contains(t, out, `"component":"indexer"`)
	assert.Contains(t, out, `"stats":{"files":3}`)
}

func TestPrettyHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn}}))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", FormatPretty, FormatText, FormatJSON} {
		var buf bytes.Buffer
		logger, err := New(Options{Level: "debug", Format: format, Output: &buf})
		require.NoError(t, err, format)
		logger.Debug("hello", "n", 1)
		assert.Contains(t, buf.String(), "hello", format)
	}

	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
