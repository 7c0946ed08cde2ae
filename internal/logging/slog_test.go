package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_WritesToFile(t *testing.T) {
	var fileBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&fileBuf, "info", nil)
	m.Logger().Info("hello file")

	assert.Contains(t, fileBuf.String(), "hello file")
	assert.Contains(t, fileBuf.String(), "Logging initialized")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "debug", nil)

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(&buf1, "info", nil)
	m.Logger().Info("first")

	m.Setup(&buf2, "info", nil)
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetEpisodeID_StampsRecords(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.Logger().Info("before recording")
	m.SetEpisodeID("ep-42")
	m.Logger().Info("while recording")
	m.SetEpisodeID("")
	m.Logger().Info("after recording")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4) // init line plus the three above
	assert.NotContains(t, string(lines[1]), "episode_id")
	assert.Contains(t, string(lines[2]), "episode_id=ep-42")
	assert.NotContains(t, string(lines[3]), "episode_id")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	logger := m.Logger()
	assert.Equal(t, slog.Default(), logger)
}

func TestFlush_NilProvider(t *testing.T) {
	m := NewSlogManager()
	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo})

	multi := NewMultiHandler(h1, h2)
	logger := slog.New(multi)
	logger.Info("fanned out")

	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_FiltersNilHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)

	multi := NewMultiHandler(nil, h, nil)
	require.Len(t, multi.handlers, 1)

	logger := slog.New(multi)
	logger.Info("works")
	assert.Contains(t, buf.String(), "works")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	infoOnly := NewMultiHandler(infoHandler)
	assert.False(t, infoOnly.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, infoOnly.Enabled(context.Background(), slog.LevelInfo))

	// Any enabled sink enables the level for the fan-out.
	both := NewMultiHandler(infoHandler, debugHandler)
	assert.True(t, both.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandler_Empty(t *testing.T) {
	multi := NewMultiHandler()
	assert.False(t, multi.Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(h)

	withAttrs := multi.WithAttrs([]slog.Attr{slog.String("component", "test")})
	logger := slog.New(withAttrs)
	logger.Info("with attrs")

	assert.Contains(t, buf.String(), "component=test")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(h)

	withGroup := multi.WithGroup("grp")
	logger := slog.New(withGroup)
	logger.Info("grouped", "key", "val")

	assert.Contains(t, buf.String(), "grp.key=val")
}

func TestMultiHandler_WithGroupEmpty(t *testing.T) {
	h := slog.NewTextHandler(&bytes.Buffer{}, nil)
	multi := NewMultiHandler(h)

	same := multi.WithGroup("")
	assert.Equal(t, multi, same, "empty group name should return same handler")
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, just validates non-nil path
	m := NewSlogManager()

	var buf bytes.Buffer
	m.Setup(&buf, "info", provider)

	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

// errorHandler is a slog.Handler that always returns an error from Handle.
type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(_ context.Context, _ slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	spy := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	// First handler errors, second (spy) should still receive the record.
	multi := NewMultiHandler(&errorHandler{}, spy)
	logger := slog.New(multi)
	logger.Info("should reach spy")

	assert.Contains(t, buf.String(), "should reach spy")
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
}
