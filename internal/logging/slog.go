package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager owns the process logger: console plus session file plus
// the OTLP bridge when export is enabled. While an episode is being
// recorded its ID is stamped onto every record.
type SlogManager struct {
	logger *slog.Logger

	// current episode ID, empty when idle
	episodeID atomic.Value

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a logging manager. Call Setup before use.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with file and optional OTel
// output. If provider is nil, OTel logging is disabled. Setup may be
// called again once the log file and provider become available.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}
	if provider != nil {
		otelHandler := otelslog.NewHandler("interceptor", otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	contextual := NewContextHandler(NewMultiHandler(handlers...), m.contextAttrs)
	m.logger = slog.New(contextual)
	m.logger.Info("Logging initialized", "level", level)
}

// contextAttrs supplies the per-record session attributes.
func (m *SlogManager) contextAttrs() []slog.Attr {
	if id, ok := m.episodeID.Load().(string); ok && id != "" {
		return []slog.Attr{slog.String("episode_id", id)}
	}
	return nil
}

// SetEpisodeID stamps subsequent log records with the episode being
// recorded or replayed. An empty ID clears the stamp.
func (m *SlogManager) SetEpisodeID(id string) {
	m.episodeID.Store(id)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
