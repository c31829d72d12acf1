package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for OTel log records.
const ServiceName = "sentry"

// swapped in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the process logger and the OTel log provider behind it.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager returns a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts debug/info/warn/error in any case. Anything else is info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record timestamps as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup replaces the logger. Text records go to file, or to stdout when file
// is nil. Every non-nil sink gets JSON records. A nil provider disables OTel.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, sinks ...io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}
	m.logProvider = provider

	console := file
	if console == nil {
		console = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}
	for _, w := range sinks {
		if w == nil {
			continue
		}
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", opts.Level.Level().String())
}

// WithContext stamps every later record with the attributes from provider.
func (m *SlogManager) WithContext(provider ContextProvider) {
	m.logger = slog.New(NewContextHandler(m.Logger().Handler(), provider))
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Flush pushes buffered OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
