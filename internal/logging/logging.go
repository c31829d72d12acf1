// Package logging wires the turret's log sinks: the per-session log file, an
// optional Graylog GELF writer and the OpenTelemetry log bridge. Records are
// stamped with the session name and the controller tick through a
// ContextHandler, and the zerolog logger used by the storage layer writes to
// the same session file.
package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Attribute keys stamped on every record during a run.
const (
	KeySession = "session"
	KeyTick    = "tick"
)

// LogFilePath builds a per-session log file path using OS-appropriate
// separators, e.g. logs/sentry.20260212_213836.log.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// SessionAttrs returns the session and tick attributes for a ContextProvider.
// An empty session name is omitted.
func SessionAttrs(session string, tick uint64) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2)
	if session != "" {
		attrs = append(attrs, slog.String(KeySession, session))
	}
	return append(attrs, slog.Uint64(KeyTick, tick))
}
