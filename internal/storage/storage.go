// internal/storage/storage.go
package storage

import "github.com/OCAP2/sentry/pkg/core"

// Backend is the interface all telemetry recorders must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns ID to the passed pointer)
	StartSession(s *core.Session) error
	EndSession() error

	// Recording; frame is the capture index of the tick
	RecordTelemetry(frame uint64, t *core.Telemetry) error
	RecordFireEvent(frame uint64, e *core.FireEvent) error
}

// Exportable is an optional interface for backends that write a session file
// when the session ends.
type Exportable interface {
	GetExportedFilePath() string
}

// Record stores a captured frame and every shot fired on it.
func Record(b Backend, frame uint64, t *core.Telemetry) error {
	if err := b.RecordTelemetry(frame, t); err != nil {
		return err
	}
	for i := range t.Shots {
		if err := b.RecordFireEvent(frame, &t.Shots[i]); err != nil {
			return err
		}
	}
	return nil
}
