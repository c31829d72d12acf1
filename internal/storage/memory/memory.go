package memory

import (
	"errors"
	"sync"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/pkg/core"
)

// ErrNoSession is returned when recording or ending without an active session.
var ErrNoSession = errors.New("no active session")

// FrameRecord is one captured tick.
type FrameRecord struct {
	Frame     uint64
	Telemetry core.Telemetry
}

// ShotRecord is one fire event and the frame it was captured on.
type ShotRecord struct {
	Frame uint64
	Event core.FireEvent
}

// Backend keeps session telemetry in memory and exports it to JSON when the
// session ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	frames []FrameRecord
	shots  []ShotRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and assigns its ID.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	session := *s
	b.session = &session

	b.frames = nil
	b.shots = nil
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordTelemetry appends a captured frame.
func (b *Backend) RecordTelemetry(frame uint64, t *core.Telemetry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.frames = append(b.frames, FrameRecord{Frame: frame, Telemetry: *t})
	return nil
}

// RecordFireEvent appends a shot.
func (b *Backend) RecordFireEvent(frame uint64, e *core.FireEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.shots = append(b.shots, ShotRecord{Frame: frame, Event: *e})
	return nil
}

// Frames returns a copy of the recorded frames.
func (b *Backend) Frames() []FrameRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]FrameRecord(nil), b.frames...)
}

// Shots returns a copy of the recorded fire events.
func (b *Backend) Shots() []ShotRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ShotRecord(nil), b.shots...)
}

// GetExportedFilePath returns the path of the last exported session file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
