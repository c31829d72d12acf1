// Package gormstorage implements the storage.Backend interface on top of GORM
// with internal queues and a background DB writer goroutine. The postgres and
// sqlite backends embed it and only supply the connection.
package gormstorage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/sentry/internal/database"
	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/internal/model/convert"
	"github.com/OCAP2/sentry/internal/queue"
	"github.com/OCAP2/sentry/pkg/core"

	"gorm.io/gorm"
)

const defaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Frames     *queue.Queue[model.TelemetryFrame]
	FireEvents *queue.Queue[model.FireEvent]
}

func newQueues() *queues {
	return &queues{
		Frames:     queue.New[model.TelemetryFrame](),
		FireEvents: queue.New[model.FireEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	frames    atomic.Uint64
	stopChan  chan struct{}
	done      chan struct{}
	writeMu   sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = defaultWriteInterval
	}
	return &Backend{
		deps: deps,
	}
}

// SetDB injects the connection before Init. Embedding backends use it once
// they have opened their database.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// Without a DB the backend only queues, which is how unit tests drive it.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	b.deps.Logger.Info("Migrating schema")
	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.Logger.Info("Database setup complete")

	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	b.Flush()
	return nil
}

// StartSession inserts the session row and assigns the DB-generated ID back.
func (b *Backend) StartSession(s *core.Session) error {
	b.frames.Store(0)
	if b.deps.DB == nil {
		return nil
	}

	gormSession := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = gormSession.ID
	b.sessionID.Store(uint64(gormSession.ID))
	return nil
}

// SetSessionID sets the current session ID for the DB writer (used when
// resuming a recording).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// SessionID returns the current session ID.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes all queued rows and stamps the session end time.
func (b *Backend) EndSession() error {
	b.Flush()
	if b.deps.DB == nil {
		return nil
	}

	id := b.SessionID()
	if id == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Updates(map[string]any{
		"end_time": sql.NullTime{Time: time.Now(), Valid: true},
		"frames":   b.frames.Load(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	return nil
}

// RecordTelemetry converts and queues a frame.
func (b *Backend) RecordTelemetry(frame uint64, t *core.Telemetry) error {
	b.queues.Frames.Push(convert.CoreToTelemetryFrame(frame, *t))
	b.frames.Add(1)
	return nil
}

// RecordFireEvent converts and queues a fire event.
func (b *Backend) RecordFireEvent(frame uint64, e *core.FireEvent) error {
	b.queues.FireEvents.Push(convert.CoreToFireEvent(frame, *e))
	return nil
}

// Flush drains every queue into the database now.
func (b *Backend) Flush() {
	if b.deps.DB == nil || b.queues == nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sessionID := b.SessionID()

	writeQueue(b.deps.DB, b.queues.Frames, "telemetry frames", b.deps.Logger, func(items []model.TelemetryFrame) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(b.deps.DB, b.queues.FireEvents, "fire events", b.deps.Logger, func(items []model.FireEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) {
	if q.Empty() {
		return
	}

	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}

	start := time.Now()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error writing queue", "queue", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing queue", "queue", name, "count", len(items), "error", err)
		q.Push(items...)
		return
	}
	log.Debug("Wrote queue", "queue", name, "count", len(items), "duration", time.Since(start))
}

// writeLoop periodically drains queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
