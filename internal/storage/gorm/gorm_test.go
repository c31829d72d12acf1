package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/sentry/internal/database"
	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/internal/model/convert"
	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{})
}

// newDBBackend creates a Backend on a file-backed SQLite database in a temp dir.
func newDBBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "recorder.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew_Defaults(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
	assert.Equal(t, defaultWriteInterval, b.deps.WriteInterval)
	assert.NotNil(t, b.deps.Logger)
	assert.Nil(t, b.DB())
}

func TestInitClose_QueueOnly(t *testing.T) {
	b := newTestBackend()

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	// second close is a no-op
	require.NoError(t, b.Close())
}

func TestRecord_QueuesToInternalQueues(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Name: "queue-only"}))
	require.NoError(t, b.RecordTelemetry(0, &core.Telemetry{Tick: 1}))
	require.NoError(t, b.RecordTelemetry(1, &core.Telemetry{Tick: 2}))
	require.NoError(t, b.RecordFireEvent(1, &core.FireEvent{Tick: 2}))

	assert.Equal(t, 2, b.queues.Frames.Len())
	assert.Equal(t, 1, b.queues.FireEvents.Len())
	// without a DB nothing is drained
	require.NoError(t, b.EndSession())
	assert.Equal(t, 2, b.queues.Frames.Len())
}

func TestStartSession_AssignsID(t *testing.T) {
	b := newDBBackend(t)

	s := &core.Session{Name: "demo", Turret: "alpha", StartTime: time.Now().UTC(), TickRate: 30}
	require.NoError(t, b.StartSession(s))

	assert.NotZero(t, s.ID)
	assert.Equal(t, s.ID, b.SessionID())
}

func TestFlush_WritesAndStampsSession(t *testing.T) {
	b := newDBBackend(t)

	s := &core.Session{Name: "demo", StartTime: time.Now().UTC(), TickRate: 30}
	require.NoError(t, b.StartSession(s))

	aim := core.Vector3{X: 30, Y: 4, Z: 2}
	tel := &core.Telemetry{
		Tick:      5,
		Authority: core.AuthorityAutonomous,
		Fired:     true,
		AimPoint:  &aim,
		Shots: []core.FireEvent{{
			Tick:       5,
			Source:     core.FireSourceAutonomous,
			TargetID:   "t1",
			Ammunition: "standard",
			Damage:     10,
			AimPoint:   aim,
		}},
	}
	require.NoError(t, storage.Record(b, 3, tel))

	b.Flush()
	assert.True(t, b.queues.Frames.Empty())
	assert.True(t, b.queues.FireEvents.Empty())

	db := b.DB()

	var frameCount int64
	require.NoError(t, db.Model(&model.TelemetryFrame{}).Where("session_id = ?", s.ID).Count(&frameCount).Error)
	assert.Equal(t, int64(1), frameCount)

	var events []model.FireEvent
	require.NoError(t, db.Where("session_id = ?", s.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3), events[0].CaptureFrame)
	assert.Equal(t, tel.Shots[0], convert.FireEventToCore(events[0]))
}

func TestEndSession_StampsEndTimeAndFrames(t *testing.T) {
	b := newDBBackend(t)

	s := &core.Session{Name: "demo", StartTime: time.Now().UTC(), TickRate: 30}
	require.NoError(t, b.StartSession(s))
	for i := 0; i < 4; i++ {
		require.NoError(t, b.RecordTelemetry(uint64(i), &core.Telemetry{Tick: uint64(i)}))
	}

	require.NoError(t, b.EndSession())

	var row model.Session
	require.NoError(t, b.DB().First(&row, s.ID).Error)
	assert.True(t, row.EndTime.Valid)
	assert.Equal(t, uint64(4), row.Frames)
	assert.True(t, b.queues.Frames.Empty())
}

func TestClose_FlushesRemainingQueues(t *testing.T) {
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "close.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: time.Hour})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(&core.Session{Name: "demo", StartTime: time.Now().UTC()}))
	require.NoError(t, b.RecordFireEvent(0, &core.FireEvent{Source: core.FireSourceManual}))

	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.FireEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWriteLoop_FlushesPeriodically(t *testing.T) {
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "loop.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartSession(&core.Session{Name: "demo", StartTime: time.Now().UTC()}))
	require.NoError(t, b.RecordTelemetry(0, &core.Telemetry{}))

	assert.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&model.TelemetryFrame{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}
