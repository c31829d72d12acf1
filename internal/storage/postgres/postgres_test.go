package postgres

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/database"
	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInit_UnreachableServer(t *testing.T) {
	b := New(Dependencies{Config: config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "nothing",
		Database: "sentry",
	}})

	assert.Error(t, b.Init())
	assert.Nil(t, b.DB())
}

func TestInit_InjectedDB(t *testing.T) {
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "injected.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	defer b.Close()

	s := &core.Session{Name: "injected", StartTime: time.Now().UTC()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordTelemetry(0, &core.Telemetry{Tick: 1}))
	require.NoError(t, b.EndSession())

	var count int64
	require.NoError(t, db.Model(&model.TelemetryFrame{}).Where("session_id = ?", s.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
