package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readStatus(t *testing.T, path string) Status {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var s Status
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status", "status.json")
	svc := NewService(Dependencies{
		StatusPath: path,
		Status: func() Status {
			return Status{Session: "demo", Tick: 42, Authority: core.AuthorityAutonomous, Refusal: core.RefusalCooldown}
		},
	})

	require.NoError(t, svc.WriteStatus())

	s := readStatus(t, path)
	assert.Equal(t, "demo", s.Session)
	assert.Equal(t, uint64(42), s.Tick)
	assert.Equal(t, core.AuthorityAutonomous, s.Authority)
	assert.Equal(t, core.RefusalCooldown, s.Refusal)
	assert.False(t, s.Time.IsZero())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStart_RequiresSource(t *testing.T) {
	svc := NewService(Dependencies{})
	assert.Error(t, svc.Start())
	assert.False(t, svc.IsRunning())
}

func TestStartStop_WritesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	var calls atomic.Int64
	svc := NewService(Dependencies{
		StatusPath: path,
		Interval:   10 * time.Millisecond,
		Status: func() Status {
			return Status{Tick: uint64(calls.Add(1))}
		},
	})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start()) // second start is a no-op
	assert.True(t, svc.IsRunning())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())

	final := readStatus(t, path)
	assert.Equal(t, uint64(calls.Load()), final.Tick)

	svc.Stop() // idempotent
}
