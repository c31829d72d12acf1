package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/dispatcher"
	"github.com/OCAP2/sentry/internal/logging"
	"github.com/OCAP2/sentry/internal/storage/memory"
	"github.com/OCAP2/sentry/internal/turret"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, backend *memory.Backend) *runner {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	r, err := newRunner(runnerDeps{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Turret:     scenarioTurretConfig(),
		Scenario:   NewScenario(42, 5),
		Dispatcher: d,
		Backend:    backend,
		TickRate:   30,
	})
	require.NoError(t, err)
	return r
}

func TestScenarioTurretConfig_Valid(t *testing.T) {
	cfg := scenarioTurretConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Ammunition, 3)
	assert.Equal(t, "standard", cfg.DefaultAmmunition)
}

func TestNewRunner_RejectsBadTickRate(t *testing.T) {
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = newRunner(runnerDeps{TickRate: 0, Dispatcher: d})
	assert.Error(t, err)
}

func TestNewRunner_RejectsInvalidTurret(t *testing.T) {
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	defer d.Close()

	cfg := scenarioTurretConfig()
	cfg.MaxTurnRateDeg = 0
	_, err = newRunner(runnerDeps{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Turret:     cfg,
		Scenario:   NewScenario(1, 1),
		Dispatcher: d,
		Backend:    memory.New(config.MemoryConfig{OutputDir: t.TempDir()}),
		TickRate:   30,
	})
	assert.ErrorIs(t, err, turret.ErrInvalidConfiguration)
}

func TestRunner_RecordsEveryTick(t *testing.T) {
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.Init())
	require.NoError(t, backend.StartSession(&core.Session{Name: "test", Turret: TurretName, TickRate: 30}))

	r := newTestRunner(t, backend)
	const ticks = 600
	require.NoError(t, r.Run(context.Background(), ticks))
	require.NoError(t, r.Close())

	frames := backend.Frames()
	require.Len(t, frames, ticks)
	for i, f := range frames {
		assert.Equal(t, uint64(i), f.Frame)
		assert.Equal(t, uint64(i+1), f.Telemetry.Tick)
	}
	assert.Equal(t, uint64(ticks), r.captured.Load())
	assert.Equal(t, uint64(ticks), r.tick.Load())

	fired := 0
	for _, n := range r.shots {
		fired += n
	}
	assert.Len(t, backend.Shots(), fired)

	require.NoError(t, backend.EndSession())
	assert.FileExists(t, backend.GetExportedFilePath())
}

func TestRunner_StopsOnCancel(t *testing.T) {
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.StartSession(&core.Session{Name: "test"}))

	r := newTestRunner(t, backend)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, r.Close())
	assert.Empty(t, backend.Frames())
}

func TestShapeReward(t *testing.T) {
	reward, ok := shapeReward(turret.Features{turret.FeatureFired: 1, turret.FeatureHeatRatio: 0.25}, core.Telemetry{})
	assert.True(t, ok)
	assert.InDelta(t, 0.75, reward, 1e-12)

	reward, _ = shapeReward(turret.Features{}, core.Telemetry{Refusal: core.RefusalOverheated})
	assert.InDelta(t, -0.5, reward, 1e-12)

	reward, _ = shapeReward(turret.Features{}, core.Telemetry{Refusal: core.RefusalObstructed})
	assert.InDelta(t, -0.1, reward, 1e-12)
}

func TestContextAttrs(t *testing.T) {
	r := &runner{}
	r.tick.Store(12)
	attrs := r.contextAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, "tick", attrs[0].Key)
	assert.Equal(t, uint64(12), attrs[0].Value.Uint64())
}

func TestRunner_Status(t *testing.T) {
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.StartSession(&core.Session{Name: "test"}))

	r := newTestRunner(t, backend)
	require.NoError(t, r.Run(context.Background(), 10))

	s := r.status()
	assert.Equal(t, uint64(10), s.Tick)
	assert.Equal(t, uint64(10), s.Frames)
	assert.NotEmpty(t, s.Authority)
	assert.Equal(t, "standard", s.Ammunition)
	require.NoError(t, r.Close())
}
