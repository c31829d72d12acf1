package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/sentry/internal/dispatcher"
	"github.com/OCAP2/sentry/internal/logging"
	"github.com/OCAP2/sentry/internal/monitor"
	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/internal/turret"
	"github.com/OCAP2/sentry/pkg/core"
)

// storageSinkBuffer is the frame backlog the storage sink may hold.
const storageSinkBuffer = 256

// scenarioTurretConfig is the turret used when the config file has no
// "turret" section.
func scenarioTurretConfig() turret.Config {
	cfg := turret.DefaultConfig()
	cfg.MaxTurnRateDeg = 240
	cfg.FireArcDeg = 4
	cfg.DetectionRadius = 60
	cfg.HeatCapacity = 10
	cfg.HeatOverheatThreshold = 7.5
	cfg.HeatResumeThreshold = 3
	cfg.HeatDissipation = 1.2
	cfg.PowerCapacity = 12
	cfg.PowerRecharge = 0.8
	cfg.PowerResumeThreshold = 3
	cfg.Ammunition = scenarioAmmunition
	cfg.DefaultAmmunition = scenarioAmmunition[0].Name
	return cfg
}

// runner owns one simulated session: the controller, its scenario and the
// telemetry fan-out.
type runner struct {
	logger     *slog.Logger
	scenario   *Scenario
	controller *turret.Controller
	dispatcher *dispatcher.Dispatcher
	backend    storage.Backend
	dt         float64

	tick     atomic.Uint64
	captured atomic.Uint64
	damage   map[string]float64
	shots    map[core.FireSource]int

	mu    sync.Mutex
	last  core.Telemetry
	fired int
}

type runnerDeps struct {
	Logger     *slog.Logger
	Turret     turret.Config
	Scenario   *Scenario
	Dispatcher *dispatcher.Dispatcher
	Backend    storage.Backend
	TickRate   float64
}

func newRunner(deps runnerDeps) (*runner, error) {
	if !(deps.TickRate > 0) {
		return nil, fmt.Errorf("tick rate must be positive, got %v", deps.TickRate)
	}
	r := &runner{
		logger:     deps.Logger,
		scenario:   deps.Scenario,
		dispatcher: deps.Dispatcher,
		backend:    deps.Backend,
		dt:         1 / deps.TickRate,
		damage:     make(map[string]float64),
		shots:      make(map[core.FireSource]int),
	}

	deps.Dispatcher.Register("storage", func(f dispatcher.Frame) error {
		return storage.Record(deps.Backend, f.Index, &f.Telemetry)
	}, dispatcher.Buffered(storageSinkBuffer), dispatcher.Blocking(), dispatcher.Logged())

	controller, err := turret.New(deps.Turret, r.callbacks(), deps.Logger)
	if err != nil {
		return nil, err
	}
	r.controller = controller
	return r, nil
}

func (r *runner) callbacks() turret.Callbacks {
	return turret.Callbacks{
		ObstructionCheck: r.scenario.ObstructionCheck,
		HeatFeedback: func(old, new float64, overheated bool) {
			r.logger.Info("heat feedback", "old", old, "new", new, "overheated", overheated)
		},
		PowerFeedback: func(old, new float64, depleted bool) {
			r.logger.Info("power feedback", "old", old, "new", new, "depleted", depleted)
		},
		Fire: func(e core.FireEvent) {
			r.shots[e.Source]++
			if e.TargetID != "" {
				r.damage[e.TargetID] += e.Damage
			}
		},
		RLTraining: shapeReward,
		Capture: func(frame uint64, _ core.Telemetry) {
			r.captured.Store(frame + 1)
		},
		Exporter: r.dispatcher,
	}
}

// shapeReward pays for released rounds and charges for running hot.
func shapeReward(f turret.Features, t core.Telemetry) (float64, bool) {
	reward := f[turret.FeatureFired] - f[turret.FeatureHeatRatio]
	switch t.Refusal {
	case core.RefusalOverheated, core.RefusalHeat, core.RefusalDepleted, core.RefusalPower:
		reward -= 0.5
	case core.RefusalObstructed:
		reward -= 0.1
	}
	return reward, true
}

// contextAttrs stamps log records with the current tick.
func (r *runner) contextAttrs() []slog.Attr {
	return logging.SessionAttrs("", r.tick.Load())
}

// Run advances the scenario for ticks steps or until ctx is done.
func (r *runner) Run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			r.logger.Warn("Run interrupted", "tick", i)
			return ctx.Err()
		default:
		}

		tel, events := r.scenario.Step(r.controller, r.dt)
		r.tick.Store(tel.Tick)
		r.mu.Lock()
		r.last = tel
		r.fired += len(tel.Shots)
		r.mu.Unlock()
		if len(events) > 0 {
			r.logger.Info("scenario events", "time", math.Round(r.scenario.Time()*10)/10, "events", events)
		}
		r.logger.Debug("tick",
			"authority", tel.Authority,
			"yaw", tel.Yaw,
			"pitch", tel.Pitch,
			"ammunition", tel.Ammunition,
			"heat", tel.Heat,
			"power", tel.Power,
			"target", tel.TargetID,
			"fired", tel.Fired,
			"refusal", tel.Refusal,
		)
	}
	return nil
}

// status snapshots the latest tick for the status monitor.
func (r *runner) status() monitor.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return monitor.Status{
		Tick:         r.last.Tick,
		Frames:       r.captured.Load(),
		Shots:        r.fired,
		Authority:    r.last.Authority,
		Ammunition:   r.last.Ammunition,
		Heat:         r.last.Heat,
		Overheated:   r.last.Overheated,
		Power:        r.last.Power,
		Depleted:     r.last.Depleted,
		Designations: r.last.Designations.Count,
		Refusal:      r.last.Refusal,
	}
}

// Close drains the dispatcher and releases the controller.
func (r *runner) Close() error {
	r.dispatcher.Close()
	return r.controller.Close()
}

// summary logs shots per source and damage per target.
func (r *runner) summary() {
	ids := make([]string, 0, len(r.damage))
	for id := range r.damage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.logger.Info("damage dealt", "target", id, "damage", r.damage[id])
	}
	r.logger.Info("Run complete",
		"frames", r.captured.Load(),
		"autonomous", r.shots[core.FireSourceAutonomous],
		"burst", r.shots[core.FireSourceBurst],
		"manual", r.shots[core.FireSourceManual],
	)
}
