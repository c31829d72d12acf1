// Package turret is the per-tick control engine for a pan/tilt weapon mount.
//
// A Controller owns all mutable turret state. Advance is driven by a single
// goroutine; IngestDesignations may be called from any goroutine and is
// drained at the start of the next tick.
package turret

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/OCAP2/sentry/internal/ammo"
	"github.com/OCAP2/sentry/internal/budget"
	"github.com/OCAP2/sentry/internal/fusion"
	"github.com/OCAP2/sentry/internal/geo"
	"github.com/OCAP2/sentry/internal/override"
	"github.com/OCAP2/sentry/internal/scan"
	"github.com/OCAP2/sentry/internal/targeting"
	"github.com/OCAP2/sentry/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// defaultProbeReach is how far override shots are probed when the envelope
// has no detection radius.
const defaultProbeReach = 100.0

// arcEpsilon absorbs rounding in the angular separation.
const arcEpsilon = 1e-9

// cooldownEpsilon absorbs rounding in the accumulated tick time.
const cooldownEpsilon = 1e-9

// Controller is the turret decision engine.
type Controller struct {
	cfg     Config
	cb      Callbacks
	logger  *slog.Logger
	metrics *instruments

	registry    *ammo.Registry
	heat        *budget.Heat
	power       *budget.Power
	fusion      *fusion.Fusion
	envelope    *geo.Envelope
	gate        *targeting.Gate
	prioritizer *targeting.Prioritizer
	override    *override.Controller
	scan        *scan.Pattern
	reward      *rewardShaper

	tick     uint64
	time     float64
	frame    uint64
	yaw      float64
	pitch    float64
	lastFire float64
}

// New validates cfg and builds a controller. A nil logger uses slog.Default().
func New(cfg Config, cb Callbacks, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	heat, err := budget.NewHeat(cfg.heatParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	power, err := budget.NewPower(cfg.powerParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	fus, err := fusion.New(cfg.fusionParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	envelope, err := geo.NewEnvelope(cfg.envelopeConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	registry := ammo.NewRegistry()
	for _, a := range cfg.Ammunition {
		if err := registry.Register(a); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	}
	if cfg.DefaultAmmunition != "" {
		if _, err := registry.Select(cfg.DefaultAmmunition); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	}

	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}

	gate := targeting.NewGate(cb.ObstructionCheck)
	c := &Controller{
		cfg:         cfg,
		cb:          cb,
		logger:      logger,
		metrics:     metrics,
		registry:    registry,
		heat:        heat,
		power:       power,
		fusion:      fus,
		envelope:    envelope,
		gate:        gate,
		prioritizer: targeting.NewPrioritizer(envelope, gate, cfg.MaxPredictionTime),
		override:    override.New(),
		scan:        scan.New(cfg.IdleScanAmplitude, cfg.IdleScanPitchAmplitude, cfg.IdleScanPeriod),
		reward:      newRewardShaper(cfg),
		lastFire:    math.Inf(-1),
	}
	metrics.publish(heat.Value(), power.Value())
	return c, nil
}

// Close unregisters the metric callbacks.
func (c *Controller) Close() error {
	return c.metrics.close()
}

// IngestDesignations queues cooperative reports for the next tick. Reports
// replace earlier ones from the same source.
func (c *Controller) IngestDesignations(reports []core.Designation) {
	c.fusion.Ingest(reports...)
}

// SelectAmmunition makes the named type active. On failure the selection is unchanged.
func (c *Controller) SelectAmmunition(name string) (core.AmmunitionType, error) {
	a, err := c.registry.Select(name)
	if err != nil {
		return core.AmmunitionType{}, err
	}
	c.logger.Info("ammunition selected", "ammunition", a.Name)
	return a, nil
}

// CycleAmmunition advances to the next registered type, wrapping.
func (c *Controller) CycleAmmunition() (core.AmmunitionType, error) {
	a, err := c.registry.Cycle()
	if err != nil {
		return core.AmmunitionType{}, err
	}
	c.logger.Info("ammunition cycled", "ammunition", a.Name)
	return a, nil
}

// Ammunition returns the active type.
func (c *Controller) Ammunition() core.AmmunitionType {
	a, _ := c.registry.Active()
	return a
}

// SetOverride replaces the override queue. Nil or empty returns to autonomous.
func (c *Controller) SetOverride(queue []core.ManualWaypoint) error {
	if err := c.override.Set(queue); err != nil {
		return err
	}
	c.logger.Info("override set", "waypoints", len(queue), "state", c.override.State().String())
	return nil
}

// RequestFire asks for one manual shot while an override is dwelling.
func (c *Controller) RequestFire() bool {
	return c.override.RequestFire()
}

// OverrideState returns the override phase.
func (c *Controller) OverrideState() override.State {
	return c.override.State()
}

// Orientation returns the servo yaw and pitch in degrees.
func (c *Controller) Orientation() (yaw, pitch float64) {
	return c.yaw, c.pitch
}

// Designations returns the active cooperative designations.
func (c *Controller) Designations() []core.Designation {
	return c.fusion.Designations()
}

// Advance runs one tick of dt seconds against the given targets.
func (c *Controller) Advance(dt float64, targets []core.Target) core.Telemetry {
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}
	c.tick++
	c.time += dt
	var diags []core.Diagnostic

	// resources
	if tr, ok := c.heat.Tick(dt); ok {
		c.heatEdge(tr, &diags)
	}
	if tr, ok := c.power.Tick(dt); ok {
		c.powerEdge(tr, &diags)
	}
	c.fusion.Update(dt, c.tick)
	bonus, stats := c.fusion.Bonuses(targets, c.reward.threatBias)
	round := c.Ammunition()

	auth := c.arbitrate(dt, targets, bonus, round, &diags)

	tel := core.Telemetry{
		Tick:          c.tick,
		Time:          c.time,
		Authority:     auth.kind(),
		Ammunition:    round.Name,
		OverrideState: c.override.State().String(),
		Designations:  stats,
		CooldownScale: c.reward.cooldownScale,
		ThreatBias:    c.reward.threatBias,
	}

	probing := c.cb.ObstructionCheck != nil
	desiredYaw, desiredPitch := c.yaw, c.pitch
	var attempts []core.FireSource
	var obstruction *core.ObstructionResult
	var shot shotTarget

	switch a := auth.(type) {
	case autonomous:
		sel := a.selection
		if y, p, err := geo.YawPitch(sel.AimPoint.Sub(c.cfg.Position)); err == nil {
			desiredYaw, desiredPitch = y, p
		}
		attempts = []core.FireSource{core.FireSourceAutonomous}
		if probing {
			res := sel.Obstruction
			obstruction = &res
		}
		aim := sel.AimPoint
		tel.TargetID = sel.Target.ID
		tel.TrackedIDs = sel.Tracked
		tel.AimPoint = &aim
		tel.InterceptTime = sel.InterceptTime
		tel.Led = sel.Led
		shot = shotTarget{id: sel.Target.ID, aim: aim, time: sel.InterceptTime}
	case overriding:
		desiredYaw, desiredPitch = a.step.Waypoint.Yaw, a.step.Waypoint.Pitch
		attempts = a.step.Attempts
	case idle:
		desiredYaw, desiredPitch = c.scan.Advance(dt)
		tel.TrackedIDs = a.selection.Tracked
		tel.Refusal = a.refusal
		if probing && len(a.selection.Probes) > 0 {
			res := a.selection.Probes[0].Result
			obstruction = &res
		}
	}
	desiredYaw = geo.WrapDegrees(desiredYaw)
	desiredPitch = c.envelope.ClampPitch(geo.Clamp(desiredPitch, -90, 90))
	tel.DesiredYaw, tel.DesiredPitch = desiredYaw, desiredPitch

	maxStep := c.cfg.MaxTurnRateDeg * dt
	c.yaw = geo.StepYaw(c.yaw, desiredYaw, maxStep)
	c.pitch = geo.StepPitch(c.pitch, desiredPitch, maxStep)

	for _, src := range attempts {
		if src != core.FireSourceAutonomous {
			shot = c.overrideShot(desiredYaw, desiredPitch)
			if probing && obstruction == nil {
				res, err := c.gate.Check(c.cfg.Position, shot.aim)
				if err != nil {
					c.callbackFailed(CallbackObstructionCheck, err, &diags)
				}
				obstruction = &res
			}
		}

		reason := c.check(desiredYaw, desiredPitch, obstruction, round)
		if reason != core.RefusalNone {
			c.metrics.refused.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("reason", string(reason))))
			if tel.Refusal == core.RefusalNone {
				tel.Refusal = reason
			}
			continue
		}
		tel.Shots = append(tel.Shots, c.fire(src, round, shot, &diags))
	}
	tel.Fired = len(tel.Shots) > 0
	if tel.Fired {
		tel.Refusal = core.RefusalNone
	}
	tel.Obstruction = obstruction

	tel.Yaw, tel.Pitch = c.yaw, c.pitch
	tel.FinalYaw, tel.FinalPitch = c.blend(&diags)

	tel.CooldownRemaining = c.cooldownRemaining()
	tel.Heat = c.heat.Value()
	tel.HeatCapacity = c.heat.Capacity()
	tel.Overheated = c.heat.Overheated()
	tel.Power = c.power.Value()
	tel.PowerCapacity = c.power.Capacity()
	tel.Depleted = c.power.Depleted()
	tel.ScanPhase = c.scan.Phase()

	c.emit(&tel, round, &diags)
	c.metrics.publish(tel.Heat, tel.Power)
	return tel
}

// shotTarget is what a released shot is aimed at.
type shotTarget struct {
	id   string
	aim  core.Vector3
	time float64
}

func (c *Controller) arbitrate(dt float64, targets []core.Target, bonus map[string]float64, round core.AmmunitionType, diags *[]core.Diagnostic) authority {
	if c.override.Active() {
		return overriding{step: c.override.Advance(dt)}
	}

	sel, err := c.prioritizer.Select(c.cfg.Position, targets, bonus, round.ProjectileSpeed)
	for _, p := range sel.Probes {
		if p.Err != nil {
			c.callbackFailed(CallbackObstructionCheck, p.Err, diags)
		}
	}
	if err != nil {
		refusal := core.RefusalNoTarget
		if len(sel.Tracked) > 0 {
			refusal = core.RefusalObstructed
		}
		return idle{selection: sel, refusal: refusal}
	}
	return autonomous{selection: sel}
}

// overrideShot aims along the commanded direction out to the detection radius.
func (c *Controller) overrideShot(yaw, pitch float64) shotTarget {
	reach := c.envelope.MaxRange()
	if reach <= 0 {
		reach = defaultProbeReach
	}
	speed := c.Ammunition().ProjectileSpeed
	return shotTarget{
		aim:  c.cfg.Position.Add(geo.Direction(yaw, pitch).Scale(reach)),
		time: reach / speed,
	}
}

// check evaluates the fire gate in order: arc, obstruction, cooldown, heat, power.
func (c *Controller) check(desiredYaw, desiredPitch float64, obstruction *core.ObstructionResult, round core.AmmunitionType) core.RefusalReason {
	if geo.AngularSeparation(c.yaw, c.pitch, desiredYaw, desiredPitch) > c.cfg.FireArcDeg+arcEpsilon {
		return core.RefusalArc
	}
	if obstruction != nil && obstruction.Blocked {
		return core.RefusalObstructed
	}
	if c.cooldownRemaining() > 0 {
		return core.RefusalCooldown
	}
	if reason := c.heat.Check(round.HeatCost); reason != core.RefusalNone {
		return reason
	}
	return c.power.Check(round.PowerDraw)
}

func (c *Controller) fire(src core.FireSource, round core.AmmunitionType, shot shotTarget, diags *[]core.Diagnostic) core.FireEvent {
	c.lastFire = c.time
	if tr, ok := c.heat.Add(round.HeatCost); ok {
		c.heatEdge(tr, diags)
	}
	if tr, ok := c.power.Draw(round.PowerDraw); ok {
		c.powerEdge(tr, diags)
	}

	ev := core.FireEvent{
		Tick:          c.tick,
		Time:          c.time,
		Source:        src,
		TargetID:      shot.id,
		Ammunition:    round.Name,
		Damage:        round.Damage,
		AimPoint:      shot.aim,
		InterceptTime: shot.time,
		Yaw:           c.yaw,
		Pitch:         c.pitch,
	}

	c.metrics.fired.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("source", string(src))))
	c.logger.Debug("shot fired", "tick", c.tick, "source", src, "target", shot.id, "ammunition", round.Name)

	if c.cb.Fire != nil {
		c.invoke(CallbackFire, diags, func() error {
			c.cb.Fire(ev)
			return nil
		})
	}
	return ev
}

func (c *Controller) scaledCooldown() float64 {
	if c.cfg.FireCooldown <= 0 {
		return 0
	}
	return math.Max(minScaledCooldown, c.cfg.FireCooldown*c.reward.cooldownScale)
}

// cooldownRemaining is the scaled cooldown minus the time since the last
// shot, or zero once that much time has elapsed.
func (c *Controller) cooldownRemaining() float64 {
	remaining := c.scaledCooldown() - (c.time - c.lastFire)
	if remaining <= cooldownEpsilon {
		return 0
	}
	return remaining
}

func (c *Controller) heatEdge(tr budget.Transition, diags *[]core.Diagnostic) {
	if tr.Latched {
		c.logger.Info("turret overheated", "tick", c.tick, "heat", tr.New)
	} else {
		c.logger.Info("turret cooled", "tick", c.tick, "heat", tr.New)
	}
	if c.cb.HeatFeedback == nil {
		return
	}
	c.invoke(CallbackHeatFeedback, diags, func() error {
		c.cb.HeatFeedback(tr.Old, tr.New, tr.Latched)
		return nil
	})
}

func (c *Controller) powerEdge(tr budget.Transition, diags *[]core.Diagnostic) {
	if tr.Latched {
		c.logger.Info("turret power depleted", "tick", c.tick, "power", tr.New)
	} else {
		c.logger.Info("turret power restored", "tick", c.tick, "power", tr.New)
	}
	if c.cb.PowerFeedback == nil {
		return
	}
	c.invoke(CallbackPowerFeedback, diags, func() error {
		c.cb.PowerFeedback(tr.Old, tr.New, tr.Latched)
		return nil
	})
}

// blend applies the external orientation offset without touching servo state.
func (c *Controller) blend(diags *[]core.Diagnostic) (yaw, pitch float64) {
	yaw, pitch = c.yaw, c.pitch
	if c.cb.OrientationOffset == nil || c.cfg.OrientationBlendWeight == 0 {
		return yaw, pitch
	}

	c.invoke(CallbackOrientationOffset, diags, func() error {
		dYaw, dPitch := c.cb.OrientationOffset(c.yaw, c.pitch)
		if !finite(dYaw, dPitch) {
			return fmt.Errorf("non-finite offset (%v, %v)", dYaw, dPitch)
		}
		w := c.cfg.OrientationBlendWeight
		yaw = geo.WrapDegrees(c.yaw + w*dYaw)
		pitch = c.envelope.ClampPitch(geo.Clamp(c.pitch+w*dPitch, -90, 90))
		return nil
	})
	return yaw, pitch
}

// emit runs the reward, telemetry, exporter, effects and capture callbacks in
// that order. Each sees the diagnostics recorded so far.
func (c *Controller) emit(tel *core.Telemetry, round core.AmmunitionType, diags *[]core.Diagnostic) {
	snapshot := func() core.Telemetry {
		t := *tel
		t.Diagnostics = *diags
		return t.Clone()
	}

	if c.cb.ObstructionFeedback != nil && tel.Obstruction != nil {
		res := tel.Obstruction.Clone()
		c.invoke(CallbackObstructionFeedback, diags, func() error {
			c.cb.ObstructionFeedback(res)
			return nil
		})
	}

	if c.cb.RLTraining != nil {
		t := snapshot()
		features := buildFeatures(t, round)
		c.invoke(CallbackRLTraining, diags, func() error {
			r, ok := c.cb.RLTraining(features, t)
			if !ok {
				return nil
			}
			applied, ok := c.reward.apply(r)
			if !ok {
				return fmt.Errorf("non-finite reward %v", r)
			}
			tel.Reward = &applied
			return nil
		})
	}

	if c.cb.Telemetry != nil {
		t := snapshot()
		c.invoke(CallbackTelemetry, diags, func() error {
			c.cb.Telemetry(t)
			return nil
		})
	}

	if c.cb.Exporter != nil {
		t := snapshot()
		c.invoke(CallbackExporter, diags, func() error {
			return c.cb.Exporter.Send(t)
		})
	}

	if c.cb.Effects != nil && (tel.Fired || tel.Obstruction != nil) {
		t := snapshot()
		var res core.ObstructionResult
		if tel.Obstruction != nil {
			res = tel.Obstruction.Clone()
		}
		c.invoke(CallbackEffects, diags, func() error {
			c.cb.Effects(t, res)
			return nil
		})
	}

	if c.cb.Capture != nil {
		t := snapshot()
		frame := c.frame
		c.invoke(CallbackCapture, diags, func() error {
			c.cb.Capture(frame, t)
			return nil
		})
	}
	c.frame++

	tel.Diagnostics = *diags
}
