package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/OCAP2/sentry/internal/geo"
	"github.com/OCAP2/sentry/pkg/core"
)

// scenario timing, in simulated seconds
const (
	ammoCycleInterval = 8.0
	overrideStart     = 16.0
	overrideEnd       = 19.0
	radarInterval     = 0.5
	despawnRange      = 100.0
	metersPerDegree   = 111_320.0
)

// range origin used by the allied radar
var rangeOrigin = geo.Geodetic{Longitude: 14.2644, Latitude: 50.1071, Altitude: 310}

// scenarioAmmunition is the loadout cycled during the run.
var scenarioAmmunition = []core.AmmunitionType{
	{Name: "standard", ProjectileSpeed: 55, Damage: 10, HeatCost: 1.2, PowerDraw: 1.5},
	{Name: "piercing", ProjectileSpeed: 70, Damage: 14, HeatCost: 1.8, PowerDraw: 1.5},
	{Name: "rapid", ProjectileSpeed: 45, Damage: 6, HeatCost: 0.8, PowerDraw: 1.5},
}

// overrideWaypoints is the manual sweep flown during the override window.
var overrideWaypoints = []core.ManualWaypoint{
	{Yaw: 120, Pitch: 5, Dwell: 0.4, Burst: 3, BurstInterval: 0.08},
	{Yaw: -70, Pitch: 3, Dwell: 0.5},
	{Yaw: 15, Pitch: 0, Dwell: 0.6},
}

type movingTarget struct {
	target core.Target
	accel  core.Vector3
}

type coverSphere struct {
	center core.Vector3
	radius float64
}

// Turret is the part of the controller the scenario drives.
type Turret interface {
	Advance(dt float64, targets []core.Target) core.Telemetry
	CycleAmmunition() (core.AmmunitionType, error)
	SetOverride(queue []core.ManualWaypoint) error
	IngestDesignations(reports []core.Designation)
}

// Scenario is a seeded engagement: drifting targets, cover objects, an
// ammunition rotation, a manual override window and an allied radar.
type Scenario struct {
	rng     *rand.Rand
	targets []movingTarget
	cover   []coverSphere
	frame   *geo.LocalFrame

	time           float64
	nextAmmoCycle  float64
	nextRadarSweep float64
	overrideActive bool
	overrideDone   bool
}

// NewScenario spawns count targets from seed.
func NewScenario(seed int64, count int) *Scenario {
	s := &Scenario{
		rng: rand.New(rand.NewSource(seed)),
		cover: []coverSphere{
			{center: core.Vector3{X: 5, Y: 0, Z: 18}, radius: 3.5},
			{center: core.Vector3{X: -8, Y: 0, Z: 25}, radius: 4},
			{center: core.Vector3{X: 2, Y: 0, Z: 32}, radius: 2.5},
		},
		frame:         geo.NewLocalFrame(rangeOrigin),
		nextAmmoCycle: ammoCycleInterval,
	}
	for i := 0; i < count; i++ {
		s.spawn(fmt.Sprintf("target-%d", i))
	}
	return s
}

func (s *Scenario) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Scenario) spawn(id string) {
	s.targets = append(s.targets, movingTarget{
		target: core.Target{
			ID:          id,
			Position:    core.Vector3{X: s.uniform(-30, 30), Y: s.uniform(-2, 10), Z: s.uniform(20, 40)},
			Velocity:    core.Vector3{X: s.uniform(-5, 5), Y: s.uniform(-1, 1), Z: s.uniform(-5, -1)},
			ThreatScore: float64(s.rng.Intn(3)),
		},
		accel: core.Vector3{X: s.uniform(-0.5, 0.5), Y: s.uniform(-0.2, 0), Z: s.uniform(-0.5, 0)},
	})
}

// Time returns the simulated clock.
func (s *Scenario) Time() float64 {
	return s.time
}

// Targets returns the current target snapshots.
func (s *Scenario) Targets() []core.Target {
	out := make([]core.Target, len(s.targets))
	for i, t := range s.targets {
		out[i] = t.target
	}
	return out
}

// move integrates target motion and drops targets that leave the range.
func (s *Scenario) move(dt float64) {
	kept := s.targets[:0]
	for _, t := range s.targets {
		t.target.Velocity = t.target.Velocity.Add(t.accel.Scale(dt))
		t.target.Position = t.target.Position.Add(t.target.Velocity.Scale(dt))
		if t.target.Position.Length() < despawnRange {
			kept = append(kept, t)
		}
	}
	s.targets = kept
}

// ObstructionCheck intersects the segment from..to with the cover spheres.
func (s *Scenario) ObstructionCheck(from, to core.Vector3) core.ObstructionResult {
	dir := to.Sub(from)
	a := dir.LengthSquared()
	if a == 0 {
		return core.ObstructionResult{}
	}
	for _, c := range s.cover {
		oc := from.Sub(c.center)
		b := 2 * oc.Dot(dir)
		cc := oc.LengthSquared() - c.radius*c.radius
		disc := b*b - 4*a*cc
		if disc < 0 {
			continue
		}
		sq := math.Sqrt(disc)
		for _, t := range []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)} {
			if t > 0 && t < 1 {
				hit := from.Add(dir.Scale(t))
				return core.ObstructionResult{
					Blocked: true,
					Metadata: map[string]any{
						"hit":    hit,
						"radius": c.radius,
					},
				}
			}
		}
	}
	return core.ObstructionResult{}
}

// radarReport is the coordinate string the allied radar transmits for a contact.
func (s *Scenario) radarReport(p core.Vector3) string {
	lat := rangeOrigin.Latitude + p.Z/metersPerDegree
	lon := rangeOrigin.Longitude + p.X/(metersPerDegree*math.Cos(rangeOrigin.Latitude*math.Pi/180))
	return fmt.Sprintf("%.7f,%.7f,%.2f", lon, lat, rangeOrigin.Altitude+p.Y)
}

// radarSweep turns every contact into a designation by way of the radar's
// geodetic report.
func (s *Scenario) radarSweep() []core.Designation {
	out := make([]core.Designation, 0, len(s.targets))
	for _, t := range s.targets {
		g, err := geo.GeodeticFromString(s.radarReport(t.target.Position))
		if err != nil {
			continue
		}
		out = append(out, core.Designation{
			SourceID:   "radar-1/" + t.target.ID,
			SensorKind: "radar",
			TargetID:   t.target.ID,
			Position:   s.frame.ToLocal(g),
			Velocity:   t.target.Velocity,
			Confidence: 0.8,
			Latency:    0.2,
		})
	}
	return out
}

// Step advances the world by dt, applies scheduled events to the turret and
// runs one controller tick. It returns the tick's telemetry and the events
// that fired this step.
func (s *Scenario) Step(t Turret, dt float64) (core.Telemetry, []string) {
	s.time += dt
	s.move(dt)

	var events []string
	if s.time >= s.nextAmmoCycle {
		if a, err := t.CycleAmmunition(); err == nil {
			events = append(events, "ammunition "+a.Name)
		}
		s.nextAmmoCycle += ammoCycleInterval
	}

	switch {
	case !s.overrideActive && !s.overrideDone && s.time >= overrideStart:
		if err := t.SetOverride(overrideWaypoints); err == nil {
			s.overrideActive = true
			events = append(events, "override engaged")
		}
	case s.overrideActive && s.time >= overrideEnd:
		if err := t.SetOverride(nil); err == nil {
			s.overrideActive = false
			s.overrideDone = true
			events = append(events, "override released")
		}
	}

	if s.time >= s.nextRadarSweep {
		if reports := s.radarSweep(); len(reports) > 0 {
			t.IngestDesignations(reports)
		}
		s.nextRadarSweep += radarInterval
	}

	return t.Advance(dt, s.Targets()), events
}
