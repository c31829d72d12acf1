// Package targeting picks the target the turret should engage.
package targeting

import (
	"errors"
	"sort"

	"github.com/OCAP2/sentry/internal/geo"
	"github.com/OCAP2/sentry/pkg/core"
)

// ErrNoTarget is returned when no target is engageable this tick.
var ErrNoTarget = errors.New("no engageable target")

// Probe is one obstruction check made while selecting.
type Probe struct {
	TargetID string
	Result   core.ObstructionResult
	Err      error
}

// Selection is the outcome of one prioritization pass. Tracked and Probes
// are filled even when no target is selected.
type Selection struct {
	Target   core.Target
	Score    float64
	Distance float64
	// AimPoint is the intercept point, or the current position when no
	// intercept exists.
	AimPoint      core.Vector3
	InterceptTime float64
	Led           bool
	Obstruction   core.ObstructionResult

	Tracked []string
	Probes  []Probe
}

// Prioritizer ranks targets by intrinsic score plus cooperative bonus.
type Prioritizer struct {
	envelope          *geo.Envelope
	gate              *Gate
	maxPredictionTime float64
}

// NewPrioritizer creates a prioritizer. A nil envelope accepts everything.
func NewPrioritizer(envelope *geo.Envelope, gate *Gate, maxPredictionTime float64) *Prioritizer {
	return &Prioritizer{
		envelope:          envelope,
		gate:              gate,
		maxPredictionTime: maxPredictionTime,
	}
}

type candidate struct {
	target   core.Target
	score    float64
	distance float64
}

// Select returns the highest scoring target inside the envelope whose line of
// fire is clear. Ties go to the nearest target, then the lowest id.
func (p *Prioritizer) Select(shooter core.Vector3, targets []core.Target, bonus map[string]float64, projectileSpeed float64) (Selection, error) {
	var sel Selection

	candidates := make([]candidate, 0, len(targets))
	for _, t := range targets {
		if !t.Position.IsFinite() {
			continue
		}
		if p.envelope != nil && !p.envelope.Contains(shooter, t.Position) {
			continue
		}
		candidates = append(candidates, candidate{
			target:   t,
			score:    t.ThreatScore + bonus[t.ID],
			distance: t.Position.Distance(shooter),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.target.ID < b.target.ID
	})

	sel.Tracked = make([]string, len(candidates))
	for i, c := range candidates {
		sel.Tracked[i] = c.target.ID
	}

	for _, c := range candidates {
		aim, t, led := p.aim(shooter, c.target, projectileSpeed)

		res, err := p.gate.Check(shooter, aim)
		sel.Probes = append(sel.Probes, Probe{TargetID: c.target.ID, Result: res, Err: err})
		if res.Blocked {
			continue
		}

		sel.Target = c.target
		sel.Score = c.score
		sel.Distance = c.distance
		sel.AimPoint = aim
		sel.InterceptTime = t
		sel.Led = led
		sel.Obstruction = res
		return sel, nil
	}

	return sel, ErrNoTarget
}

// aim solves the intercept, falling back to direct aim at the current position.
func (p *Prioritizer) aim(shooter core.Vector3, t core.Target, speed float64) (core.Vector3, float64, bool) {
	ic, err := geo.SolveIntercept(shooter, t.Position, t.Velocity, speed, p.maxPredictionTime)
	if err != nil {
		direct := 0.0
		if speed > 0 {
			direct = t.Position.Distance(shooter) / speed
		}
		return t.Position, direct, false
	}
	return ic.AimPoint, ic.Time, true
}
