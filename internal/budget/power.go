package budget

import (
	"math"

	"github.com/OCAP2/sentry/pkg/core"
)

// PowerParams configures a power pool.
type PowerParams struct {
	Capacity float64
	Recharge float64 // units per second
	// ResumeAt releases the depleted latch once power recharges to it.
	// Zero means a quarter of capacity.
	ResumeAt float64
}

// Sanitize fills zero-valued optional fields and validates the rest.
func (p PowerParams) Sanitize() (PowerParams, error) {
	if !(p.Capacity > 0) || math.IsInf(p.Capacity, 0) {
		return p, invalid("power capacity must be positive, got %v", p.Capacity)
	}
	if !(p.Recharge >= 0) || math.IsInf(p.Recharge, 0) {
		return p, invalid("power recharge must not be negative, got %v", p.Recharge)
	}
	if p.ResumeAt == 0 {
		p.ResumeAt = p.Capacity / 4
	}
	if !(p.ResumeAt > 0) || p.ResumeAt > p.Capacity {
		return p, invalid("power resume level %v outside (0, %v]", p.ResumeAt, p.Capacity)
	}
	return p, nil
}

// Power is a depleting pool that drains per shot and recharges over time.
type Power struct {
	p        PowerParams
	value    float64
	depleted bool
}

// NewPower creates a fully charged pool.
func NewPower(p PowerParams) (*Power, error) {
	p, err := p.Sanitize()
	if err != nil {
		return nil, err
	}
	return &Power{p: p, value: p.Capacity}, nil
}

// Tick recharges for dt seconds and reports recovery from depletion.
func (w *Power) Tick(dt float64) (Transition, bool) {
	old := w.value
	w.value = math.Min(w.p.Capacity, w.value+w.p.Recharge*dt)

	if w.depleted && w.value >= w.p.ResumeAt-epsilon {
		w.depleted = false
		return Transition{Old: old, New: w.value, Latched: false}, true
	}
	return Transition{}, false
}

// Check reports why a shot drawing draw cannot be fired, or RefusalNone.
func (w *Power) Check(draw float64) core.RefusalReason {
	if w.depleted {
		return core.RefusalDepleted
	}
	if w.value+epsilon < draw {
		return core.RefusalPower
	}
	return core.RefusalNone
}

// Draw removes power for a fired shot and reports entry into depletion.
func (w *Power) Draw(draw float64) (Transition, bool) {
	old := w.value
	w.value = math.Max(0, w.value-math.Max(0, draw))

	if !w.depleted && w.value <= epsilon {
		w.depleted = true
		return Transition{Old: old, New: w.value, Latched: true}, true
	}
	return Transition{}, false
}

// Value returns current power.
func (w *Power) Value() float64 { return w.value }

// Capacity returns the pool ceiling.
func (w *Power) Capacity() float64 { return w.p.Capacity }

// Ratio returns power as a fraction of capacity.
func (w *Power) Ratio() float64 { return w.value / w.p.Capacity }

// Depleted reports whether the depletion latch is set.
func (w *Power) Depleted() bool { return w.depleted }

// Params returns the sanitized parameters.
func (w *Power) Params() PowerParams { return w.p }
