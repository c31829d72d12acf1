package budget

import (
	"math"

	"github.com/OCAP2/sentry/pkg/core"
)

// HeatParams configures a heat pool.
type HeatParams struct {
	Capacity    float64
	Dissipation float64 // units per second
	// OverheatAt latches the overheated state. Zero means Capacity.
	OverheatAt float64
	// ResumeAt releases the overheated latch once heat falls to it.
	ResumeAt float64
	// CoolingFraction limits dissipation to ticks where heat is at or below
	// this fraction of capacity, unless overheated. Zero means 1 (always cool).
	CoolingFraction float64
}

// Sanitize fills zero-valued optional fields and validates the rest.
func (p HeatParams) Sanitize() (HeatParams, error) {
	if !(p.Capacity > 0) || math.IsInf(p.Capacity, 0) {
		return p, invalid("heat capacity must be positive, got %v", p.Capacity)
	}
	if !(p.Dissipation >= 0) || math.IsInf(p.Dissipation, 0) {
		return p, invalid("heat dissipation must not be negative, got %v", p.Dissipation)
	}
	if p.OverheatAt == 0 {
		p.OverheatAt = p.Capacity
	}
	if !(p.OverheatAt > 0) || p.OverheatAt > p.Capacity {
		return p, invalid("overheat level %v outside (0, %v]", p.OverheatAt, p.Capacity)
	}
	if !(p.ResumeAt >= 0) || p.ResumeAt >= p.OverheatAt {
		return p, invalid("heat resume level %v must be in [0, %v)", p.ResumeAt, p.OverheatAt)
	}
	if p.CoolingFraction == 0 {
		p.CoolingFraction = 1
	}
	if !(p.CoolingFraction > 0) || p.CoolingFraction > 1 {
		return p, invalid("cooling fraction %v outside (0, 1]", p.CoolingFraction)
	}
	return p, nil
}

// Heat is an accumulating pool that rises per shot and dissipates over time.
type Heat struct {
	p          HeatParams
	value      float64
	overheated bool
}

// NewHeat creates an empty heat pool.
func NewHeat(p HeatParams) (*Heat, error) {
	p, err := p.Sanitize()
	if err != nil {
		return nil, err
	}
	return &Heat{p: p}, nil
}

// Tick dissipates heat for dt seconds and reports recovery from overheat.
func (h *Heat) Tick(dt float64) (Transition, bool) {
	old := h.value
	if h.overheated || h.value <= h.p.CoolingFraction*h.p.Capacity+epsilon {
		h.value = math.Max(0, h.value-h.p.Dissipation*dt)
	}

	if h.overheated && h.value <= h.p.ResumeAt+epsilon {
		h.overheated = false
		return Transition{Old: old, New: h.value, Latched: false}, true
	}
	return Transition{}, false
}

// Check reports why a shot costing cost cannot be fired, or RefusalNone.
func (h *Heat) Check(cost float64) core.RefusalReason {
	if h.overheated {
		return core.RefusalOverheated
	}
	if h.value+cost > h.p.Capacity+epsilon {
		return core.RefusalHeat
	}
	return core.RefusalNone
}

// Add accumulates heat for a fired shot and reports entry into overheat.
func (h *Heat) Add(cost float64) (Transition, bool) {
	old := h.value
	h.value = math.Min(h.p.Capacity, h.value+math.Max(0, cost))

	if !h.overheated && h.value >= h.p.OverheatAt-epsilon {
		h.overheated = true
		return Transition{Old: old, New: h.value, Latched: true}, true
	}
	return Transition{}, false
}

// Value returns current heat.
func (h *Heat) Value() float64 { return h.value }

// Capacity returns the pool ceiling.
func (h *Heat) Capacity() float64 { return h.p.Capacity }

// Ratio returns heat as a fraction of capacity.
func (h *Heat) Ratio() float64 { return h.value / h.p.Capacity }

// Overheated reports whether the overheat latch is set.
func (h *Heat) Overheated() bool { return h.overheated }

// Params returns the sanitized parameters.
func (h *Heat) Params() HeatParams { return h.p }
