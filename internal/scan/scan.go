// Package scan sweeps the turret when nothing else holds aim authority.
package scan

import "math"

// Pattern is a phase accumulator driving a figure-eight sweep. Yaw follows
// one sine period per cycle and pitch follows two.
type Pattern struct {
	yawAmplitude   float64
	pitchAmplitude float64
	period         float64
	phase          float64
}

// New returns a pattern. A non-positive period freezes the sweep at center.
func New(yawAmplitude, pitchAmplitude, period float64) *Pattern {
	return &Pattern{
		yawAmplitude:   math.Abs(yawAmplitude),
		pitchAmplitude: math.Abs(pitchAmplitude),
		period:         period,
	}
}

// Advance moves the phase forward by dt seconds and returns the new
// orientation offset.
func (p *Pattern) Advance(dt float64) (yaw, pitch float64) {
	if p.period > 0 && dt > 0 {
		p.phase = math.Mod(p.phase+dt, p.period)
	}
	return p.Orientation()
}

// Orientation returns the offset for the current phase without advancing.
func (p *Pattern) Orientation() (yaw, pitch float64) {
	if p.period <= 0 {
		return 0, 0
	}
	u := p.phase / p.period
	return p.yawAmplitude * math.Sin(2*math.Pi*u), p.pitchAmplitude * math.Sin(4*math.Pi*u)
}

// Phase returns the normalized phase in [0, 1).
func (p *Pattern) Phase() float64 {
	if p.period <= 0 {
		return 0
	}
	return p.phase / p.period
}

// Reset returns the sweep to center.
func (p *Pattern) Reset() {
	p.phase = 0
}
