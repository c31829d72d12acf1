// Package override runs scripted waypoint sequences that take aim authority
// away from autonomous targeting.
package override

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/sentry/pkg/core"
)

// ErrInvalidWaypoint is returned when a waypoint cannot be executed.
var ErrInvalidWaypoint = errors.New("invalid waypoint")

const dwellEpsilon = 1e-9

// State is the override phase.
type State int

const (
	Idle State = iota
	Dwelling
	Complete
)

func (s State) String() string {
	switch s {
	case Dwelling:
		return "DWELLING"
	case Complete:
		return "COMPLETE"
	default:
		return "IDLE"
	}
}

// Step is what the override decided for one tick.
type Step struct {
	// Active is true while the override holds aim authority.
	Active   bool
	Waypoint core.ManualWaypoint
	Index    int
	// Attempts lists shots to try this tick. Gated attempts are dropped.
	Attempts []core.FireSource
}

// Controller sequences a waypoint queue.
type Controller struct {
	queue      []core.ManualWaypoint
	cursor     int
	state      State
	elapsed    float64
	burstLeft  int
	sinceBurst float64
	fired      bool
	manual     bool
}

// New returns an idle controller.
func New() *Controller {
	return &Controller{}
}

// Set replaces the queue. A nil or empty queue returns to idle.
func (c *Controller) Set(queue []core.ManualWaypoint) error {
	for i, wp := range queue {
		if err := validate(wp); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	c.queue = append([]core.ManualWaypoint(nil), queue...)
	c.cursor = 0
	c.manual = false
	if len(c.queue) == 0 {
		c.state = Idle
		return nil
	}
	c.state = Dwelling
	c.enter()
	return nil
}

func validate(wp core.ManualWaypoint) error {
	switch {
	case math.IsNaN(wp.Yaw) || math.IsInf(wp.Yaw, 0) || math.IsNaN(wp.Pitch) || math.IsInf(wp.Pitch, 0):
		return fmt.Errorf("%w: orientation must be finite", ErrInvalidWaypoint)
	case wp.Dwell < 0 || math.IsNaN(wp.Dwell):
		return fmt.Errorf("%w: dwell must not be negative", ErrInvalidWaypoint)
	case wp.Burst < 0:
		return fmt.Errorf("%w: burst must not be negative", ErrInvalidWaypoint)
	case wp.BurstInterval < 0:
		return fmt.Errorf("%w: burst interval must not be negative", ErrInvalidWaypoint)
	}
	return nil
}

func (c *Controller) enter() {
	c.elapsed = 0
	c.sinceBurst = 0
	c.fired = false
	c.burstLeft = c.queue[c.cursor].Burst
}

// RequestFire asks for one manual shot on the next tick. It is ignored unless
// the override is dwelling.
func (c *Controller) RequestFire() bool {
	if c.state != Dwelling {
		return false
	}
	c.manual = true
	return true
}

// State returns the current phase.
func (c *Controller) State() State {
	return c.state
}

// Active reports whether the override holds aim authority.
func (c *Controller) Active() bool {
	return c.state == Dwelling
}

// Cursor returns the index of the current waypoint.
func (c *Controller) Cursor() int {
	return c.cursor
}

// Remaining returns the number of waypoints not yet completed.
func (c *Controller) Remaining() int {
	if c.state != Dwelling {
		return 0
	}
	return len(c.queue) - c.cursor
}

// Advance moves the sequence forward by dt seconds.
func (c *Controller) Advance(dt float64) Step {
	if c.state != Dwelling {
		return Step{}
	}

	step := Step{Active: true, Waypoint: c.queue[c.cursor], Index: c.cursor}
	wp := step.Waypoint
	c.elapsed += dt

	if c.manual {
		c.manual = false
		step.Attempts = append(step.Attempts, core.FireSourceManual)
	}

	if c.elapsed+dwellEpsilon < wp.Dwell {
		return step
	}

	if c.burstLeft > 0 {
		c.sinceBurst += dt
		if !c.fired || c.sinceBurst+dwellEpsilon >= wp.BurstInterval {
			step.Attempts = append(step.Attempts, core.FireSourceBurst)
			c.burstLeft--
			c.sinceBurst = 0
			c.fired = true
		}
	}

	if c.burstLeft == 0 {
		c.next()
	}
	return step
}

func (c *Controller) next() {
	c.cursor++
	if c.cursor >= len(c.queue) {
		c.state = Complete
		c.manual = false
		return
	}
	c.enter()
}
