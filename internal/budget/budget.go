// Package budget models the heat and power pools that gate firing cadence.
//
// Both pools latch a blocking state with hysteresis: heat latches overheated
// at its overheat level and releases at a lower resume level, power latches
// depleted at zero and releases once recharged to its resume level. Latch
// changes are reported as Transitions so the caller can notify listeners
// exactly once per edge.
package budget

import (
	"errors"
	"fmt"
)

const epsilon = 1e-9

// ErrInvalidParams is returned when pool parameters are out of range.
var ErrInvalidParams = errors.New("invalid budget parameters")

// Transition describes a latch edge.
type Transition struct {
	Old float64
	New float64
	// Latched is true on entry into the blocking state and false on recovery.
	Latched bool
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
