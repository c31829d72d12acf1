package targeting

import (
	"fmt"

	"github.com/OCAP2/sentry/pkg/core"
)

// ObstructionFunc probes the line of fire between two points.
type ObstructionFunc func(from, to core.Vector3) core.ObstructionResult

// Gate wraps an optional obstruction probe. A nil probe never blocks.
type Gate struct {
	probe ObstructionFunc
}

// NewGate creates a gate around probe.
func NewGate(probe ObstructionFunc) *Gate {
	return &Gate{probe: probe}
}

// Check runs the probe. A panicking probe is reported as an error and the
// line of fire is treated as blocked.
func (g *Gate) Check(from, to core.Vector3) (res core.ObstructionResult, err error) {
	if g == nil || g.probe == nil {
		return core.ObstructionResult{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("obstruction check panicked: %v", r)
			res = core.ObstructionResult{
				Blocked:  true,
				Metadata: map[string]any{"error": err.Error()},
			}
		}
	}()

	return g.probe(from, to), nil
}
