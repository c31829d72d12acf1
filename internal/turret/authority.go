package turret

import (
	"github.com/OCAP2/sentry/internal/override"
	"github.com/OCAP2/sentry/internal/targeting"
	"github.com/OCAP2/sentry/pkg/core"
)

// authority decides who aims the turret for one tick. Exactly one variant is
// produced per tick.
type authority interface {
	kind() core.Authority
}

// autonomous aims at the prioritizer's selection.
type autonomous struct {
	selection targeting.Selection
}

// overriding aims at the current waypoint.
type overriding struct {
	step override.Step
}

// idle sweeps the scan pattern. refusal explains why nothing was selected.
type idle struct {
	selection targeting.Selection
	refusal   core.RefusalReason
}

func (autonomous) kind() core.Authority { return core.AuthorityAutonomous }
func (overriding) kind() core.Authority { return core.AuthorityOverride }
func (idle) kind() core.Authority       { return core.AuthorityIdle }
