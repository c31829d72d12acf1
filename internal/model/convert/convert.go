// Package convert maps between the domain types in pkg/core and the GORM
// models persisted by the database backends.
package convert

import (
	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToVector converts a geom.Point back to a core.Vector3. Empty points
// map to the zero vector.
func pointToVector(p geom.Point) core.Vector3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vector3{}
	}
	return core.Vector3{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:        s.ID,
		Name:      s.Name,
		Turret:    s.Turret,
		StartTime: s.StartTime,
		TickRate:  s.TickRate,
	}
}

// FireEventToCore converts a GORM FireEvent to a core.FireEvent.
func FireEventToCore(e model.FireEvent) core.FireEvent {
	return core.FireEvent{
		Tick:          e.Tick,
		Time:          e.SimTime,
		Source:        core.FireSource(e.Source),
		TargetID:      e.TargetID,
		Ammunition:    e.Ammunition,
		Damage:        e.Damage,
		AimPoint:      pointToVector(e.AimPoint),
		InterceptTime: e.InterceptTime,
		Yaw:           e.Yaw,
		Pitch:         e.Pitch,
	}
}
