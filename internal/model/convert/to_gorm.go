package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// vectorToPoint converts a core.Vector3 to a geom.Point
func vectorToPoint(v core.Vector3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v.X, Y: v.Y}, Z: v.Z, Type: geom.CoordinatesType(geom.DimXYZ)}
	return geom.NewPoint(coords)
}

// toJSON marshals v for a JSON column, falling back to empty when nothing is set.
func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		Name:      s.Name,
		Turret:    s.Turret,
		StartTime: s.StartTime,
		TickRate:  s.TickRate,
	}
}

// CoreToTelemetryFrame converts one captured frame. The session ID is stamped
// by the writer.
func CoreToTelemetryFrame(frame uint64, t core.Telemetry) model.TelemetryFrame {
	f := model.TelemetryFrame{
		Time:              time.Now(),
		CaptureFrame:      frame,
		Tick:              t.Tick,
		SimTime:           t.Time,
		Authority:         string(t.Authority),
		Yaw:               t.Yaw,
		Pitch:             t.Pitch,
		FinalYaw:          t.FinalYaw,
		FinalPitch:        t.FinalPitch,
		TargetID:          t.TargetID,
		TrackedIDs:        toJSON(t.TrackedIDs, "[]"),
		InterceptTime:     t.InterceptTime,
		Led:               t.Led,
		Fired:             t.Fired,
		Shots:             len(t.Shots),
		Refusal:           string(t.Refusal),
		Ammunition:        t.Ammunition,
		CooldownRemaining: t.CooldownRemaining,
		Heat:              t.Heat,
		Overheated:        t.Overheated,
		Power:             t.Power,
		Depleted:          t.Depleted,
		OverrideState:     t.OverrideState,
		ScanPhase:         t.ScanPhase,
		Designations:      t.Designations.Count,
		CooperativeThreat: t.Designations.Threat,
		SensorBreakdown:   toJSON(t.Designations.Breakdown, "{}"),
		CooldownScale:     t.CooldownScale,
		ThreatBias:        t.ThreatBias,
		Diagnostics:       toJSON(t.Diagnostics, "[]"),
	}
	if t.AimPoint != nil {
		f.AimPoint = vectorToPoint(*t.AimPoint)
	}
	if t.Obstruction != nil {
		f.Obstructed = t.Obstruction.Blocked
	}
	if t.Reward != nil {
		f.Reward = sql.NullFloat64{Float64: *t.Reward, Valid: true}
	}
	return f
}

// CoreToFireEvent converts a shot captured at the given frame.
func CoreToFireEvent(frame uint64, e core.FireEvent) model.FireEvent {
	return model.FireEvent{
		Time:          time.Now(),
		CaptureFrame:  frame,
		Tick:          e.Tick,
		SimTime:       e.Time,
		Source:        string(e.Source),
		TargetID:      e.TargetID,
		Ammunition:    e.Ammunition,
		Damage:        e.Damage,
		AimPoint:      vectorToPoint(e.AimPoint),
		InterceptTime: e.InterceptTime,
		Yaw:           e.Yaw,
		Pitch:         e.Pitch,
	}
}
