package influx

import (
	"context"
	"errors"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/sentry/pkg/core"
)

// Measurement names written by the backend.
const (
	MeasurementTelemetry = "turret_telemetry"
	MeasurementShot      = "turret_shot"
)

var errNoSession = errors.New("no active session")

// Backend records telemetry as InfluxDB points. It satisfies storage.Backend.
type Backend struct {
	manager *Manager
	session *core.Session
	start   time.Time
}

// NewBackend wraps a manager; Init connects it.
func NewBackend(manager *Manager) *Backend {
	return &Backend{manager: manager}
}

// Init connects to InfluxDB or falls back to the backup file.
func (b *Backend) Init() error {
	return b.manager.Connect(context.Background())
}

// Close flushes and closes the manager.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// StartSession tags subsequent points with the session.
func (b *Backend) StartSession(s *core.Session) error {
	session := *s
	b.session = &session
	b.start = s.StartTime
	if b.start.IsZero() {
		b.start = time.Now()
	}
	return nil
}

// EndSession flushes pending points.
func (b *Backend) EndSession() error {
	b.session = nil
	return b.manager.Flush()
}

// RecordTelemetry writes one telemetry point.
func (b *Backend) RecordTelemetry(frame uint64, t *core.Telemetry) error {
	if b.session == nil {
		return errNoSession
	}
	return b.manager.WritePoint(b.manager.cfg.Bucket, TelemetryPoint(b.session, b.timestamp(t.Time), frame, t))
}

// RecordFireEvent writes one shot point.
func (b *Backend) RecordFireEvent(frame uint64, e *core.FireEvent) error {
	if b.session == nil {
		return errNoSession
	}
	return b.manager.WritePoint(b.manager.cfg.Bucket, ShotPoint(b.session, b.timestamp(e.Time), frame, e))
}

// timestamp maps simulated seconds onto the session start.
func (b *Backend) timestamp(simSeconds float64) time.Time {
	return b.start.Add(time.Duration(simSeconds * float64(time.Second)))
}

// TelemetryPoint builds the point for a captured frame.
func TelemetryPoint(s *core.Session, ts time.Time, frame uint64, t *core.Telemetry) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementTelemetry)
	tags(p, "session", s.Name, "turret", s.Turret, "authority", string(t.Authority),
		"ammunition", t.Ammunition, "override", t.OverrideState, "refusal", string(t.Refusal))
	p.AddField("frame", int64(frame)).
		AddField("tick", int64(t.Tick)).
		AddField("yaw", t.Yaw).
		AddField("pitch", t.Pitch).
		AddField("final_yaw", t.FinalYaw).
		AddField("final_pitch", t.FinalPitch).
		AddField("fired", t.Fired).
		AddField("shots", len(t.Shots)).
		AddField("heat", t.Heat).
		AddField("overheated", t.Overheated).
		AddField("power", t.Power).
		AddField("depleted", t.Depleted).
		AddField("cooldown_remaining", t.CooldownRemaining).
		AddField("designations", t.Designations.Count).
		AddField("cooperative_threat", t.Designations.Threat).
		AddField("cooldown_scale", t.CooldownScale).
		AddField("threat_bias", t.ThreatBias).
		AddField("diagnostics", len(t.Diagnostics)).
		SetTime(ts)
	if t.TargetID != "" {
		p.AddField("target", t.TargetID)
	}
	if t.Reward != nil {
		p.AddField("reward", *t.Reward)
	}
	return p
}

// ShotPoint builds the point for a fire event.
func ShotPoint(s *core.Session, ts time.Time, frame uint64, e *core.FireEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementShot)
	tags(p, "session", s.Name, "turret", s.Turret, "source", string(e.Source), "ammunition", e.Ammunition)
	p.AddField("frame", int64(frame)).
		AddField("tick", int64(e.Tick)).
		AddField("damage", e.Damage).
		AddField("yaw", e.Yaw).
		AddField("pitch", e.Pitch).
		AddField("intercept_time", e.InterceptTime).
		AddField("aim_x", e.AimPoint.X).
		AddField("aim_y", e.AimPoint.Y).
		AddField("aim_z", e.AimPoint.Z).
		SetTime(ts)
	if e.TargetID != "" {
		p.AddField("target", e.TargetID)
	}
	return p
}

// tags adds key/value pairs, skipping empty values which line protocol rejects.
func tags(p *influxdb2_write.Point, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			p.AddTag(kv[i], kv[i+1])
		}
	}
}
