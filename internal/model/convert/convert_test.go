package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/sentry/internal/model"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := CoreToSession(core.Session{Name: "demo", Turret: "alpha", StartTime: start, TickRate: 30})

	assert.Equal(t, "demo", s.Name)
	assert.Equal(t, "alpha", s.Turret)
	assert.Equal(t, start, s.StartTime)
	assert.Equal(t, 30.0, s.TickRate)
	assert.False(t, s.EndTime.Valid)
}

func TestSessionToCore(t *testing.T) {
	var s model.Session
	s.ID = 7
	s.Name = "demo"
	s.TickRate = 20

	got := SessionToCore(s)
	assert.Equal(t, uint(7), got.ID)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, 20.0, got.TickRate)
}

func TestCoreToTelemetryFrame(t *testing.T) {
	reward := 1.5
	aim := core.Vector3{X: 10, Y: 2, Z: 1}
	tel := core.Telemetry{
		Tick:       12,
		Time:       0.4,
		Authority:  core.AuthorityAutonomous,
		Yaw:        15,
		Pitch:      3,
		TargetID:   "bandit-1",
		TrackedIDs: []string{"bandit-1", "bandit-2"},
		AimPoint:   &aim,
		Fired:      true,
		Shots:      []core.FireEvent{{Tick: 12}},
		Ammunition: "standard",
		Heat:       2,
		Obstruction: &core.ObstructionResult{
			Blocked: true,
		},
		Designations: core.DesignationStats{
			Count:     2,
			Threat:    0.8,
			Breakdown: map[string]float64{"radar": 0.8},
		},
		Reward:      &reward,
		Diagnostics: []core.Diagnostic{{Callback: "telemetry", Message: "boom"}},
	}

	f := CoreToTelemetryFrame(5, tel)

	assert.Equal(t, uint64(5), f.CaptureFrame)
	assert.Equal(t, uint64(12), f.Tick)
	assert.Equal(t, 0.4, f.SimTime)
	assert.Equal(t, "autonomous", f.Authority)
	assert.Equal(t, "bandit-1", f.TargetID)
	assert.True(t, f.Fired)
	assert.Equal(t, 1, f.Shots)
	assert.True(t, f.Obstructed)
	assert.Equal(t, 2, f.Designations)
	assert.Equal(t, 0.8, f.CooperativeThreat)
	assert.True(t, f.Reward.Valid)
	assert.Equal(t, 1.5, f.Reward.Float64)
	assert.Equal(t, aim, pointToVector(f.AimPoint))

	var tracked []string
	require.NoError(t, json.Unmarshal(f.TrackedIDs, &tracked))
	assert.Equal(t, []string{"bandit-1", "bandit-2"}, tracked)

	var breakdown map[string]float64
	require.NoError(t, json.Unmarshal(f.SensorBreakdown, &breakdown))
	assert.Equal(t, 0.8, breakdown["radar"])

	var diags []core.Diagnostic
	require.NoError(t, json.Unmarshal(f.Diagnostics, &diags))
	require.Len(t, diags, 1)
	assert.Equal(t, "telemetry", diags[0].Callback)
}

func TestCoreToTelemetryFrame_Empty(t *testing.T) {
	f := CoreToTelemetryFrame(0, core.Telemetry{Authority: core.AuthorityIdle})

	assert.Equal(t, "[]", string(f.TrackedIDs))
	assert.Equal(t, "{}", string(f.SensorBreakdown))
	assert.Equal(t, "[]", string(f.Diagnostics))
	assert.False(t, f.Reward.Valid)
	assert.False(t, f.Obstructed)
	assert.True(t, f.AimPoint.IsEmpty())
}

func TestFireEventRoundTrip(t *testing.T) {
	e := core.FireEvent{
		Tick:          3,
		Time:          0.1,
		Source:        core.FireSourceBurst,
		Ammunition:    "heavy",
		Damage:        35,
		AimPoint:      core.Vector3{X: 1, Y: 2, Z: 3},
		InterceptTime: 0.2,
		Yaw:           45,
		Pitch:         10,
	}

	gormEvent := CoreToFireEvent(9, e)
	assert.Equal(t, uint64(9), gormEvent.CaptureFrame)
	assert.Equal(t, "burst", gormEvent.Source)

	assert.Equal(t, e, FireEventToCore(gormEvent))
}
