// pkg/core/telemetry.go
package core

import (
	"maps"
	"slices"
)

// Authority names who decided the aim for a tick.
type Authority string

const (
	AuthorityAutonomous Authority = "autonomous"
	AuthorityOverride   Authority = "override"
	AuthorityIdle       Authority = "idle"
)

// FireSource names what triggered a shot.
type FireSource string

const (
	FireSourceAutonomous FireSource = "autonomous"
	FireSourceBurst      FireSource = "burst"
	FireSourceManual     FireSource = "manual"
)

// RefusalReason explains why a fire attempt did not release a shot.
type RefusalReason string

const (
	RefusalNone       RefusalReason = ""
	RefusalNoTarget   RefusalReason = "no_target"
	RefusalArc        RefusalReason = "arc"
	RefusalObstructed RefusalReason = "obstructed"
	RefusalCooldown   RefusalReason = "cooldown"
	RefusalHeat       RefusalReason = "heat"
	RefusalOverheated RefusalReason = "overheated"
	RefusalPower      RefusalReason = "power"
	RefusalDepleted   RefusalReason = "depleted"
)

// FireEvent is emitted once per released shot.
type FireEvent struct {
	Tick          uint64     `json:"tick"`
	Time          float64    `json:"time"`
	Source        FireSource `json:"source"`
	TargetID      string     `json:"targetId,omitempty"`
	Ammunition    string     `json:"ammunition"`
	Damage        float64    `json:"damage"`
	AimPoint      Vector3    `json:"aimPoint"`
	InterceptTime float64    `json:"interceptTime"`
	Yaw           float64    `json:"yaw"`
	Pitch         float64    `json:"pitch"`
}

// Diagnostic records a callback that failed during a tick.
type Diagnostic struct {
	Callback string `json:"callback"`
	Message  string `json:"message"`
}

// DesignationStats summarizes the fused designation set for a tick.
type DesignationStats struct {
	Count      int     `json:"count"`
	Correlated int     `json:"correlated"`
	Threat     float64 `json:"threat"`
	// Breakdown sums effective threat per sensor kind.
	Breakdown         map[string]float64 `json:"breakdown,omitempty"`
	AverageConfidence float64            `json:"averageConfidence"`
	AverageLatency    float64            `json:"averageLatency"`
}

// Telemetry is the immutable per-tick snapshot handed to callbacks.
type Telemetry struct {
	Tick      uint64    `json:"tick"`
	Time      float64   `json:"time"`
	Authority Authority `json:"authority"`

	// Servo orientation after turn-rate limiting.
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	// Orientation after blending the external offset.
	FinalYaw     float64 `json:"finalYaw"`
	FinalPitch   float64 `json:"finalPitch"`
	DesiredYaw   float64 `json:"desiredYaw"`
	DesiredPitch float64 `json:"desiredPitch"`

	TargetID      string   `json:"targetId,omitempty"`
	TrackedIDs    []string `json:"trackedIds,omitempty"`
	AimPoint      *Vector3 `json:"aimPoint,omitempty"`
	InterceptTime float64  `json:"interceptTime"`
	Led           bool     `json:"led"`

	Fired   bool          `json:"fired"`
	Shots   []FireEvent   `json:"shots,omitempty"`
	Refusal RefusalReason `json:"refusal,omitempty"`

	Ammunition        string  `json:"ammunition"`
	CooldownRemaining float64 `json:"cooldownRemaining"`
	Heat              float64 `json:"heat"`
	HeatCapacity      float64 `json:"heatCapacity"`
	Overheated        bool    `json:"overheated"`
	Power             float64 `json:"power"`
	PowerCapacity     float64 `json:"powerCapacity"`
	Depleted          bool    `json:"depleted"`

	OverrideState string  `json:"overrideState"`
	ScanPhase     float64 `json:"scanPhase"`

	Obstruction  *ObstructionResult `json:"obstruction,omitempty"`
	Designations DesignationStats   `json:"designations"`

	CooldownScale float64  `json:"cooldownScale"`
	ThreatBias    float64  `json:"threatBias"`
	Reward        *float64 `json:"reward,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Clone returns a deep copy of t. Callbacks receive clones so that one
// callback cannot alter what the next one observes.
func (t Telemetry) Clone() Telemetry {
	t.TrackedIDs = slices.Clone(t.TrackedIDs)
	t.Shots = slices.Clone(t.Shots)
	t.Diagnostics = slices.Clone(t.Diagnostics)
	t.Designations.Breakdown = maps.Clone(t.Designations.Breakdown)
	if t.AimPoint != nil {
		aim := *t.AimPoint
		t.AimPoint = &aim
	}
	if t.Obstruction != nil {
		obs := t.Obstruction.Clone()
		t.Obstruction = &obs
	}
	if t.Reward != nil {
		r := *t.Reward
		t.Reward = &r
	}
	return t
}
