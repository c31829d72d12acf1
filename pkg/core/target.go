// pkg/core/target.go
package core

import "maps"

// Target is a tracked object supplied fresh by the caller every tick.
type Target struct {
	ID       string  `json:"id"`
	Position Vector3 `json:"position"`
	Velocity Vector3 `json:"velocity"`
	// ThreatScore is the intrinsic priority before cooperative fusion.
	ThreatScore float64 `json:"threatScore"`
}

// Designation is an externally reported observation from a cooperative sensor.
type Designation struct {
	SourceID   string `json:"sourceId"`
	SensorKind string `json:"sensorKind,omitempty"`
	// TargetID correlates by identity when the sensor knows it. Empty falls
	// back to nearest-position correlation.
	TargetID   string  `json:"targetId,omitempty"`
	Position   Vector3 `json:"position"`
	Velocity   Vector3 `json:"velocity"`
	Confidence float64 `json:"confidence"`
	// Latency is seconds elapsed since the observation was taken.
	Latency     float64 `json:"latency"`
	CreatedTick uint64  `json:"createdTick"`
	// Weight is the decayed fusion weight, recomputed every tick.
	Weight float64 `json:"weight"`
}

// ObstructionResult is what an obstruction probe reports for one line of fire.
type ObstructionResult struct {
	Blocked  bool           `json:"blocked"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy whose Metadata map is not shared with r.
func (r ObstructionResult) Clone() ObstructionResult {
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// AmmunitionType is a named loadout.
type AmmunitionType struct {
	Name            string  `json:"name"`
	ProjectileSpeed float64 `json:"projectileSpeed"`
	Damage          float64 `json:"damage"`
	HeatCost        float64 `json:"heatCost"`
	PowerDraw       float64 `json:"powerDraw"`
}

// ManualWaypoint is one step of a scripted override.
type ManualWaypoint struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	// Dwell is how long to hold the orientation before the burst, in seconds.
	Dwell float64 `json:"dwell"`
	Burst int     `json:"burst,omitempty"`
	// BurstInterval is the minimum spacing between burst attempts, in seconds.
	BurstInterval float64 `json:"burstInterval,omitempty"`
}
