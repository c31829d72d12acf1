package turret

import "github.com/OCAP2/sentry/pkg/core"

// Features is the state summary handed to the RL training callback.
type Features map[string]float64

// Feature keys.
const (
	FeatureHeatRatio         = "heat_ratio"
	FeaturePowerRatio        = "power_ratio"
	FeatureCooldownRemaining = "cooldown_remaining"
	FeatureCooperativeThreat = "cooperative_threat"
	FeatureOverrideActive    = "override_active"
	FeatureOverheated        = "overheated"
	FeatureDepleted          = "depleted"
	FeatureCooldownScale     = "rl_cooldown_scale"
	FeatureThreatBias        = "rl_threat_bias"
	FeatureCoopConfidence    = "coop_confidence"
	FeatureCoopLatency       = "coop_latency"
	FeatureAmmoDamage        = "ammo_damage"
	FeatureAmmoHeat          = "ammo_heat"
	FeatureAmmoSpeed         = "ammo_speed"
	FeatureInterceptTime     = "intercept_time"
	FeatureFired             = "fired"
)

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func buildFeatures(t core.Telemetry, a core.AmmunitionType) Features {
	f := Features{
		FeatureCooldownRemaining: t.CooldownRemaining,
		FeatureCooperativeThreat: t.Designations.Threat,
		FeatureOverrideActive:    boolFeature(t.Authority == core.AuthorityOverride),
		FeatureOverheated:        boolFeature(t.Overheated),
		FeatureDepleted:          boolFeature(t.Depleted),
		FeatureCooldownScale:     t.CooldownScale,
		FeatureThreatBias:        t.ThreatBias,
		FeatureCoopConfidence:    t.Designations.AverageConfidence,
		FeatureCoopLatency:       t.Designations.AverageLatency,
		FeatureAmmoDamage:        a.Damage,
		FeatureAmmoHeat:          a.HeatCost,
		FeatureAmmoSpeed:         a.ProjectileSpeed,
		FeatureInterceptTime:     t.InterceptTime,
		FeatureFired:             boolFeature(t.Fired),
	}
	if t.HeatCapacity > 0 {
		f[FeatureHeatRatio] = t.Heat / t.HeatCapacity
	}
	if t.PowerCapacity > 0 {
		f[FeaturePowerRatio] = t.Power / t.PowerCapacity
	}
	return f
}
