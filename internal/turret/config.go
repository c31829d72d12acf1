package turret

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/sentry/internal/ammo"
	"github.com/OCAP2/sentry/internal/budget"
	"github.com/OCAP2/sentry/internal/fusion"
	"github.com/OCAP2/sentry/internal/geo"
	"github.com/OCAP2/sentry/pkg/core"
)

// ErrInvalidConfiguration is returned by New and Validate for out-of-range settings.
var ErrInvalidConfiguration = errors.New("invalid turret configuration")

// minScaledCooldown keeps a scaled cooldown from collapsing to zero.
const minScaledCooldown = 0.01

// Config holds every turret setting. It is validated once at construction.
type Config struct {
	Position core.Vector3 `json:"position" mapstructure:"position"`

	MaxTurnRateDeg    float64 `json:"maxTurnRateDeg" mapstructure:"maxTurnRateDeg"`
	FireArcDeg        float64 `json:"fireArcDeg" mapstructure:"fireArcDeg"`
	MaxPredictionTime float64 `json:"maxPredictionTime" mapstructure:"maxPredictionTime"`
	FireCooldown      float64 `json:"fireCooldown" mapstructure:"fireCooldown"`

	// Engagement envelope. Zero DetectionRadius means unlimited.
	DetectionRadius float64        `json:"detectionRadius" mapstructure:"detectionRadius"`
	MinRange        float64        `json:"minRange" mapstructure:"minRange"`
	MinElevationDeg float64        `json:"minElevationDeg" mapstructure:"minElevationDeg"`
	MaxElevationDeg float64        `json:"maxElevationDeg" mapstructure:"maxElevationDeg"`
	Zone            []core.Vector2 `json:"zone,omitempty" mapstructure:"zone"`

	HeatCapacity          float64 `json:"heatCapacity" mapstructure:"heatCapacity"`
	HeatDissipation       float64 `json:"heatDissipation" mapstructure:"heatDissipation"`
	HeatOverheatThreshold float64 `json:"heatOverheatThreshold" mapstructure:"heatOverheatThreshold"`
	HeatResumeThreshold   float64 `json:"heatResumeThreshold" mapstructure:"heatResumeThreshold"`
	HeatCoolingFraction   float64 `json:"heatCoolingFraction" mapstructure:"heatCoolingFraction"`

	PowerCapacity        float64 `json:"powerCapacity" mapstructure:"powerCapacity"`
	PowerRecharge        float64 `json:"powerRecharge" mapstructure:"powerRecharge"`
	PowerResumeThreshold float64 `json:"powerResumeThreshold" mapstructure:"powerResumeThreshold"`

	IdleScanAmplitude      float64 `json:"idleScanAmplitude" mapstructure:"idleScanAmplitude"`
	IdleScanPitchAmplitude float64 `json:"idleScanPitchAmplitude" mapstructure:"idleScanPitchAmplitude"`
	IdleScanPeriod         float64 `json:"idleScanPeriod" mapstructure:"idleScanPeriod"`

	CooperativeThreatWeight       float64 `json:"cooperativeThreatWeight" mapstructure:"cooperativeThreatWeight"`
	CooperativeLatencyDecay       float64 `json:"cooperativeLatencyDecay" mapstructure:"cooperativeLatencyDecay"`
	CooperativeConfidenceExponent float64 `json:"cooperativeConfidenceExponent" mapstructure:"cooperativeConfidenceExponent"`
	CooperativeHorizon            float64 `json:"cooperativeHorizon" mapstructure:"cooperativeHorizon"`
	CooperativeCorrelationRadius  float64 `json:"cooperativeCorrelationRadius" mapstructure:"cooperativeCorrelationRadius"`

	OrientationBlendWeight float64 `json:"orientationBlendWeight" mapstructure:"orientationBlendWeight"`

	RLRewardSmoothing  float64 `json:"rlRewardSmoothing" mapstructure:"rlRewardSmoothing"`
	RLRewardTarget     float64 `json:"rlRewardTarget" mapstructure:"rlRewardTarget"`
	RLRewardClamp      float64 `json:"rlRewardClamp" mapstructure:"rlRewardClamp"`
	RLRewardAdjustRate float64 `json:"rlRewardAdjustRate" mapstructure:"rlRewardAdjustRate"`
	RLCooldownScaleMin float64 `json:"rlCooldownScaleMin" mapstructure:"rlCooldownScaleMin"`
	RLCooldownScaleMax float64 `json:"rlCooldownScaleMax" mapstructure:"rlCooldownScaleMax"`
	RLThreatBiasMin    float64 `json:"rlThreatBiasMin" mapstructure:"rlThreatBiasMin"`
	RLThreatBiasMax    float64 `json:"rlThreatBiasMax" mapstructure:"rlThreatBiasMax"`

	Ammunition        []core.AmmunitionType `json:"ammunition" mapstructure:"ammunition"`
	DefaultAmmunition string                `json:"defaultAmmunition,omitempty" mapstructure:"defaultAmmunition"`
}

// DefaultConfig returns a configuration with a single standard round.
func DefaultConfig() Config {
	return Config{
		MaxTurnRateDeg:    120,
		FireArcDeg:        5,
		MaxPredictionTime: 3,
		FireCooldown:      0.2,

		DetectionRadius: 50,
		MinElevationDeg: -10,
		MaxElevationDeg: 60,

		HeatCapacity:          12,
		HeatDissipation:       3,
		HeatOverheatThreshold: 9,
		HeatResumeThreshold:   4,
		HeatCoolingFraction:   1,

		PowerCapacity:        100,
		PowerRecharge:        10,
		PowerResumeThreshold: 25,

		IdleScanAmplitude:      45,
		IdleScanPitchAmplitude: 6,
		IdleScanPeriod:         14.4,

		CooperativeThreatWeight:       1,
		CooperativeLatencyDecay:       0.5,
		CooperativeConfidenceExponent: 1,
		CooperativeHorizon:            10,
		CooperativeCorrelationRadius:  5,

		OrientationBlendWeight: 1,

		RLRewardSmoothing:  0.2,
		RLRewardClamp:      10,
		RLRewardAdjustRate: 0.05,
		RLCooldownScaleMin: 0.5,
		RLCooldownScaleMax: 1.5,
		RLThreatBiasMin:    0.5,
		RLThreatBiasMax:    2,

		Ammunition: []core.AmmunitionType{
			{Name: "standard", ProjectileSpeed: 55, Damage: 10, HeatCost: 1, PowerDraw: 2},
		},
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Validate checks every field and the derived component parameters.
func (c Config) Validate() error {
	if !c.Position.IsFinite() {
		return invalidf("position must be finite")
	}
	if !finite(c.MaxTurnRateDeg, c.FireArcDeg, c.MaxPredictionTime, c.FireCooldown,
		c.IdleScanAmplitude, c.IdleScanPitchAmplitude, c.IdleScanPeriod,
		c.OrientationBlendWeight, c.RLRewardSmoothing, c.RLRewardTarget,
		c.RLRewardClamp, c.RLRewardAdjustRate,
		c.RLCooldownScaleMin, c.RLCooldownScaleMax, c.RLThreatBiasMin, c.RLThreatBiasMax,
		c.DetectionRadius, c.MinRange, c.MinElevationDeg, c.MaxElevationDeg,
		c.HeatCapacity, c.HeatDissipation, c.HeatOverheatThreshold, c.HeatResumeThreshold, c.HeatCoolingFraction,
		c.PowerCapacity, c.PowerRecharge, c.PowerResumeThreshold,
		c.CooperativeThreatWeight, c.CooperativeLatencyDecay, c.CooperativeConfidenceExponent,
		c.CooperativeHorizon, c.CooperativeCorrelationRadius) {
		return invalidf("settings must be finite")
	}

	switch {
	case c.MaxTurnRateDeg <= 0:
		return invalidf("max turn rate must be positive, got %v", c.MaxTurnRateDeg)
	case c.FireArcDeg < 0 || c.FireArcDeg > 180:
		return invalidf("fire arc %v outside [0, 180]", c.FireArcDeg)
	case c.MaxPredictionTime < 0:
		return invalidf("max prediction time must not be negative, got %v", c.MaxPredictionTime)
	case c.FireCooldown < 0:
		return invalidf("fire cooldown must not be negative, got %v", c.FireCooldown)
	case c.IdleScanAmplitude < 0 || c.IdleScanPitchAmplitude < 0:
		return invalidf("idle scan amplitudes must not be negative")
	case c.IdleScanPeriod < 0:
		return invalidf("idle scan period must not be negative, got %v", c.IdleScanPeriod)
	case c.OrientationBlendWeight < 0 || c.OrientationBlendWeight > 1:
		return invalidf("orientation blend weight %v outside [0, 1]", c.OrientationBlendWeight)
	case c.RLRewardSmoothing < 0 || c.RLRewardSmoothing > 1:
		return invalidf("reward smoothing %v outside [0, 1]", c.RLRewardSmoothing)
	case c.RLRewardClamp < 0:
		return invalidf("reward clamp must not be negative, got %v", c.RLRewardClamp)
	case c.RLRewardAdjustRate < 0:
		return invalidf("reward adjust rate must not be negative, got %v", c.RLRewardAdjustRate)
	case c.RLCooldownScaleMin <= 0 || c.RLCooldownScaleMin > 1 || c.RLCooldownScaleMax < 1:
		return invalidf("cooldown scale bounds [%v, %v] must be positive and contain 1", c.RLCooldownScaleMin, c.RLCooldownScaleMax)
	case c.RLThreatBiasMin < 0 || c.RLThreatBiasMin > 1 || c.RLThreatBiasMax < 1:
		return invalidf("threat bias bounds [%v, %v] must contain 1", c.RLThreatBiasMin, c.RLThreatBiasMax)
	case c.MinElevationDeg < -90 || c.MaxElevationDeg > 90 || c.MinElevationDeg > c.MaxElevationDeg:
		return invalidf("elevation limits [%v, %v] invalid", c.MinElevationDeg, c.MaxElevationDeg)
	}

	if _, err := c.heatParams().Sanitize(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if _, err := c.powerParams().Sanitize(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if _, err := c.fusionParams().Sanitize(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if _, err := geo.NewEnvelope(c.envelopeConfig()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	if len(c.Ammunition) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, ammo.ErrEmptyRegistry)
	}
	seen := make(map[string]bool, len(c.Ammunition))
	for _, a := range c.Ammunition {
		if err := ammo.Validate(a); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: %w: %s", ErrInvalidConfiguration, ammo.ErrDuplicateAmmunition, a.Name)
		}
		seen[a.Name] = true
	}
	if c.DefaultAmmunition != "" && !seen[c.DefaultAmmunition] {
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfiguration, ammo.ErrUnknownAmmunition, c.DefaultAmmunition)
	}

	return nil
}

func (c Config) heatParams() budget.HeatParams {
	return budget.HeatParams{
		Capacity:        c.HeatCapacity,
		Dissipation:     c.HeatDissipation,
		OverheatAt:      c.HeatOverheatThreshold,
		ResumeAt:        c.HeatResumeThreshold,
		CoolingFraction: c.HeatCoolingFraction,
	}
}

func (c Config) powerParams() budget.PowerParams {
	return budget.PowerParams{
		Capacity: c.PowerCapacity,
		Recharge: c.PowerRecharge,
		ResumeAt: c.PowerResumeThreshold,
	}
}

func (c Config) fusionParams() fusion.Params {
	return fusion.Params{
		ThreatWeight:       c.CooperativeThreatWeight,
		LatencyDecay:       c.CooperativeLatencyDecay,
		ConfidenceExponent: c.CooperativeConfidenceExponent,
		Horizon:            c.CooperativeHorizon,
		CorrelationRadius:  c.CooperativeCorrelationRadius,
	}
}

func (c Config) envelopeConfig() geo.EnvelopeConfig {
	return geo.EnvelopeConfig{
		MaxRange:     c.DetectionRadius,
		MinRange:     c.MinRange,
		MinElevation: c.MinElevationDeg,
		MaxElevation: c.MaxElevationDeg,
		Zone:         c.Zone,
	}
}
