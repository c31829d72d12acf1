package turret

import "math"

// rewardShaper folds RL rewards into a smoothed trace that nudges the fire
// cooldown scale and the cooperative threat bias.
type rewardShaper struct {
	smoothing  float64
	target     float64
	clamp      float64
	adjustRate float64

	cooldownMin, cooldownMax float64
	biasMin, biasMax         float64

	trace         float64
	cooldownScale float64
	threatBias    float64
	seen          bool
}

func newRewardShaper(cfg Config) *rewardShaper {
	return &rewardShaper{
		smoothing:     cfg.RLRewardSmoothing,
		target:        cfg.RLRewardTarget,
		clamp:         cfg.RLRewardClamp,
		adjustRate:    cfg.RLRewardAdjustRate,
		cooldownMin:   cfg.RLCooldownScaleMin,
		cooldownMax:   cfg.RLCooldownScaleMax,
		biasMin:       cfg.RLThreatBiasMin,
		biasMax:       cfg.RLThreatBiasMax,
		trace:         cfg.RLRewardTarget,
		cooldownScale: 1,
		threatBias:    1,
	}
}

// apply folds one reward in. It returns the clamped reward and false when the
// reward is not finite and was ignored.
func (r *rewardShaper) apply(reward float64) (float64, bool) {
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return 0, false
	}
	if r.clamp > 0 {
		reward = math.Max(-r.clamp, math.Min(r.clamp, reward))
	}

	if r.smoothing <= 0 || !r.seen {
		r.trace = reward
	} else {
		r.trace = (1-r.smoothing)*r.trace + r.smoothing*reward
	}
	r.seen = true

	if r.adjustRate > 0 {
		delta := r.trace - r.target
		r.cooldownScale = math.Max(r.cooldownMin, math.Min(r.cooldownMax, r.cooldownScale-delta*r.adjustRate))
		r.threatBias = math.Max(r.biasMin, math.Min(r.biasMax, r.threatBias+delta*r.adjustRate))
	}
	return reward, true
}
