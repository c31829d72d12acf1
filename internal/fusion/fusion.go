// Package fusion merges cooperative sensor designations into per-target
// priority bonuses.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/OCAP2/sentry/internal/queue"
	"github.com/OCAP2/sentry/pkg/core"
)

// ErrInvalidParams is returned when fusion parameters are out of range.
var ErrInvalidParams = errors.New("invalid fusion parameters")

const (
	defaultWeightEpsilon = 1e-3
	defaultQueueLimit    = 4096
	unknownSensor        = "unknown"
	statsEpsilon         = 1e-6
)

// Params configures designation weighting and correlation.
type Params struct {
	// ThreatWeight scales a designation's weight into a priority bonus.
	ThreatWeight       float64
	LatencyDecay       float64
	ConfidenceExponent float64
	// WeightEpsilon removes designations whose weight falls below it.
	WeightEpsilon float64
	// Horizon drops designations older than this many seconds. Zero disables it.
	Horizon float64
	// CorrelationRadius is the position-match tolerance in meters.
	CorrelationRadius float64
	// QueueLimit bounds reports waiting for the next tick.
	QueueLimit int
}

// Sanitize fills defaults and validates.
func (p Params) Sanitize() (Params, error) {
	if !finite(p.ThreatWeight) || !finite(p.LatencyDecay) || !finite(p.ConfidenceExponent) ||
		!finite(p.Horizon) || !finite(p.CorrelationRadius) || !finite(p.WeightEpsilon) {
		return p, fmt.Errorf("%w: parameters must be finite", ErrInvalidParams)
	}
	if p.ThreatWeight < 0 {
		return p, fmt.Errorf("%w: threat weight must not be negative", ErrInvalidParams)
	}
	if p.LatencyDecay < 0 {
		return p, fmt.Errorf("%w: latency decay must not be negative", ErrInvalidParams)
	}
	if !(p.ConfidenceExponent > 0) {
		return p, fmt.Errorf("%w: confidence exponent must be positive", ErrInvalidParams)
	}
	if p.Horizon < 0 || p.CorrelationRadius < 0 || p.WeightEpsilon < 0 {
		return p, fmt.Errorf("%w: horizon, correlation radius and epsilon must not be negative", ErrInvalidParams)
	}
	if p.WeightEpsilon == 0 {
		p.WeightEpsilon = defaultWeightEpsilon
	}
	if p.QueueLimit <= 0 {
		p.QueueLimit = defaultQueueLimit
	}
	return p, nil
}

// Weight is confidence^exponent * exp(-latency*decay), with confidence
// clamped to [0, 1] and negative latency treated as fresh.
func Weight(confidence, latency, exponent, decay float64) float64 {
	c := math.Max(0, math.Min(1, confidence))
	if c == 0 {
		return 0
	}
	return math.Pow(c, exponent) * math.Exp(-math.Max(0, latency)*decay)
}

// Fusion owns the active designation set. Ingest may be called from any
// goroutine; everything else belongs to the tick loop.
type Fusion struct {
	p      Params
	inbox  *queue.Queue[core.Designation]
	active map[string]core.Designation
}

// New creates an empty fusion set.
func New(p Params) (*Fusion, error) {
	p, err := p.Sanitize()
	if err != nil {
		return nil, err
	}
	return &Fusion{
		p:      p,
		inbox:  queue.NewBounded[core.Designation](p.QueueLimit),
		active: make(map[string]core.Designation),
	}, nil
}

// Ingest queues reports for the next Update.
func (f *Fusion) Ingest(reports ...core.Designation) {
	f.inbox.Push(reports...)
}

// Pending returns the number of queued reports.
func (f *Fusion) Pending() int {
	return f.inbox.Len()
}

// Update ages existing designations by dt, merges queued reports (last write
// wins per source), recomputes weights and evicts stale entries.
func (f *Fusion) Update(dt float64, tick uint64) {
	for src, d := range f.active {
		d.Latency += dt
		f.active[src] = d
	}

	for _, d := range f.inbox.Drain() {
		if d.SourceID == "" || !d.Position.IsFinite() {
			continue
		}
		if !finite(d.Confidence) || !finite(d.Latency) {
			continue
		}
		if d.CreatedTick == 0 {
			d.CreatedTick = tick
		}
		if !d.Velocity.IsFinite() {
			d.Velocity = core.Vector3{}
		}
		f.active[d.SourceID] = d
	}

	for src, d := range f.active {
		d.Weight = Weight(d.Confidence, d.Latency, f.p.ConfidenceExponent, f.p.LatencyDecay)
		if d.Weight < f.p.WeightEpsilon || (f.p.Horizon > 0 && d.Latency > f.p.Horizon) {
			delete(f.active, src)
			continue
		}
		f.active[src] = d
	}
}

// Designations returns the active set ordered by source.
func (f *Fusion) Designations() []core.Designation {
	out := make([]core.Designation, 0, len(f.active))
	for _, d := range f.active {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// Len returns the number of active designations.
func (f *Fusion) Len() int {
	return len(f.active)
}

// Bonuses correlates the active set against targets and returns the
// cooperative bonus per target id, scaled by bias, plus summary stats.
func (f *Fusion) Bonuses(targets []core.Target, bias float64) (map[string]float64, core.DesignationStats) {
	bonus := make(map[string]float64)
	stats := core.DesignationStats{}

	designations := f.Designations()
	if len(designations) == 0 {
		return bonus, stats
	}

	byID := make(map[string]int, len(targets))
	for i, t := range targets {
		byID[t.ID] = i
	}

	stats.Breakdown = make(map[string]float64)
	var total, confSum, latSum float64
	for _, d := range designations {
		stats.Count++
		effective := f.p.ThreatWeight * d.Weight * bias
		kind := d.SensorKind
		if kind == "" {
			kind = unknownSensor
		}
		stats.Breakdown[kind] += effective
		total += effective
		confSum += d.Confidence * effective
		latSum += d.Latency * effective

		id, ok := f.correlate(d, targets, byID)
		if !ok {
			continue
		}
		stats.Correlated++
		bonus[id] += effective
		stats.Threat += effective
	}
	// Averages are weighted by effective threat.
	if total > statsEpsilon {
		stats.AverageConfidence = confSum / total
		stats.AverageLatency = latSum / total
	}

	return bonus, stats
}

// correlate matches by identity first, then by nearest predicted position.
func (f *Fusion) correlate(d core.Designation, targets []core.Target, byID map[string]int) (string, bool) {
	if d.TargetID != "" {
		if _, ok := byID[d.TargetID]; ok {
			return d.TargetID, true
		}
	}

	predicted := d.Position.Add(d.Velocity.Scale(d.Latency))
	best := ""
	bestDist := math.Inf(1)
	for _, t := range targets {
		dist := t.Position.Distance(predicted)
		if dist > f.p.CorrelationRadius {
			continue
		}
		if dist < bestDist || (dist == bestDist && t.ID < best) {
			best, bestDist = t.ID, dist
		}
	}
	return best, best != ""
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
