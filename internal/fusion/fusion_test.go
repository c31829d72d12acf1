package fusion

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/OCAP2/sentry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		ThreatWeight:       2,
		LatencyDecay:       0.5,
		ConfidenceExponent: 1.5,
		Horizon:            10,
		CorrelationRadius:  5,
	}
}

func newFusion(t *testing.T) *Fusion {
	t.Helper()
	f, err := New(testParams())
	require.NoError(t, err)
	return f
}

func TestWeight_Monotonic(t *testing.T) {
	prev := Weight(0.8, 0, 1.5, 0.5)
	for _, lat := range []float64{0.1, 0.5, 1, 2, 5} {
		w := Weight(0.8, lat, 1.5, 0.5)
		assert.Less(t, w, prev, "latency %v", lat)
		prev = w
	}

	prev = Weight(0.1, 1, 1.5, 0.5)
	for _, conf := range []float64{0.2, 0.5, 0.9, 1} {
		w := Weight(conf, 1, 1.5, 0.5)
		assert.Greater(t, w, prev, "confidence %v", conf)
		prev = w
	}
}

func TestWeight_ZeroConfidence(t *testing.T) {
	for _, lat := range []float64{0, 1, 100} {
		assert.Equal(t, 0.0, Weight(0, lat, 1.5, 0.5))
	}
}

func TestUpdate_LastWriteWinsPerSource(t *testing.T) {
	f := newFusion(t)

	f.Ingest(core.Designation{SourceID: "radar-1", Position: core.Vector3{Z: 10}, Confidence: 0.5})
	f.Ingest(core.Designation{SourceID: "radar-1", Position: core.Vector3{Z: 20}, Confidence: 0.9})
	f.Ingest(core.Designation{SourceID: "drone-2", Position: core.Vector3{Z: 30}, Confidence: 0.7})
	assert.Equal(t, 3, f.Pending())

	f.Update(0.1, 1)

	ds := f.Designations()
	require.Len(t, ds, 2)
	assert.Equal(t, "drone-2", ds[0].SourceID)
	assert.Equal(t, "radar-1", ds[1].SourceID)
	assert.Equal(t, 20.0, ds[1].Position.Z)
	assert.Equal(t, uint64(1), ds[1].CreatedTick)
	assert.Equal(t, 0, f.Pending())
}

func TestUpdate_AgesAndEvicts(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", Confidence: 1, Position: core.Vector3{Z: 1}})
	f.Update(0, 1)
	require.Equal(t, 1, f.Len())
	w0 := f.Designations()[0].Weight

	f.Update(1, 2)
	ds := f.Designations()
	require.Len(t, ds, 1)
	assert.InDelta(t, 1.0, ds[0].Latency, 1e-12)
	assert.Less(t, ds[0].Weight, w0)

	// Past the horizon the designation is gone regardless of weight.
	f.Update(9.5, 3)
	assert.Equal(t, 0, f.Len())
}

func TestUpdate_EvictsNegligibleWeight(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", Confidence: 0, Position: core.Vector3{Z: 1}})
	f.Update(0, 1)
	assert.Equal(t, 0, f.Len())
}

func TestUpdate_IgnoresMalformedReports(t *testing.T) {
	reports := map[string]core.Designation{
		"no source":      {Confidence: 1},
		"nan position":   {SourceID: "s", Confidence: 1, Position: core.Vector3{X: math.NaN()}},
		"nan confidence": {SourceID: "s", Confidence: math.NaN()},
		"inf confidence": {SourceID: "s", Confidence: math.Inf(1)},
		"nan latency":    {SourceID: "s", Confidence: 1, Latency: math.NaN()},
		"inf latency":    {SourceID: "s", Confidence: 1, Latency: math.Inf(-1)},
	}
	for name, d := range reports {
		t.Run(name, func(t *testing.T) {
			f := newFusion(t)
			f.Ingest(d)
			f.Update(0, 1)
			assert.Equal(t, 0, f.Len())

			bonus, stats := f.Bonuses([]core.Target{{ID: "t"}}, 1)
			assert.Empty(t, bonus)
			_, err := json.Marshal(stats)
			assert.NoError(t, err)
		})
	}
}

func TestBonuses_CorrelateByIdentity(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", TargetID: "b", Confidence: 1, Position: core.Vector3{X: 500}})
	f.Update(0, 1)

	targets := []core.Target{{ID: "a", Position: core.Vector3{X: 500}}, {ID: "b", Position: core.Vector3{Z: 50}}}
	bonus, stats := f.Bonuses(targets, 1)

	assert.InDelta(t, 2.0, bonus["b"], 1e-12)
	assert.Zero(t, bonus["a"])
	assert.Equal(t, 1, stats.Correlated)
}

func TestBonuses_CorrelateByNearestPosition(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", SensorKind: "radar", Confidence: 1, Position: core.Vector3{X: 101}})
	f.Update(0, 1)

	targets := []core.Target{
		{ID: "far", Position: core.Vector3{X: 104}},
		{ID: "near", Position: core.Vector3{X: 100}},
		{ID: "out", Position: core.Vector3{X: 200}},
	}
	bonus, stats := f.Bonuses(targets, 1)

	assert.InDelta(t, 2.0, bonus["near"], 1e-12)
	assert.Len(t, bonus, 1)
	assert.InDelta(t, 2.0, stats.Breakdown["radar"], 1e-12)
	assert.InDelta(t, 2.0, stats.Threat, 1e-12)
}

func TestBonuses_PredictsPositionFromLatency(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{
		SourceID:   "s",
		Confidence: 1,
		Position:   core.Vector3{X: 0},
		Velocity:   core.Vector3{X: 10},
		Latency:    2,
	})
	f.Update(0, 1)

	bonus, _ := f.Bonuses([]core.Target{{ID: "t", Position: core.Vector3{X: 20}}}, 1)
	assert.Greater(t, bonus["t"], 0.0)
}

func TestBonuses_UncorrelatedKeptForDisplay(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", Confidence: 0.9, Position: core.Vector3{X: 1000}})
	f.Update(0, 1)

	bonus, stats := f.Bonuses([]core.Target{{ID: "t", Position: core.Vector3{}}}, 1)
	assert.Empty(t, bonus)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 0, stats.Correlated)
	require.Contains(t, stats.Breakdown, "unknown")
	assert.Greater(t, stats.Breakdown["unknown"], 0.0)
	assert.Zero(t, stats.Threat)
	assert.Equal(t, 1, f.Len())
}

func TestBonuses_StatsWeightedByEffectiveThreat(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "fresh", SensorKind: "radar", Confidence: 1, Position: core.Vector3{X: 1000}})
	f.Ingest(core.Designation{SourceID: "stale", SensorKind: "drone", Confidence: 0.1, Latency: 3, Position: core.Vector3{X: -1000}})
	f.Update(0, 1)
	require.Equal(t, 2, f.Len())

	p := testParams()
	wFresh := Weight(1, 0, p.ConfidenceExponent, p.LatencyDecay)
	wStale := Weight(0.1, 3, p.ConfidenceExponent, p.LatencyDecay)
	require.Greater(t, wFresh, wStale)

	_, stats := f.Bonuses(nil, 1)

	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, (1*wFresh+0.1*wStale)/(wFresh+wStale), stats.AverageConfidence, 1e-12)
	assert.InDelta(t, 3*wStale/(wFresh+wStale), stats.AverageLatency, 1e-12)
	assert.Greater(t, stats.AverageConfidence, 0.55)
	assert.InDelta(t, p.ThreatWeight*wFresh, stats.Breakdown["radar"], 1e-12)
	assert.InDelta(t, p.ThreatWeight*wStale, stats.Breakdown["drone"], 1e-12)
}

func TestBonuses_ZeroThreatWeightZeroesAverages(t *testing.T) {
	p := testParams()
	p.ThreatWeight = 0
	f, err := New(p)
	require.NoError(t, err)
	f.Ingest(core.Designation{SourceID: "s", Confidence: 1})
	f.Update(0, 1)

	_, stats := f.Bonuses(nil, 1)
	assert.Equal(t, 1, stats.Count)
	assert.Zero(t, stats.AverageConfidence)
	assert.Zero(t, stats.AverageLatency)
}

func TestBonuses_BiasScales(t *testing.T) {
	f := newFusion(t)
	f.Ingest(core.Designation{SourceID: "s", TargetID: "t", Confidence: 1})
	f.Update(0, 1)

	targets := []core.Target{{ID: "t"}}
	one, _ := f.Bonuses(targets, 1)
	two, _ := f.Bonuses(targets, 2)
	assert.InDelta(t, 2*one["t"], two["t"], 1e-12)
}

func TestIngest_Concurrent(t *testing.T) {
	f := newFusion(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.Ingest(core.Designation{SourceID: string(rune('a' + i)), Confidence: 1})
		}(i)
	}
	wg.Wait()

	f.Update(0, 1)
	assert.Equal(t, 8, f.Len())
}

func TestParams_Sanitize(t *testing.T) {
	p, err := testParams().Sanitize()
	require.NoError(t, err)
	assert.Equal(t, defaultWeightEpsilon, p.WeightEpsilon)

	bad := []Params{
		{ConfidenceExponent: 0},
		{ConfidenceExponent: 1, ThreatWeight: -1},
		{ConfidenceExponent: 1, LatencyDecay: -1},
		{ConfidenceExponent: 1, Horizon: -1},
		{ConfidenceExponent: math.NaN()},
		{ConfidenceExponent: 1, ThreatWeight: math.NaN()},
		{ConfidenceExponent: 1, LatencyDecay: math.Inf(1)},
		{ConfidenceExponent: 1, CorrelationRadius: math.NaN()},
		{ConfidenceExponent: 1, WeightEpsilon: math.NaN()},
	}
	for _, b := range bad {
		_, err := b.Sanitize()
		assert.ErrorIs(t, err, ErrInvalidParams)
	}
}
