package turret

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/sentry/internal/turret"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are the turret's OTel metrics. Gauges read values published at
// the end of each tick so the exporter goroutine never touches tick state.
type instruments struct {
	fired    metric.Int64Counter
	refused  metric.Int64Counter
	failures metric.Int64Counter

	heatGauge  metric.Float64ObservableGauge
	powerGauge metric.Float64ObservableGauge
	reg        metric.Registration

	heat  atomic.Uint64
	power atomic.Uint64
}

func newInstruments() (*instruments, error) {
	m := meter()
	in := &instruments{}

	var err error
	in.fired, err = m.Int64Counter(
		"turret.shots.fired",
		metric.WithDescription("Total shots released"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fired counter: %w", err)
	}

	in.refused, err = m.Int64Counter(
		"turret.shots.refused",
		metric.WithDescription("Fire attempts refused by a gate"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating refused counter: %w", err)
	}

	in.failures, err = m.Int64Counter(
		"turret.callback.failures",
		metric.WithDescription("Callbacks that panicked or returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating callback failure counter: %w", err)
	}

	in.heatGauge, err = m.Float64ObservableGauge(
		"turret.heat",
		metric.WithDescription("Current heat"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating heat gauge: %w", err)
	}

	in.powerGauge, err = m.Float64ObservableGauge(
		"turret.power",
		metric.WithDescription("Current power"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating power gauge: %w", err)
	}

	in.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveFloat64(in.heatGauge, math.Float64frombits(in.heat.Load()))
			o.ObserveFloat64(in.powerGauge, math.Float64frombits(in.power.Load()))
			return nil
		},
		in.heatGauge, in.powerGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return in, nil
}

func (in *instruments) publish(heat, power float64) {
	in.heat.Store(math.Float64bits(heat))
	in.power.Store(math.Float64bits(power))
}

func (in *instruments) close() error {
	if in.reg == nil {
		return nil
	}
	return in.reg.Unregister()
}
