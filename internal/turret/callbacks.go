package turret

import (
	"context"
	"fmt"

	"github.com/OCAP2/sentry/internal/targeting"
	"github.com/OCAP2/sentry/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Callback names reported in diagnostics and metrics.
const (
	CallbackObstructionCheck    = "obstruction_check"
	CallbackObstructionFeedback = "obstruction_feedback"
	CallbackHeatFeedback        = "heat_feedback"
	CallbackPowerFeedback       = "power_feedback"
	CallbackEffects             = "effects"
	CallbackTelemetry           = "telemetry"
	CallbackCapture             = "telemetry_capture"
	CallbackRLTraining          = "rl_training"
	CallbackExporter            = "telemetry_exporter"
	CallbackFire                = "fire"
	CallbackOrientationOffset   = "orientation_offset"
)

// Exporter ships telemetry over some transport.
type Exporter interface {
	Send(core.Telemetry) error
}

// Callbacks are the optional collaborators invoked during a tick. Every field
// may be nil. Callbacks run synchronously on the tick goroutine; a panic or
// returned error is recorded as a diagnostic and the tick continues.
type Callbacks struct {
	// ObstructionCheck probes a line of fire. Nil never blocks.
	ObstructionCheck targeting.ObstructionFunc
	// ObstructionFeedback receives the probe result used for the tick's decision.
	ObstructionFeedback func(core.ObstructionResult)
	// HeatFeedback fires once per overheat latch edge.
	HeatFeedback func(old, new float64, overheated bool)
	// PowerFeedback fires once per depletion latch edge.
	PowerFeedback func(old, new float64, depleted bool)
	// Effects runs on ticks that fired or probed for obstruction.
	Effects   func(core.Telemetry, core.ObstructionResult)
	Telemetry func(core.Telemetry)
	// Capture receives a frame index that starts at zero and grows by one per tick.
	Capture func(frame uint64, t core.Telemetry)
	// RLTraining returns a reward for the tick. ok=false means no reward.
	RLTraining func(features Features, t core.Telemetry) (reward float64, ok bool)
	// Fire receives one event per released shot.
	Fire func(core.FireEvent)
	// OrientationOffset returns a yaw/pitch offset in degrees from an external
	// rig, blended into the final orientation.
	OrientationOffset func(yaw, pitch float64) (dYaw, dPitch float64)
	Exporter          Exporter
}

// invoke runs fn and turns a panic or error into a diagnostic.
func (c *Controller) invoke(name string, diags *[]core.Diagnostic, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.callbackFailed(name, fmt.Errorf("panic: %v", r), diags)
		}
	}()
	if err := fn(); err != nil {
		c.callbackFailed(name, err, diags)
	}
}

func (c *Controller) callbackFailed(name string, err error, diags *[]core.Diagnostic) {
	*diags = append(*diags, core.Diagnostic{Callback: name, Message: err.Error()})
	c.logger.Warn("callback failed", "callback", name, "tick", c.tick, "error", err)
	c.metrics.failures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("callback", name)))
}
