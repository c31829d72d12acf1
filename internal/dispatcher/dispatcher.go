package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/sentry/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/sentry/internal/dispatcher"

// ErrClosed is returned when publishing to a closed dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// Frame is one tick of telemetry handed to the sinks.
type Frame struct {
	Index     uint64
	Telemetry core.Telemetry
	Timestamp time.Time
}

// SinkFunc consumes a frame.
type SinkFunc func(Frame) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures sink registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the sink async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered sink block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the sink.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type sink struct {
	name string
	fn   SinkFunc
}

// Dispatcher fans telemetry frames out to registered sinks in registration order.
type Dispatcher struct {
	sinks  []sink
	logger Logger
	next   uint64
	closed bool

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	reg       metric.Registration

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan Frame
	wg      sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		buffers: make(map[string]chan Frame),
		logger:  logger,
	}

	m := otel.Meter(instrumentationName)

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of frames queued per sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	d.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("sink", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.frames.processed",
		metric.WithDescription("Total frames delivered to sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.frames.dropped",
		metric.WithDescription("Total frames dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a sink under the given name with optional configuration.
// Registering a name twice replaces the earlier sink in place.
func (d *Dispatcher) Register(name string, fn SinkFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := fn

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	} else {
		handler = d.withCount(name, handler)
	}

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.sinks {
		if d.sinks[i].name == name {
			d.sinks[i].fn = handler
			return
		}
	}
	d.sinks = append(d.sinks, sink{name: name, fn: handler})
}

// Publish hands the frame to every sink. Sink errors are joined; one failing
// sink does not stop delivery to the others.
func (d *Dispatcher) Publish(f Frame) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	var errs []error
	for _, s := range d.sinks {
		if err := s.fn(f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Deliver hands the frame to a single named sink.
func (d *Dispatcher) Deliver(name string, f Frame) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	for _, s := range d.sinks {
		if s.name == name {
			return s.fn(f)
		}
	}
	return fmt.Errorf("unknown sink: %s", name)
}

// Send numbers the telemetry with the next frame index and publishes it.
// It satisfies the turret exporter contract.
func (d *Dispatcher) Send(t core.Telemetry) error {
	d.mu.Lock()
	index := d.next
	d.next++
	d.mu.Unlock()
	return d.Publish(Frame{Index: index, Telemetry: t, Timestamp: time.Now()})
}

// HasSink returns true if a sink is registered under the name.
func (d *Dispatcher) HasSink(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.sinks {
		if s.name == name {
			return true
		}
	}
	return false
}

// Close stops accepting frames and waits for buffered sinks to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
	if d.reg != nil {
		_ = d.reg.Unregister()
	}
}

func (d *Dispatcher) withCount(name string, h SinkFunc) SinkFunc {
	attr := metric.WithAttributes(attribute.String("sink", name))
	return func(f Frame) error {
		err := h(f)
		d.processed.Add(context.Background(), 1, attr)
		return err
	}
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h SinkFunc) SinkFunc {
	buffer := make(chan Frame, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	attr := metric.WithAttributes(attribute.String("sink", name))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for f := range buffer {
			if err := h(f); err != nil && d.logger != nil {
				d.logger.Error("buffered sink failed", "sink", name, "frame", f.Index, "error", err)
			}
			d.processed.Add(context.Background(), 1, attr)
		}
	}()

	if blocking {
		return func(f Frame) error {
			buffer <- f
			return nil
		}
	}

	return func(f Frame) error {
		select {
		case buffer <- f:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, attr)
			return fmt.Errorf("queue full: %s", name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h SinkFunc) SinkFunc {
	return func(f Frame) error {
		start := time.Now()
		d.logger.Debug("publishing frame", "sink", name, "frame", f.Index, "tick", f.Telemetry.Tick)

		err := h(f)

		if err != nil {
			d.logger.Error("frame failed", "sink", name, "frame", f.Index, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("frame complete", "sink", name, "frame", f.Index, "duration", time.Since(start))
		}

		return err
	}
}
