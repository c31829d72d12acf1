package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultMetricInterval = 10 * time.Second

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // File to write OTel logs to
	MetricWriter io.Writer // File to write periodic metric snapshots to (optional)
	// MetricInterval is the export period for MetricWriter. Zero means 10s.
	MetricInterval time.Duration
	Endpoint       string // OTLP endpoint (optional, only used if set)
	Insecure       bool   // Use insecure connection for OTLP
}

// Provider manages OpenTelemetry providers for logs and metrics
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New builds the providers described by cfg. A disabled config yields a
// provider whose methods are no-ops. When MetricWriter is set the meter
// provider is installed globally so package-level instruments export.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	processors, err := logProcessors(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)

	if cfg.MetricWriter != nil {
		if p.meterProvider, err = newMeterProvider(res, cfg); err != nil {
			return nil, err
		}
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

// logProcessors returns one batch processor per configured destination.
func logProcessors(ctx context.Context, cfg Config) ([]sdklog.Processor, error) {
	var exporters []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if cfg.Endpoint != "" {
		httpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if len(exporters) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	processors := make([]sdklog.Processor, 0, len(exporters))
	for _, exp := range exporters {
		processors = append(processors, sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)))
	}
	return processors, nil
}

func newMeterProvider(res *resource.Resource, cfg Config) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

// LoggerProvider is the provider for the otelslog bridge; nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter with the given name, or a no-op meter when metrics
// are not exported.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Flush exports pending log records and metrics.
func (p *Provider) Flush(ctx context.Context) error {
	return p.each("flush", func(lp *sdklog.LoggerProvider) error { return lp.ForceFlush(ctx) },
		func(mp *sdkmetric.MeterProvider) error { return mp.ForceFlush(ctx) })
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.each("shutdown", func(lp *sdklog.LoggerProvider) error { return lp.Shutdown(ctx) },
		func(mp *sdkmetric.MeterProvider) error { return mp.Shutdown(ctx) })
}

func (p *Provider) each(op string, logs func(*sdklog.LoggerProvider) error, metrics func(*sdkmetric.MeterProvider) error) error {
	if !p.config.Enabled {
		return nil
	}
	var errs []error
	if p.logProvider != nil {
		if err := logs(p.logProvider); err != nil {
			errs = append(errs, fmt.Errorf("log %s failed: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := metrics(p.meterProvider); err != nil {
			errs = append(errs, fmt.Errorf("metric %s failed: %w", op, err))
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether OTel was enabled in the config.
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
