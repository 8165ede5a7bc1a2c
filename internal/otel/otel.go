// Package otel wires OpenTelemetry tracing and metrics for command-center.
//
// Every process gets a tracer and a Metrics set. Exporters are only built
// when the config carries an OTLP target; otherwise spans and measurements
// are dropped.
package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/command-center/internal/config"
)

const (
	serviceName = "command-center"

	defaultExportInterval = 15 * time.Second
)

// Options describes the running orchestrator. The host attributes end up on
// every exported span and metric so several servers can share a collector.
type Options struct {
	Version     string
	Mux         string
	HostSession string
	MaxSessions int
	Target      config.OTLP

	// ExportInterval is the metric push period. Zero means 15s.
	ExportInterval time.Duration
}

// OptionsFrom builds Options from a loaded config.
func OptionsFrom(cfg *config.Config, version string) Options {
	return Options{
		Version:     version,
		Mux:         cfg.Mux,
		HostSession: cfg.HostSession,
		MaxSessions: cfg.MaxSessions,
		Target:      cfg.OTLP,
	}
}

// Telemetry holds the providers and instruments handed to the registry,
// monitor, server and evaluator.
type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	Tracer  trace.Tracer
	Metrics *Metrics
}

// Init builds the telemetry for one serve process.
func Init(ctx context.Context, opts Options) (*Telemetry, error) {
	t := &Telemetry{}

	if opts.Target.Enabled() {
		res, err := newResource(ctx, opts)
		if err != nil {
			return nil, err
		}
		if t.tp, err = newTracerProvider(ctx, opts.Target, res); err != nil {
			return nil, err
		}
		if t.mp, err = newMeterProvider(ctx, opts, res); err != nil {
			_ = t.tp.Shutdown(ctx)
			return nil, err
		}
		otel.SetTracerProvider(t.tp)
		otel.SetMeterProvider(t.mp)
	}

	t.Tracer = otel.Tracer(serviceName)
	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	t.Metrics = metrics
	return t, nil
}

// Exporting reports whether spans and metrics leave the process.
func (t *Telemetry) Exporting() bool {
	return t != nil && t.tp != nil
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func resourceAttributes(opts Options) []attribute.KeyValue {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		attribute.Int("command_center.max_sessions", opts.MaxSessions),
	}
	if opts.Mux != "" {
		attrs = append(attrs, attribute.String("command_center.mux", opts.Mux))
	}
	if opts.HostSession != "" {
		attrs = append(attrs, attribute.String("command_center.host_session", opts.HostSession))
	}
	return attrs
}

func newResource(ctx context.Context, opts Options) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(resourceAttributes(opts)...),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, target config.OTLP, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(target.Host),
		otlptracehttp.WithURLPath(target.BasePath + "/v1/traces"),
	}
	if target.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(target.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(target.Headers))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	target := opts.Target
	expOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(target.Host),
		otlpmetrichttp.WithURLPath(target.BasePath + "/v1/metrics"),
	}
	if target.Insecure {
		expOpts = append(expOpts, otlpmetrichttp.WithInsecure())
	}
	if len(target.Headers) > 0 {
		expOpts = append(expOpts, otlpmetrichttp.WithHeaders(target.Headers))
	}
	exp, err := otlpmetrichttp.New(ctx, expOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel metric exporter: %w", err)
	}
	interval := opts.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	), nil
}
