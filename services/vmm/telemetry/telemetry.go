// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry-based observability for model
// inference runs.
//
// Init installs the global tracer and meter providers. Every algorithm run
// opens a span through StartSpan, and Metrics records per-run results on
// otel instruments. With both exporters set to "none" the otel API falls back
// to no-op providers and instrumentation costs next to nothing.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - BVMM_ENV: environment name (default: development)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned when Init is called without a context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an exporter name Init does not know.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this program in traces and metrics.
	ServiceName string `json:"service_name" yaml:"service_name"`

	// ServiceVersion is the version string reported with every span.
	ServiceVersion string `json:"service_version" yaml:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `json:"environment" yaml:"environment"`

	// TraceExporter selects the trace exporter: "otlp", "stdout", or "none".
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter"`

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter"`

	// OTLPEndpoint is the OTLP receiver endpoint for traces.
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool `json:"otlp_insecure" yaml:"otlp_insecure"`

	// Writer receives stdout exporter output. Nil means os.Stderr so that
	// reports written to stdout stay machine readable.
	Writer io.Writer `json:"-" yaml:"-"`
}

// DefaultConfig returns defaults suited to a command line tool: nothing is
// exported unless the environment asks for it.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "bvmm",
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("BVMM_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "none"),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", "none"),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Init initializes the telemetry stack with the given configuration.
//
// Description:
//
//	Sets up the OpenTelemetry TracerProvider and MeterProvider selected by
//	the configuration and installs them globally. The prometheus metric
//	exporter registers with the default prometheus registry, next to the
//	inference counters.
//
// Inputs:
//
//	ctx - Context for initialization (used for exporter connections).
//	cfg - Telemetry configuration.
//
// Outputs:
//
//	shutdown - Flushes and stops every provider. Must be called.
//	error - Non-nil if initialization fails.
//
// Thread Safety: Call once at program startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	if cfg.TraceExporter != "none" && cfg.TraceExporter != "" {
		tp, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" && cfg.MetricExporter != "" {
		mp, err := initMeter(cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(cfg.writer()), stdouttrace.WithPrettyPrint())

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

func initMeter(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.writer()), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

func (c Config) writer() io.Writer {
	if c.Writer != nil {
		return c.Writer
	}
	return os.Stderr
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
