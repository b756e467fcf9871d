// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "bvmm" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "bvmm")
	}
	if cfg.TraceExporter != "none" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "none")
	}
	if cfg.MetricExporter != "none" {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, "none")
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestDefaultConfig_Environment(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("BVMM_ENV", "ci")
	cfg := DefaultConfig()

	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q, want stdout", cfg.TraceExporter)
	}
	if cfg.Environment != "ci" {
		t.Errorf("Environment = %q, want ci", cfg.Environment)
	}
}

func TestInit_NilContext(t *testing.T) {
	//lint:ignore SA1012 nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	if err != ErrNilContext {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_NoopExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_StdoutExporters(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "stdout"
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := StartSpan(context.Background(), "bvmm.test", "test.span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "test.span") {
		t.Errorf("stdout exporter output does not contain the span: %q", buf.String())
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"trace", Config{TraceExporter: "zipkin", MetricExporter: "none"}},
		{"metric", Config{TraceExporter: "none", MetricExporter: "influx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(context.Background(), tt.cfg)
			if !errors.Is(err, ErrUnknownExporter) {
				t.Errorf("Init() error = %v, want %v", err, ErrUnknownExporter)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("bvmm.test").Start(context.Background(), "failing")
	RecordError(span, errors.New("boom"))
	span.End()

	_, ok := tp.Tracer("bvmm.test").Start(context.Background(), "passing")
	SetSpanOK(ok)
	ok.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("failing span status = %+v", spans[0].Status())
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("failing span has %d events, want 1", len(spans[0].Events()))
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("passing span status = %+v", spans[1].Status())
	}

	// Nil inputs are ignored.
	RecordError(nil, errors.New("x"))
	SetSpanOK(nil)
	AddSpanEvent(nil, "x")
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() without span = %q, want empty", got)
	}

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("bvmm.test").Start(context.Background(), "op")
	defer span.End()
	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID() = %q, want 32 hex digits", got)
	}
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordModel(ctx, "greedy", 5, -12.5)
	m.RecordAcceptance(ctx, 0.25)
	m.RecordConfigurations(ctx, 7)
	m.RecordConfigurations(ctx, 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
			if metric.Name == "bvmm_bruteforce_configurations" {
				sum, ok := metric.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 10 {
					t.Errorf("configurations = %+v, want a single point of 10", metric.Data)
				}
			}
		}
	}
	for _, name := range []string{"bvmm_model_size", "bvmm_model_log_score", "bvmm_mcmc_acceptance_rate", "bvmm_bruteforce_configurations"} {
		if !found[name] {
			t.Errorf("metric %s was not collected", name)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordModel(ctx, "mcmc", 1, 0)
	m.RecordAcceptance(ctx, 1)
	m.RecordConfigurations(ctx, 1)
}
