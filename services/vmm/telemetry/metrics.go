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
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the inference instruments.
const MeterName = "bvmm.inference"

// Metrics holds the otel instruments recorded once per inference run.
//
// A nil *Metrics is valid and records nothing.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// ModelSize records the number of parameter vectors of a result model.
	ModelSize metric.Int64Histogram

	// LogScore records the log score of a result: the best log posterior of
	// an optimization or the log normalizer of an enumeration.
	LogScore metric.Float64Histogram

	// AcceptanceRate records the fraction of accepted MCMC proposals.
	AcceptanceRate metric.Float64Histogram

	// Configurations counts models visited by exhaustive enumeration.
	Configurations metric.Int64Counter
}

// NewMetrics registers the instruments with meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ModelSize, err = meter.Int64Histogram(
		"bvmm_model_size",
		metric.WithDescription("Parameter vectors of result models"),
		metric.WithUnit("{vector}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024),
	)
	if err != nil {
		return nil, fmt.Errorf("create model_size: %w", err)
	}

	m.LogScore, err = meter.Float64Histogram(
		"bvmm_model_log_score",
		metric.WithDescription("Log posterior score of result models"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model_log_score: %w", err)
	}

	m.AcceptanceRate, err = meter.Float64Histogram(
		"bvmm_mcmc_acceptance_rate",
		metric.WithDescription("Fraction of accepted MCMC birth and death proposals"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_acceptance_rate: %w", err)
	}

	m.Configurations, err = meter.Int64Counter(
		"bvmm_bruteforce_configurations",
		metric.WithDescription("Models visited by exhaustive enumeration"),
		metric.WithUnit("{model}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create bruteforce_configurations: %w", err)
	}

	return m, nil
}

// NewGlobalMetrics registers the instruments with the global meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(MeterName))
}

// RecordModel records the size and score of a result model.
func (m *Metrics) RecordModel(ctx context.Context, algorithm string, size int, logScore float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("algorithm", algorithm))
	m.ModelSize.Record(ctx, int64(size), attrs)
	m.LogScore.Record(ctx, logScore, attrs)
}

// RecordAcceptance records the acceptance rate of one sampler run.
func (m *Metrics) RecordAcceptance(ctx context.Context, rate float64) {
	if m == nil {
		return
	}
	m.AcceptanceRate.Record(ctx, rate)
}

// RecordConfigurations adds the models visited by one enumeration.
func (m *Metrics) RecordConfigurations(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.Configurations.Add(ctx, int64(n))
}
