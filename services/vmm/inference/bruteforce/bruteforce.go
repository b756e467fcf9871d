// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bruteforce computes exact posterior activation probabilities by
// visiting every model of a context tree.
//
// The number of models grows exponentially with the number of reachable
// contexts, so enumeration is only practical for small alphabets and shallow
// trees. It serves as the reference the sampler is checked against.
package bruteforce

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/telemetry"
)

const (
	algorithmName = "bruteforce"
	tracerName    = "bvmm.inference.bruteforce"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures the enumerator.
type Config struct {
	// MaxHeight is the deepest context a model may contain. Negative means
	// unlimited; the observations then bound the depth.
	MaxHeight int `json:"max_height" yaml:"max_height"`

	// CheckInterval is the number of enumeration steps between cancellation
	// checks.
	CheckInterval int `json:"check_interval" yaml:"check_interval"`
}

// DefaultConfig returns an unlimited enumeration.
func DefaultConfig() *Config {
	return &Config{
		MaxHeight:     -1,
		CheckInterval: 4096,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.CheckInterval < 1 {
		return fmt.Errorf("%w: check interval must be positive, got %d", inference.ErrInvalidConfig, c.CheckInterval)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Enumerator
// -----------------------------------------------------------------------------

// Enumerator visits every model of a context tree.
//
// Thread Safety: Safe for concurrent use; every run builds its own tree.
type Enumerator struct {
	config  *Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enumerator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records run results on otel instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Enumerator) { e.metrics = m }
}

// New creates an Enumerator. A nil config uses DefaultConfig().
func New(config *Config, opts ...Option) *Enumerator {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Enumerator{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the algorithm name.
func (e *Enumerator) Name() string {
	return algorithmName
}

// Result is the outcome of an enumeration.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string

	// Tree holds the minimal model again after the run. SampleCount of
	// every node is its exact posterior activation probability.
	Tree *ctree.Tree

	// Configurations is the number of models visited.
	Configurations int

	// LogNormalizer is the log of the summed unnormalized posterior of all
	// models, relative to the minimal model.
	LogNormalizer float64

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Run enumerates every model reachable within MaxHeight.
//
// Description:
//
//	Builds a fresh tree from obs, visits every model exactly once and
//	weights it by its posterior relative to the minimal model. Weights are
//	accumulated on every node of the visited model and finally divided by
//	their total.
//
// Inputs:
//
//	ctx - Cancellation is checked every CheckInterval steps.
//	obs - The observations.
//	settings - The model family.
//
// Outputs:
//
//	*Result - The tree with normalized sample counts.
//	error - An *inference.AlgorithmError on invalid input, cancellation or
//	        a broken tree contract.
func (e *Enumerator) Run(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (result *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "bruteforce.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("mode", string(settings.Mode)),
			attribute.Int("max_height", e.config.MaxHeight),
		),
	)
	defer func() {
		inference.RecordRun(algorithmName, start, err)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanOK(span)
		}
		span.End()
	}()

	if err := e.config.Validate(); err != nil {
		return nil, e.fail("Validate", err)
	}
	tree, engine, err := settings.NewModel(obs)
	if err != nil {
		return nil, e.fail("NewModel", err)
	}

	logger := e.logger.With("algorithm", algorithmName, "run_id", runID)
	logger.Info("enumeration started",
		"mode", settings.Mode,
		"max_height", e.config.MaxHeight,
		"alphabet_size", obs.AlphabetSize(),
		"events", obs.Len(),
	)

	w := newWalker(tree, engine)
	if err := w.run(ctx, e.config.MaxHeight, e.config.CheckInterval); err != nil {
		logger.Warn("enumeration aborted", "configurations", w.configurations, "error", err)
		return nil, e.fail("Enumerate", err)
	}
	tree.ScaleSamples(1 / w.total)

	result = &Result{
		RunID:          runID,
		Tree:           tree,
		Configurations: w.configurations,
		LogNormalizer:  w.shift + math.Log(w.total),
		Duration:       time.Since(start),
	}

	inference.RecordConfigurations(result.Configurations)
	e.metrics.RecordConfigurations(ctx, result.Configurations)
	e.metrics.RecordModel(ctx, algorithmName, tree.ModelSize(), result.LogNormalizer)
	span.SetAttributes(attribute.Int("configurations", result.Configurations))

	logger.Info("enumeration finished",
		"configurations", result.Configurations,
		"log_normalizer", result.LogNormalizer,
		"duration", result.Duration,
	)
	return result, nil
}

func (e *Enumerator) fail(op string, err error) error {
	return &inference.AlgorithmError{Algorithm: algorithmName, Operation: op, Err: err}
}
