// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package greedy finds a high scoring model by randomized hill climbing.
//
// Each run starts from the minimal model and keeps activating the first
// attachment, in random order, whose activation raises the posterior. A run
// ends when no attachment improves it; the best of several runs is kept.
package greedy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/likelihood"
	"github.com/AleutianAI/bvmm/services/vmm/telemetry"
)

const (
	algorithmName = "greedy"
	tracerName    = "bvmm.inference.greedy"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures the optimizer.
type Config struct {
	// Runs is the number of restarts. The best run wins.
	Runs int `json:"runs" yaml:"runs"`

	// Seed seeds the random scan order. Zero derives a seed from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns ten restarts with a clock seed.
func DefaultConfig() *Config {
	return &Config{Runs: 10}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Runs < 1 {
		return fmt.Errorf("%w: runs must be positive, got %d", inference.ErrInvalidConfig, c.Runs)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Optimizer
// -----------------------------------------------------------------------------

// Optimizer searches for the highest scoring model.
//
// Thread Safety: Not safe for concurrent use when a shared generator is set
// with WithRand.
type Optimizer struct {
	config  *Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	rng     *rand.Rand
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records run results on otel instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// WithRand replaces the generator seeded from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(o *Optimizer) { o.rng = rng }
}

// New creates an Optimizer. A nil config uses DefaultConfig().
func New(config *Config, opts ...Option) *Optimizer {
	if config == nil {
		config = DefaultConfig()
	}
	o := &Optimizer{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the algorithm name.
func (o *Optimizer) Name() string {
	return algorithmName
}

// Result is the outcome of an optimization.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string

	// Tree holds the best model found.
	Tree *ctree.Tree

	// LogLikelihood is the log posterior of Tree relative to the minimal
	// model.
	LogLikelihood float64

	// RunLogLikelihoods holds the final score of every restart, in order.
	RunLogLikelihoods []float64

	// Duration is the wall time of all restarts.
	Duration time.Duration
}

// Run performs Config.Runs restarts and returns the best model.
//
// Description:
//
//	Every restart builds a fresh minimal model from obs. It scans the
//	attachments in a random order and activates the first whose birth
//	score is positive, then scans again. The restart ends after a scan
//	without improvement. A later restart replaces the best one only if it
//	scores strictly higher.
//
// Inputs:
//
//	ctx - Cancellation is checked before every scan.
//	obs - The observations.
//	settings - The model family.
//
// Outputs:
//
//	*Result - The best model and the score of every restart.
//	error - An *inference.AlgorithmError on invalid input, cancellation or
//	        a broken tree contract.
func (o *Optimizer) Run(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (result *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "greedy.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("mode", string(settings.Mode)),
			attribute.Int("runs", o.config.Runs),
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

	if err := o.config.Validate(); err != nil {
		return nil, o.fail("Validate", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, o.fail("Validate", err)
	}
	if obs == nil {
		return nil, o.fail("NewModel", inference.ErrNilObservations)
	}

	rng := o.rng
	if rng == nil {
		rng = inference.NewRand(o.config.Seed)
	}

	logger := o.logger.With("algorithm", algorithmName, "run_id", runID)
	logger.Info("optimization started",
		"mode", settings.Mode,
		"runs", o.config.Runs,
		"alphabet_size", obs.AlphabetSize(),
		"events", obs.Len(),
	)

	result = &Result{RunID: runID, RunLogLikelihoods: make([]float64, 0, o.config.Runs)}
	for r := 0; r < o.config.Runs; r++ {
		tree, engine, err := settings.NewModel(obs)
		if err != nil {
			return nil, o.fail("NewModel", err)
		}
		score, err := climb(ctx, tree, engine, rng)
		if err != nil {
			logger.Warn("optimization aborted", "restart", r, "error", err)
			return nil, o.fail("Climb", err)
		}
		logger.Debug("restart finished", "restart", r, "log_likelihood", score, "model_size", tree.ModelSize())

		result.RunLogLikelihoods = append(result.RunLogLikelihoods, score)
		if result.Tree == nil || score > result.LogLikelihood {
			result.Tree = tree
			result.LogLikelihood = score
		}
	}
	result.Duration = time.Since(start)

	o.metrics.RecordModel(ctx, algorithmName, result.Tree.ModelSize(), result.LogLikelihood)
	span.SetAttributes(
		attribute.Float64("log_likelihood", result.LogLikelihood),
		attribute.Int("model_size", result.Tree.ModelSize()),
	)

	logger.Info("optimization finished",
		"log_likelihood", result.LogLikelihood,
		"model_size", result.Tree.ModelSize(),
		"duration", result.Duration,
	)
	return result, nil
}

// climb activates improving attachments until none is left and returns the
// accumulated score.
func climb(ctx context.Context, tree *ctree.Tree, engine *likelihood.Engine, rng *rand.Rand) (float64, error) {
	root := tree.Root()
	score := 0.0
	for improved := true; improved; {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		improved = false
		for _, a := range rng.Perm(tree.AttachmentCount(root)) {
			v, err := tree.AttachmentAt(root, a)
			if err != nil {
				return 0, err
			}
			delta := engine.BirthLogScore(tree, v)
			if delta <= 0 {
				continue
			}
			if err := tree.Activate(v); err != nil {
				return 0, err
			}
			score += delta
			improved = true
			break
		}
	}
	return score, nil
}

func (o *Optimizer) fail(op string, err error) error {
	return &inference.AlgorithmError{Algorithm: algorithmName, Operation: op, Err: err}
}
