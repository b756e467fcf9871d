// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcmc estimates posterior activation probabilities with a
// birth/death Metropolis-Hastings sampler over models of a context tree.
//
// Every step proposes one of three moves: activate a random attachment
// (birth), deactivate a random model leaf (death) or leave the model alone
// (skip). Acceptance probabilities keep the chain reversible with respect to
// the model posterior, so the fraction of samples a node is credited in
// converges to its posterior probability.
package mcmc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
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
	algorithmName = "mcmc"
	tracerName    = "bvmm.inference.mcmc"

	// checkInterval is the number of steps between cancellation checks.
	checkInterval = 256
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures the sampler.
type Config struct {
	// Samples is the number of samples recorded.
	Samples int `json:"samples" yaml:"samples"`

	// Period is the number of moves between consecutive samples.
	Period int `json:"period" yaml:"period"`

	// MinSkipProb is the base probability of the skip move. The effective
	// probability is higher whenever a birth or death is impossible.
	MinSkipProb float64 `json:"min_skip_prob" yaml:"min_skip_prob"`

	// Seed seeds the generator. Zero derives a seed from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`

	// LogInterval is the number of samples between progress logs at Debug
	// level. Zero disables them.
	LogInterval int `json:"log_interval" yaml:"log_interval"`
}

// DefaultConfig returns 10000 samples taken at every move.
func DefaultConfig() *Config {
	return &Config{
		Samples:     10000,
		Period:      1,
		MinSkipProb: 0.1,
		LogInterval: 1000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Samples < 1 {
		return fmt.Errorf("%w: samples must be positive, got %d", inference.ErrInvalidConfig, c.Samples)
	}
	if c.Period < 1 {
		return fmt.Errorf("%w: period must be positive, got %d", inference.ErrInvalidConfig, c.Period)
	}
	if !(c.MinSkipProb > 0 && c.MinSkipProb < 1) {
		return fmt.Errorf("%w: min skip probability must be in (0, 1), got %v", inference.ErrInvalidConfig, c.MinSkipProb)
	}
	if c.LogInterval < 0 {
		return fmt.Errorf("%w: log interval must not be negative, got %d", inference.ErrInvalidConfig, c.LogInterval)
	}
	return nil
}

// MoveProbabilities returns the probabilities of proposing a birth and a
// death for a model with nodeCount active nodes and attachmentCount
// attachments. minimal is the node count of the minimal model. The skip move
// takes the remaining probability.
func MoveProbabilities(nodeCount, attachmentCount, minimal int, minSkip float64) (birth, death float64) {
	move := 1 - minSkip
	switch {
	case nodeCount <= minimal && attachmentCount == 0:
		return 0, 0
	case nodeCount <= minimal:
		return move, 0
	case attachmentCount == 0:
		return 0, move
	default:
		return move / 2, move / 2
	}
}

// -----------------------------------------------------------------------------
// Sampler
// -----------------------------------------------------------------------------

// Sampler draws models from the posterior.
//
// Thread Safety: Not safe for concurrent use when a shared generator is set
// with WithRand.
type Sampler struct {
	config  *Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	rng     *rand.Rand
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records run results on otel instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sampler) { s.metrics = m }
}

// WithRand replaces the generator seeded from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sampler) { s.rng = rng }
}

// New creates a Sampler. A nil config uses DefaultConfig().
func New(config *Config, opts ...Option) *Sampler {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Sampler{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the algorithm name.
func (s *Sampler) Name() string {
	return algorithmName
}

// Result is the outcome of a sampler run.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string

	// Tree holds the minimal model again after the run. SampleCount of
	// every node is the fraction of samples it was credited in.
	Tree *ctree.Tree

	// Diagnostics counts the moves.
	Diagnostics Diagnostics

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Run samples Config.Samples models.
//
// Description:
//
//	Builds a fresh minimal model from obs and performs Samples*Period
//	moves, crediting the current model after every Period moves. Sample
//	counts are divided by Samples and the model is torn down to the
//	minimal one before returning.
//
// Inputs:
//
//	ctx - Cancellation is checked periodically.
//	obs - The observations.
//	settings - The model family.
//
// Outputs:
//
//	*Result - The tree with estimated activation probabilities.
//	error - An *inference.AlgorithmError on invalid input, cancellation or
//	        a broken tree contract.
func (s *Sampler) Run(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (result *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "mcmc.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("mode", string(settings.Mode)),
			attribute.Int("samples", s.config.Samples),
			attribute.Int("period", s.config.Period),
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

	if err := s.config.Validate(); err != nil {
		return nil, s.fail("Validate", err)
	}
	tree, engine, err := settings.NewModel(obs)
	if err != nil {
		return nil, s.fail("NewModel", err)
	}

	rng := s.rng
	if rng == nil {
		rng = inference.NewRand(s.config.Seed)
	}

	logger := s.logger.With("algorithm", algorithmName, "run_id", runID)
	logger.Info("sampling started",
		"mode", settings.Mode,
		"samples", s.config.Samples,
		"period", s.config.Period,
		"alphabet_size", obs.AlphabetSize(),
		"events", obs.Len(),
	)

	c := &chain{tree: tree, engine: engine, rng: rng, minSkip: s.config.MinSkipProb}
	if err := s.sample(ctx, c, logger); err != nil {
		logger.Warn("sampling aborted", "moves", c.diag.Moves, "error", err)
		return nil, s.fail("Sample", err)
	}

	finalSize, finalScore := tree.ModelSize(), c.logScore
	tree.ScaleSamples(1 / float64(s.config.Samples))
	if err := tree.Reset(); err != nil {
		return nil, s.fail("Reset", err)
	}

	result = &Result{
		RunID:       runID,
		Tree:        tree,
		Diagnostics: c.diag,
		Duration:    time.Since(start),
	}

	d := result.Diagnostics
	inference.RecordMoves(d.Births, d.BirthAttempts, d.Deaths, d.DeathAttempts, d.Skips)
	s.metrics.RecordAcceptance(ctx, d.AcceptanceRate())
	s.metrics.RecordModel(ctx, algorithmName, finalSize, finalScore)
	span.SetAttributes(
		attribute.Int("births", d.Births),
		attribute.Int("deaths", d.Deaths),
		attribute.Float64("acceptance_rate", d.AcceptanceRate()),
	)

	logger.Info("sampling finished",
		"births", d.Births,
		"birth_attempts", d.BirthAttempts,
		"deaths", d.Deaths,
		"death_attempts", d.DeathAttempts,
		"skips", d.Skips,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *Sampler) sample(ctx context.Context, c *chain, logger *slog.Logger) error {
	steps := s.config.Samples * s.config.Period
	for step := 1; step <= steps; step++ {
		if step%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if err := c.step(); err != nil {
			return err
		}

		if step%s.config.Period == 0 {
			c.tree.RecordSample(1)
			n := step / s.config.Period
			if s.config.LogInterval > 0 && n%s.config.LogInterval == 0 {
				logger.Debug("sampling progress",
					"samples", n,
					"model_size", c.tree.ModelSize(),
					"log_likelihood", c.logScore,
				)
			}
		}
	}
	return nil
}

func (s *Sampler) fail(op string, err error) error {
	return &inference.AlgorithmError{Algorithm: algorithmName, Operation: op, Err: err}
}

// -----------------------------------------------------------------------------
// Chain
// -----------------------------------------------------------------------------

// chain is the state of one sampler run.
type chain struct {
	tree    *ctree.Tree
	engine  *likelihood.Engine
	rng     *rand.Rand
	minSkip float64
	diag    Diagnostics

	// logScore is the log posterior of the current model relative to the
	// minimal one.
	logScore float64
}

func (c *chain) step() error {
	root := c.tree.Root()
	birth, death := MoveProbabilities(c.tree.NodeCount(root), c.tree.AttachmentCount(root),
		c.tree.MinimalNodeCount(), c.minSkip)

	c.diag.Moves++
	m := c.rng.Float64()
	switch {
	case m < birth:
		c.diag.BirthAttempts++
		accepted, err := c.birth()
		if err != nil {
			return err
		}
		if accepted {
			c.diag.Births++
		}
	case m < birth+death:
		c.diag.DeathAttempts++
		accepted, err := c.death()
		if err != nil {
			return err
		}
		if accepted {
			c.diag.Deaths++
		}
	default:
		c.diag.Skips++
	}
	return nil
}

// birth activates a random attachment and keeps it with probability
// min(1, 1/a), where a is the acceptance of the reverse death.
//
// The node is activated before scoring because the reverse move needs the
// counts of children that only exist once it is active.
func (c *chain) birth() (bool, error) {
	root := c.tree.Root()
	v, err := c.tree.AttachmentAt(root, c.rng.IntN(c.tree.AttachmentCount(root)))
	if err != nil {
		return false, err
	}
	if err := c.tree.Activate(v); err != nil {
		return false, err
	}
	logScore, logA := c.deathAcceptance(v)
	if c.rng.Float64() > math.Exp(-logA) {
		return false, c.tree.Deactivate(v)
	}
	c.logScore -= logScore
	return true, nil
}

// death deactivates a random model leaf with probability min(1, a).
func (c *chain) death() (bool, error) {
	root := c.tree.Root()
	v, err := c.tree.LeafAt(root, c.rng.IntN(c.tree.LeafCount(root)))
	if err != nil {
		return false, err
	}
	logScore, logA := c.deathAcceptance(v)
	if c.rng.Float64() > math.Exp(logA) {
		return false, nil
	}
	if err := c.tree.Deactivate(v); err != nil {
		return false, err
	}
	c.logScore += logScore
	return true, nil
}

// deathAcceptance returns the log posterior ratio of removing the model leaf
// v and the log Metropolis-Hastings ratio of that move, proposal
// probabilities included.
func (c *chain) deathAcceptance(v ctree.NodeID) (logScore, logA float64) {
	root := c.tree.Root()
	nodes := c.tree.NodeCount(root)
	leaves := c.tree.LeafCount(root)
	attachments := c.tree.AttachmentCount(root)
	minimal := c.tree.MinimalNodeCount()

	// Attachments after the death: v's own attachments go away and v
	// becomes one.
	after := attachments - c.tree.AttachmentCount(v) + 1

	_, death := MoveProbabilities(nodes, attachments, minimal, c.minSkip)
	birth, _ := MoveProbabilities(nodes-1, after, minimal, c.minSkip)

	logScore = c.engine.DeathLogScore(c.tree, v)
	logA = logScore +
		math.Log(birth) - math.Log(float64(after)) +
		math.Log(float64(leaves)) - math.Log(death)
	return logScore, logA
}
