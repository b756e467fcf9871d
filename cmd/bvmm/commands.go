// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/inference/bruteforce"
	"github.com/AleutianAI/bvmm/services/vmm/inference/greedy"
	"github.com/AleutianAI/bvmm/services/vmm/inference/mcmc"
)

func newEnumerateCmd(a *app) *cobra.Command {
	var maxHeight int
	cmd := &cobra.Command{
		Use:   "enumerate",
		Short: "Compute exact context probabilities by visiting every model",
		Long: `enumerate visits every model up to --max-height and reports the exact
posterior probability of each context. The number of models grows
exponentially, so keep the alphabet small and the height low.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config.BruteForce
			if cmd.Flags().Changed("max-height") {
				cfg.MaxHeight = maxHeight
			}
			return a.execute(cmd, func(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (*Report, error) {
				e := bruteforce.New(cfg.ToEnumeratorConfig(),
					bruteforce.WithLogger(a.logger.Slog()),
					bruteforce.WithMetrics(a.metrics))
				result, err := e.Run(ctx, obs, settings)
				if err != nil {
					return nil, err
				}
				r := newReport(e.Name(), result.RunID, result.Duration, obs, settings)
				r.Configurations = result.Configurations
				r.LogNormalizer = &result.LogNormalizer
				r.Contexts = collectContexts(result.Tree, a.opts.minProbability)
				return r, nil
			})
		},
	}
	cmd.Flags().IntVar(&maxHeight, "max-height", -1, "deepest context a model may contain (-1 for unlimited)")
	return cmd
}

func newOptimizeCmd(a *app) *cobra.Command {
	var (
		runs int
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Find a high scoring model by randomized hill climbing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config.Greedy
			if cmd.Flags().Changed("runs") {
				cfg.Runs = runs
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			return a.execute(cmd, func(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (*Report, error) {
				o := greedy.New(cfg.ToOptimizerConfig(),
					greedy.WithLogger(a.logger.Slog()),
					greedy.WithMetrics(a.metrics))
				result, err := o.Run(ctx, obs, settings)
				if err != nil {
					return nil, err
				}
				// Credit the chosen model once so it reports like a sample.
				result.Tree.ResetSamples()
				result.Tree.RecordSample(1)

				r := newReport(o.Name(), result.RunID, result.Duration, obs, settings)
				r.LogLikelihood = &result.LogLikelihood
				r.ModelSize = result.Tree.ModelSize()
				r.Contexts = collectContexts(result.Tree, a.opts.minProbability)
				return r, nil
			})
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 10, "number of restarts")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	var (
		samples     int
		period      int
		minSkipProb float64
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Estimate context probabilities by MCMC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config.MCMC
			flags := cmd.Flags()
			if flags.Changed("samples") {
				cfg.Samples = samples
			}
			if flags.Changed("period") {
				cfg.Period = period
			}
			if flags.Changed("min-skip-prob") {
				cfg.MinSkipProb = minSkipProb
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			return a.execute(cmd, func(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (*Report, error) {
				s := mcmc.New(cfg.ToSamplerConfig(),
					mcmc.WithLogger(a.logger.Slog()),
					mcmc.WithMetrics(a.metrics))
				result, err := s.Run(ctx, obs, settings)
				if err != nil {
					return nil, err
				}
				r := newReport(s.Name(), result.RunID, result.Duration, obs, settings)
				r.Diagnostics = &result.Diagnostics
				r.Contexts = collectContexts(result.Tree, a.opts.minProbability)
				return r, nil
			})
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 10000, "number of samples")
	cmd.Flags().IntVar(&period, "period", 1, "moves between samples")
	cmd.Flags().Float64Var(&minSkipProb, "min-skip-prob", 0.1, "base probability of the skip move")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")
	return cmd
}
