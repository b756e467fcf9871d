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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/bvmm/pkg/logging"
	"github.com/AleutianAI/bvmm/pkg/ux"
	"github.com/AleutianAI/bvmm/services/vmm/config"
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/telemetry"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath     string
	dataPath       string
	kind           string
	alphabet       int
	mode           string
	prior          string
	concentration  string
	heightStep     int
	fringe         bool
	format         string
	outputPath     string
	minProbability float64
	metricsFile    string
	logLevel       string
	quiet          bool
}

// app carries what setup builds for a subcommand.
type app struct {
	opts     rootOptions
	config   config.Config
	logger   *logging.Logger
	metrics  *telemetry.Metrics
	shutdown func(context.Context) error
}

// runFunc runs one algorithm and describes its result.
type runFunc func(ctx context.Context, obs *ctree.Observations, settings inference.Settings) (*Report, error)

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "bvmm",
		Short: "Bayesian variable-order Markov model inference",
		Long: `bvmm infers which contexts of a variable-order Markov model are supported
by integer-coded sequence or network data. It can enumerate every model,
optimize for the best one or sample models by MCMC.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "YAML or JSON config file")
	flags.StringVarP(&a.opts.dataPath, "data", "d", "", "input file (default stdin)")
	flags.StringVar(&a.opts.kind, "kind", "", "input kind: sequence or network")
	flags.IntVar(&a.opts.alphabet, "alphabet", 0, "alphabet size (0 infers it from the data)")
	flags.StringVar(&a.opts.mode, "mode", "", "model mode: sparse or full")
	flags.StringVar(&a.opts.prior, "prior", "", "model size prior: uniform, inverse or poisson")
	flags.StringVar(&a.opts.concentration, "concentration", "", "comma separated Dirichlet concentration")
	flags.IntVar(&a.opts.heightStep, "height-step", 1, "tree levels grown at once")
	flags.BoolVar(&a.opts.fringe, "fringe", false, "credit only the fringe of each model")
	flags.StringVarP(&a.opts.format, "format", "f", "yaml", "report format: yaml or json")
	flags.StringVarP(&a.opts.outputPath, "output", "o", "", "report file (default stdout)")
	flags.Float64Var(&a.opts.minProbability, "min-probability", 0, "omit contexts below this probability")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVarP(&a.opts.quiet, "quiet", "q", false, "suppress logs and the summary")

	cmd.AddCommand(newEnumerateCmd(a), newOptimizeCmd(a), newSampleCmd(a))
	return cmd
}

// setup loads the configuration, applies flag overrides and starts logging
// and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.Path = a.opts.dataPath
	}
	if flags.Changed("kind") {
		cfg.Data.Kind = a.opts.kind
	}
	if flags.Changed("alphabet") {
		cfg.Data.AlphabetSize = a.opts.alphabet
	}
	if flags.Changed("mode") {
		cfg.Model.Mode = a.opts.mode
	}
	if flags.Changed("prior") {
		cfg.Model.Prior = a.opts.prior
	}
	if flags.Changed("concentration") {
		alpha, err := config.ParseConcentration(a.opts.concentration)
		if err != nil {
			return fmt.Errorf("%w: --concentration: %w", config.ErrInvalid, err)
		}
		cfg.Model.Concentration = alpha
	}
	if flags.Changed("height-step") {
		cfg.Model.HeightStep = a.opts.heightStep
	}
	if flags.Changed("fringe") {
		cfg.Model.Fringe = a.opts.fringe
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.opts.logLevel
	}
	if a.opts.quiet {
		cfg.Logging.Quiet = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateFormat(a.opts.format); err != nil {
		return err
	}
	if a.opts.minProbability < 0 || a.opts.minProbability > 1 {
		return fmt.Errorf("%w: --min-probability must be in [0, 1], got %v", config.ErrInvalid, a.opts.minProbability)
	}
	a.config = cfg

	lc := cfg.Logging.ToLoggerConfig("bvmm")
	lc.Output = cmd.ErrOrStderr()
	if !ux.IsTerminal(lc.Output) {
		lc.JSON = true
	}
	a.logger = logging.New(lc)

	ctx := commandContext(cmd)
	a.shutdown, err = telemetry.Init(ctx, cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		return errors.Join(err, a.logger.Close())
	}
	a.metrics, err = telemetry.NewGlobalMetrics()
	if err != nil {
		return errors.Join(err, a.close(ctx))
	}
	return nil
}

// execute reads the input, runs the algorithm and writes its report.
// Telemetry is flushed and the metrics file written even when the run fails.
func (a *app) execute(cmd *cobra.Command, run runFunc) (err error) {
	ctx := commandContext(cmd)
	defer func() {
		err = errors.Join(err, a.close(ctx))
	}()

	obs, err := a.readInput(cmd)
	if err != nil {
		return err
	}
	report, err := run(ctx, obs, a.config.Model.ToSettings())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.opts.outputPath != "" {
		f, err := os.Create(a.opts.outputPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeReport(out, report, a.opts.format); err != nil {
		return err
	}

	if !a.opts.quiet {
		ux.NewPrinter(cmd.ErrOrStderr()).Summary(report.Algorithm, report.SummaryFields()...)
	}
	return nil
}

func (a *app) readInput(cmd *cobra.Command) (*ctree.Observations, error) {
	var r io.Reader = cmd.InOrStdin()
	if path := a.config.Data.Path; path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open data: %w", err)
		}
		defer f.Close()
		r = f
	}
	return readObservations(r, a.config.Data.ToKind(), a.config.Data.AlphabetSize)
}

// close writes the metrics file, flushes telemetry and closes the log file.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.opts.metricsFile, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		}
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
