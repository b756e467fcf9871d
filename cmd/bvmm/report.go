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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/bvmm/pkg/ux"
	"github.com/AleutianAI/bvmm/services/vmm/config"
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/inference/mcmc"
)

// ErrUnknownFormat is returned for a report format other than yaml or json.
var ErrUnknownFormat = errors.New("unknown report format")

// Report is the machine readable outcome of one command.
type Report struct {
	Algorithm    string `json:"algorithm" yaml:"algorithm"`
	RunID        string `json:"run_id" yaml:"run_id"`
	Mode         string `json:"mode" yaml:"mode"`
	Kind         string `json:"kind" yaml:"kind"`
	Prior        string `json:"prior" yaml:"prior"`
	AlphabetSize int    `json:"alphabet_size" yaml:"alphabet_size"`
	Events       int    `json:"events" yaml:"events"`
	DurationMs   int64  `json:"duration_ms" yaml:"duration_ms"`

	Configurations int                  `json:"configurations,omitempty" yaml:"configurations,omitempty"`
	LogNormalizer  *float64             `json:"log_normalizer,omitempty" yaml:"log_normalizer,omitempty"`
	LogLikelihood  *float64             `json:"log_likelihood,omitempty" yaml:"log_likelihood,omitempty"`
	ModelSize      int                  `json:"model_size,omitempty" yaml:"model_size,omitempty"`
	Diagnostics    *mcmc.Diagnostics    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Contexts       []ContextProbability `json:"contexts" yaml:"contexts"`
}

// ContextProbability describes one context of the tree. Context lists the
// most recent symbol first.
type ContextProbability struct {
	Context     []int     `json:"context" yaml:"context,flow"`
	Counts      []float64 `json:"counts" yaml:"counts,flow"`
	Probability float64   `json:"probability" yaml:"probability"`
}

func newReport(algorithm, runID string, d time.Duration, obs *ctree.Observations, settings inference.Settings) *Report {
	return &Report{
		Algorithm:    algorithm,
		RunID:        runID,
		Mode:         string(settings.Mode),
		Kind:         string(obs.Kind()),
		Prior:        settings.Prior,
		AlphabetSize: obs.AlphabetSize(),
		Events:       obs.Len(),
		DurationMs:   d.Milliseconds(),
	}
}

// collectContexts lists every context credited with a sample count of at
// least minProbability, in depth-first order. Contexts never credited are
// left out.
func collectContexts(tree *ctree.Tree, minProbability float64) []ContextProbability {
	out := []ContextProbability{}
	tree.Walk(func(id ctree.NodeID) bool {
		p := tree.SampleCount(id)
		if p > 0 && p >= minProbability {
			out = append(out, ContextProbability{
				Context:     tree.Context(id),
				Counts:      tree.Counts(id),
				Probability: p,
			})
		}
		return true
	})
	return out
}

// SummaryFields returns the headline numbers of the report.
func (r *Report) SummaryFields() []ux.Field {
	fields := []ux.Field{
		ux.F("mode", r.Mode),
		ux.F("events", r.Events),
		ux.F("contexts", len(r.Contexts)),
	}
	if r.Configurations > 0 {
		fields = append(fields, ux.F("configurations", r.Configurations))
	}
	if r.LogNormalizer != nil {
		fields = append(fields, ux.F("log_normalizer", fmt.Sprintf("%.4f", *r.LogNormalizer)))
	}
	if r.LogLikelihood != nil {
		fields = append(fields,
			ux.F("log_likelihood", fmt.Sprintf("%.4f", *r.LogLikelihood)),
			ux.F("model_size", r.ModelSize))
	}
	if d := r.Diagnostics; d != nil {
		fields = append(fields,
			ux.F("births", fmt.Sprintf("%d/%d", d.Births, d.BirthAttempts)),
			ux.F("deaths", fmt.Sprintf("%d/%d", d.Deaths, d.DeathAttempts)),
			ux.F("skips", d.Skips))
	}
	return append(fields, ux.F("duration_ms", r.DurationMs))
}

func validateFormat(format string) error {
	switch format {
	case "yaml", "json":
		return nil
	}
	return fmt.Errorf("%w: %w: %q", config.ErrInvalid, ErrUnknownFormat, format)
}

// writeReport encodes r as yaml or json.
func writeReport(w io.Writer, r *Report, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(r); err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
