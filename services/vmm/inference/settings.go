// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inference holds what the structure inference algorithms share:
// the model settings every run is configured with, model construction,
// errors and run metrics.
//
// The algorithms themselves live in the bruteforce, greedy and mcmc
// subpackages.
package inference

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/likelihood"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilObservations indicates a run was started without data.
	ErrNilObservations = errors.New("observations must not be nil")

	// ErrInvalidConfig indicates an algorithm configuration that fails
	// validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// AlgorithmError wraps a failure with the algorithm and the step it
// happened in.
type AlgorithmError struct {
	Algorithm string
	Operation string
	Err       error
}

func (e *AlgorithmError) Error() string {
	return e.Algorithm + "." + e.Operation + ": " + e.Err.Error()
}

func (e *AlgorithmError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

// Settings describes the model family a run explores. It is passed by value
// and never modified by the algorithms; Concentration must not be changed by
// the caller while a run is in progress.
type Settings struct {
	// Mode selects sparse or full models.
	Mode ctree.Mode `json:"mode" yaml:"mode"`

	// HeightStep is the number of tree levels grown at once.
	HeightStep int `json:"height_step" yaml:"height_step"`

	// Fringe restricts sample counting to the model fringe.
	Fringe bool `json:"fringe" yaml:"fringe"`

	// Prior names the model size prior: uniform, inverse or poisson.
	Prior string `json:"prior" yaml:"prior"`

	// Concentration is the Dirichlet parameter vector. Nil means all ones.
	Concentration []float64 `json:"concentration,omitempty" yaml:"concentration,omitempty"`
}

// DefaultSettings returns sparse models under a uniform size prior.
func DefaultSettings() Settings {
	return Settings{
		Mode:       ctree.ModeSparse,
		HeightStep: 1,
		Prior:      "uniform",
	}
}

// TreeOptions converts the settings into context tree options.
func (s Settings) TreeOptions() ctree.Options {
	return ctree.Options{Mode: s.Mode, HeightStep: s.HeightStep, Fringe: s.Fringe}
}

// Validate checks everything that does not depend on the data.
func (s Settings) Validate() error {
	if err := s.TreeOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := likelihood.PriorByName(s.Prior); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewModel builds a fresh tree over obs holding the minimal model, and the
// engine that scores it.
//
// Sparse models start with the root active. Full models start with nothing
// active and the root as the only attachment.
func (s Settings) NewModel(obs *ctree.Observations) (*ctree.Tree, *likelihood.Engine, error) {
	if obs == nil {
		return nil, nil, ErrNilObservations
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	prior, _ := likelihood.PriorByName(s.Prior)
	alpha, err := likelihood.NewConcentration(obs.AlphabetSize(), s.Concentration)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	tree, err := ctree.New(obs, s.TreeOptions())
	if err != nil {
		return nil, nil, err
	}
	if tree.Mode() == ctree.ModeSparse {
		if err := tree.Activate(tree.Root()); err != nil {
			return nil, nil, err
		}
	}
	return tree, likelihood.NewEngine(alpha, prior), nil
}

// NewRand returns a PCG generator. A zero seed derives one from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
