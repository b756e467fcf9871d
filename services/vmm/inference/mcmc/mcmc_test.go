// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcmc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/inference/bruteforce"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequenceObservations(t *testing.T, alphabet int, seqs ...[]int) *ctree.Observations {
	t.Helper()
	obs, err := ctree.NewSequenceObservations(alphabet, seqs...)
	require.NoError(t, err)
	return obs
}

// probabilities maps the context of every node to its sample count.
func probabilities(tree *ctree.Tree) map[string]float64 {
	out := map[string]float64{}
	tree.Walk(func(id ctree.NodeID) bool {
		out[fmt.Sprint(tree.Context(id))] = tree.SampleCount(id)
		return true
	})
	return out
}

// =============================================================================
// Move Probability Tests
// =============================================================================

func TestMoveProbabilities(t *testing.T) {
	tests := []struct {
		name        string
		nodes       int
		attachments int
		minimal     int
		wantBirth   float64
		wantDeath   float64
	}{
		{"sparse minimal without attachments", 1, 0, 1, 0, 0},
		{"sparse minimal", 1, 2, 1, 0.9, 0},
		{"full minimal", 0, 1, 0, 0.9, 0},
		{"no attachments", 3, 0, 1, 0, 0.9},
		{"both moves", 3, 4, 1, 0.45, 0.45},
		{"full single node", 1, 2, 0, 0.45, 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			birth, death := MoveProbabilities(tt.nodes, tt.attachments, tt.minimal, 0.1)
			assert.InDelta(t, tt.wantBirth, birth, 1e-12)
			assert.InDelta(t, tt.wantDeath, death, 1e-12)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"zero samples", Config{Samples: 0, Period: 1, MinSkipProb: 0.1}, true},
		{"zero period", Config{Samples: 10, Period: 0, MinSkipProb: 0.1}, true},
		{"zero skip", Config{Samples: 10, Period: 1, MinSkipProb: 0}, true},
		{"certain skip", Config{Samples: 10, Period: 1, MinSkipProb: 1}, true},
		{"negative log interval", Config{Samples: 10, Period: 1, MinSkipProb: 0.5, LogInterval: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, inference.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// Diagnostics Tests
// =============================================================================

func TestDiagnostics(t *testing.T) {
	d := Diagnostics{Moves: 10, Skips: 2, Births: 3, BirthAttempts: 4, Deaths: 1, DeathAttempts: 4}
	assert.InDelta(t, 0.75, d.BirthRate(), 1e-12)
	assert.InDelta(t, 0.25, d.DeathRate(), 1e-12)
	assert.InDelta(t, 0.5, d.AcceptanceRate(), 1e-12)
	assert.Equal(t, "births: 3/4 (75%)\ndeaths: 1/4 (25%)\nskips:  2", d.String())

	var empty Diagnostics
	assert.Zero(t, empty.BirthRate())
	assert.Zero(t, empty.AcceptanceRate())
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_TwoModelsMatchEnumeration(t *testing.T) {
	// Only the context [0] can join the model, so the chain moves between
	// two states.
	obs := sequenceObservations(t, 2, []int{0, 1}, []int{0, 1}, []int{0, 1}, []int{0, 0}, []int{1}, []int{1})
	settings := inference.DefaultSettings()

	exact, err := bruteforce.New(nil, bruteforce.WithLogger(quietLogger())).Run(context.Background(), obs, settings)
	require.NoError(t, err)
	require.Equal(t, 2, exact.Configurations)

	s := New(&Config{Samples: 40000, Period: 1, MinSkipProb: 0.1},
		WithLogger(quietLogger()), WithRand(rand.New(rand.NewPCG(3, 5))))
	result, err := s.Run(context.Background(), obs, settings)
	require.NoError(t, err)

	root := result.Tree.Root()
	c0 := result.Tree.Child(root, 0)
	assert.InDelta(t, 1.0, result.Tree.SampleCount(root), 1e-9)
	assert.InDelta(t, exact.Tree.SampleCount(exact.Tree.Child(exact.Tree.Root(), 0)),
		result.Tree.SampleCount(c0), 0.03)
}

func TestRun_MatchesEnumeration(t *testing.T) {
	obs := sequenceObservations(t, 2, []int{0, 1, 0, 1, 0, 0, 1})

	for _, mode := range []ctree.Mode{ctree.ModeSparse, ctree.ModeFull} {
		t.Run(string(mode), func(t *testing.T) {
			settings := inference.DefaultSettings()
			settings.Mode = mode
			settings.Prior = "poisson"

			exact, err := bruteforce.New(nil, bruteforce.WithLogger(quietLogger())).Run(context.Background(), obs, settings)
			require.NoError(t, err)

			s := New(&Config{Samples: 60000, Period: 2, MinSkipProb: 0.1},
				WithLogger(quietLogger()), WithRand(rand.New(rand.NewPCG(17, 19))))
			result, err := s.Run(context.Background(), obs, settings)
			require.NoError(t, err)

			want := probabilities(exact.Tree)
			for key, got := range probabilities(result.Tree) {
				assert.InDelta(t, want[key], got, 0.05, "context %s", key)
			}
		})
	}
}

func TestRun_Diagnostics(t *testing.T) {
	obs := sequenceObservations(t, 3, []int{0, 1, 2, 0, 1, 2, 2, 1, 0, 0, 1})
	s := New(&Config{Samples: 500, Period: 3, MinSkipProb: 0.2, LogInterval: 100},
		WithLogger(quietLogger()), WithRand(rand.New(rand.NewPCG(1, 1))))
	result, err := s.Run(context.Background(), obs, inference.DefaultSettings())
	require.NoError(t, err)

	d := result.Diagnostics
	assert.Equal(t, 1500, d.Moves)
	assert.Equal(t, d.Moves, d.Skips+d.BirthAttempts+d.DeathAttempts)
	assert.LessOrEqual(t, d.Births, d.BirthAttempts)
	assert.LessOrEqual(t, d.Deaths, d.DeathAttempts)
	assert.Greater(t, d.Skips, 0)
	assert.NotEmpty(t, result.RunID)

	tree := result.Tree
	assert.True(t, tree.IsMinimal(), "the sampler must tear the model down")
	assert.InDelta(t, 1.0, tree.SampleCount(tree.Root()), 1e-9)
	require.NoError(t, tree.Verify())
	assert.True(t, strings.HasPrefix(d.String(), "births: "))
}

func TestRun_Errors(t *testing.T) {
	obs := sequenceObservations(t, 2, []int{0, 1, 0, 1, 0})

	t.Run("nil observations", func(t *testing.T) {
		_, err := New(nil, WithLogger(quietLogger())).Run(context.Background(), nil, inference.DefaultSettings())
		assert.ErrorIs(t, err, inference.ErrNilObservations)
		var ae *inference.AlgorithmError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, "mcmc", ae.Algorithm)
		assert.Equal(t, "NewModel", ae.Operation)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := New(&Config{Samples: 10, Period: 1, MinSkipProb: 1.5}, WithLogger(quietLogger())).
			Run(context.Background(), obs, inference.DefaultSettings())
		assert.ErrorIs(t, err, inference.ErrInvalidConfig)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(&Config{Samples: 10000, Period: 1, MinSkipProb: 0.1}, WithLogger(quietLogger())).
			Run(ctx, obs, inference.DefaultSettings())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestName(t *testing.T) {
	assert.Equal(t, "mcmc", New(nil).Name())
}
