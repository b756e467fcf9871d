// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package inference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/likelihood"
)

func testObservations(t *testing.T) *ctree.Observations {
	t.Helper()
	obs, err := ctree.NewSequenceObservations(2, []int{0, 1, 1, 0, 1})
	require.NoError(t, err)
	return obs
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr error
	}{
		{"defaults", func(*Settings) {}, nil},
		{"full mode", func(s *Settings) { s.Mode = ctree.ModeFull }, nil},
		{"unknown mode", func(s *Settings) { s.Mode = "complete" }, ctree.ErrInvalidMode},
		{"zero height step", func(s *Settings) { s.HeightStep = 0 }, ctree.ErrInvalidHeightStep},
		{"unknown prior", func(s *Settings) { s.Prior = "geometric" }, likelihood.ErrUnknownPrior},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSettings_NewModel(t *testing.T) {
	obs := testObservations(t)

	t.Run("sparse starts with the root active", func(t *testing.T) {
		tree, engine, err := DefaultSettings().NewModel(obs)
		require.NoError(t, err)
		require.NotNil(t, engine)
		assert.True(t, tree.IsActive(tree.Root()))
		assert.True(t, tree.IsMinimal())
		assert.Equal(t, 1, tree.ModelSize())
	})

	t.Run("full starts with the root attachable", func(t *testing.T) {
		s := DefaultSettings()
		s.Mode = ctree.ModeFull
		tree, _, err := s.NewModel(obs)
		require.NoError(t, err)
		assert.False(t, tree.IsActive(tree.Root()))
		assert.Equal(t, 1, tree.AttachmentCount(tree.Root()))
		assert.True(t, tree.IsMinimal())
	})

	t.Run("nil observations", func(t *testing.T) {
		_, _, err := DefaultSettings().NewModel(nil)
		assert.ErrorIs(t, err, ErrNilObservations)
	})

	t.Run("concentration length", func(t *testing.T) {
		s := DefaultSettings()
		s.Concentration = []float64{1, 1, 1}
		_, _, err := s.NewModel(obs)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, likelihood.ErrConcentrationLength)
	})
}

func TestAlgorithmError(t *testing.T) {
	err := &AlgorithmError{Algorithm: "mcmc", Operation: "Sample", Err: ErrNilObservations}
	assert.Equal(t, "mcmc.Sample: observations must not be nil", err.Error())

	var target *AlgorithmError
	assert.True(t, errors.As(error(err), &target))
	assert.ErrorIs(t, err, ErrNilObservations)
}

func TestNewRand_SeedIsDeterministic(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for range 10 {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
	assert.NotNil(t, NewRand(0))
}
