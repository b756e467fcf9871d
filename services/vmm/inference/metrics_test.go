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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeAlgorithm(t *testing.T) {
	assert.Equal(t, "greedy", sanitizeAlgorithm("greedy"))
	assert.Equal(t, "unknown", sanitizeAlgorithm("annealing"))
}

func TestRecordRun_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"cancelled", fmt.Errorf("sample: %w", context.Canceled), "cancelled"},
		{"deadline", context.DeadlineExceeded, "cancelled"},
		{"failure", errors.New("boom"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := runsTotal.WithLabelValues("bruteforce", tt.status)
			before := testutil.ToFloat64(counter)
			RecordRun("bruteforce", time.Now(), tt.err)
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordMoves(t *testing.T) {
	births := movesTotal.WithLabelValues("birth", "accepted")
	rejected := movesTotal.WithLabelValues("birth", "rejected")
	skips := movesTotal.WithLabelValues("skip", "accepted")
	b0, r0, s0 := testutil.ToFloat64(births), testutil.ToFloat64(rejected), testutil.ToFloat64(skips)

	RecordMoves(3, 5, 1, 4, 7)

	assert.Equal(t, b0+3, testutil.ToFloat64(births))
	assert.Equal(t, r0+2, testutil.ToFloat64(rejected))
	assert.Equal(t, s0+7, testutil.ToFloat64(skips))
}

func TestRecordConfigurations(t *testing.T) {
	before := testutil.ToFloat64(configurationsTotal)
	RecordConfigurations(16)
	assert.Equal(t, before+16, testutil.ToFloat64(configurationsTotal))
}
