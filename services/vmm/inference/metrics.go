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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// knownAlgorithms guards the algorithm label against unbounded cardinality.
var knownAlgorithms = map[string]bool{
	"bruteforce": true,
	"greedy":     true,
	"mcmc":       true,
}

func sanitizeAlgorithm(name string) string {
	if knownAlgorithms[name] {
		return name
	}
	return "unknown"
}

var (
	// runsTotal counts algorithm runs.
	//
	// Labels:
	//   - algorithm: bruteforce, greedy or mcmc
	//   - status: "success", "cancelled" or "failure"
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bvmm",
			Subsystem: "inference",
			Name:      "runs_total",
			Help:      "Total inference runs by algorithm and status",
		},
		[]string{"algorithm", "status"},
	)

	// runDurationSeconds measures wall time per run.
	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bvmm",
			Subsystem: "inference",
			Name:      "run_duration_seconds",
			Help:      "Inference run duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"algorithm"},
	)

	// movesTotal counts MCMC proposals.
	//
	// Labels:
	//   - move: "birth", "death" or "skip"
	//   - outcome: "accepted" or "rejected"
	movesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bvmm",
			Subsystem: "mcmc",
			Name:      "moves_total",
			Help:      "Total MCMC moves by kind and outcome",
		},
		[]string{"move", "outcome"},
	)

	// configurationsTotal counts models visited by exhaustive enumeration.
	configurationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bvmm",
			Subsystem: "bruteforce",
			Name:      "configurations_total",
			Help:      "Total models visited by exhaustive enumeration",
		},
	)
)

// RecordRun records the outcome and duration of one run.
func RecordRun(algorithm string, start time.Time, err error) {
	algorithm = sanitizeAlgorithm(algorithm)
	status := "success"
	switch {
	case err == nil:
	case isCancellation(err):
		status = "cancelled"
	default:
		status = "failure"
	}
	runsTotal.WithLabelValues(algorithm, status).Inc()
	runDurationSeconds.WithLabelValues(algorithm).Observe(time.Since(start).Seconds())
}

// RecordMoves adds the proposals of one sampler run.
func RecordMoves(births, birthAttempts, deaths, deathAttempts, skips int) {
	movesTotal.WithLabelValues("birth", "accepted").Add(float64(births))
	movesTotal.WithLabelValues("birth", "rejected").Add(float64(birthAttempts - births))
	movesTotal.WithLabelValues("death", "accepted").Add(float64(deaths))
	movesTotal.WithLabelValues("death", "rejected").Add(float64(deathAttempts - deaths))
	movesTotal.WithLabelValues("skip", "accepted").Add(float64(skips))
}

// RecordConfigurations adds the models visited by one enumeration.
func RecordConfigurations(n int) {
	configurationsTotal.Add(float64(n))
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
