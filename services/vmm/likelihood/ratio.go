// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package likelihood computes Dirichlet-multinomial marginal likelihood
// ratios between neighbouring context tree models.
//
// All quantities are natural logarithms. A birth ratio compares the model
// with node v added against the model without it; a death ratio is the
// reverse. Ratios only depend on the counts of v, its parent and its
// siblings (sparse models) or v and its children (full models), so both are
// computed in time proportional to the alphabet size.
package likelihood

import (
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
)

// SparseBirthLogRatio returns the log marginal likelihood ratio of adding
// the attachment v to a sparse model.
//
// The parent of v keeps the counts not claimed by its active children. Adding
// v moves the counts of v out of that residual into a distribution of its
// own. The root has no parent and yields 0.
func SparseBirthLogRatio(t *ctree.Tree, v ctree.NodeID, c *Concentration) float64 {
	parent := t.Parent(v)
	if parent == ctree.NoNode {
		return 0
	}

	residual := make([]float64, c.Len())
	copy(residual, t.Counts(parent))
	for _, w := range t.Children(parent) {
		if w == v || t.NodeCount(w) == 0 {
			continue
		}
		for i, n := range t.Counts(w) {
			residual[i] -= n
		}
	}

	own := t.Counts(v)
	l, residualSum, ownSum := 0.0, 0.0, 0.0
	for i, a := range c.alpha {
		u, n := residual[i], own[i]
		l += lgamma(u-n+a) - lgamma(u+a) + lgamma(n+a)
		residualSum += u
		ownSum += n
	}
	l -= c.lgammaSum
	l += -lgamma(residualSum-ownSum+c.sum) + lgamma(residualSum+c.sum) -
		lgamma(ownSum+c.sum) + c.lgammaOfSum
	return l
}

// SparseDeathLogRatio returns the log marginal likelihood ratio of removing
// the model leaf v from a sparse model.
func SparseDeathLogRatio(t *ctree.Tree, v ctree.NodeID, c *Concentration) float64 {
	return -SparseBirthLogRatio(t, v, c)
}

// FullBirthLogRatio returns the log marginal likelihood ratio of adding the
// attachment v to a full model.
//
// Before the birth v carries one distribution over all of its counts. After
// it, every observed child of v carries its own distribution and v keeps
// only the occurrences whose context ends at v.
func FullBirthLogRatio(t *ctree.Tree, v ctree.NodeID, c *Concentration) float64 {
	own := t.Counts(v)
	l := -c.logBeta(own)

	claimed := make([]float64, c.Len())
	for _, w := range t.Children(v) {
		counts := t.Counts(w)
		if counts == nil {
			continue
		}
		l += c.logBeta(counts) - c.logBetaPrior()
		for i, n := range counts {
			claimed[i] += n
		}
	}

	rest := make([]float64, c.Len())
	for i := range rest {
		rest[i] = own[i] - claimed[i]
	}
	return l + c.logBeta(rest)
}

// FullDeathLogRatio returns the log marginal likelihood ratio of removing
// the model leaf v from a full model.
func FullDeathLogRatio(t *ctree.Tree, v ctree.NodeID, c *Concentration) float64 {
	return -FullBirthLogRatio(t, v, c)
}
