// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package likelihood

import (
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
)

// Engine scores neighbouring models of a tree under one concentration and
// one size prior. It holds no tree state and is safe to share.
type Engine struct {
	alpha *Concentration
	prior Prior
}

// NewEngine bundles a concentration with a size prior. A nil prior is
// Uniform.
func NewEngine(alpha *Concentration, prior Prior) *Engine {
	if prior == nil {
		prior = Uniform
	}
	return &Engine{alpha: alpha, prior: prior}
}

// Concentration returns the Dirichlet parameters.
func (e *Engine) Concentration() *Concentration { return e.alpha }

// BirthLogRatio returns the log likelihood ratio of activating the
// attachment v.
func (e *Engine) BirthLogRatio(t *ctree.Tree, v ctree.NodeID) float64 {
	if t.Mode() == ctree.ModeFull {
		return FullBirthLogRatio(t, v, e.alpha)
	}
	return SparseBirthLogRatio(t, v, e.alpha)
}

// DeathLogRatio returns the log likelihood ratio of deactivating the model
// leaf v.
func (e *Engine) DeathLogRatio(t *ctree.Tree, v ctree.NodeID) float64 {
	if t.Mode() == ctree.ModeFull {
		return FullDeathLogRatio(t, v, e.alpha)
	}
	return SparseDeathLogRatio(t, v, e.alpha)
}

// BirthPriorLogRatio returns the log prior ratio of activating the
// attachment v. v must still be inactive.
func (e *Engine) BirthPriorLogRatio(t *ctree.Tree, v ctree.NodeID) float64 {
	size := t.ModelSize()
	if t.Mode() == ctree.ModeFull {
		// v turns from an attachment into an interior node and its observed
		// children become attachments.
		return e.prior(size, size+t.ValidChildCount(v))
	}
	return e.prior(size, size+1)
}

// DeathPriorLogRatio returns the log prior ratio of deactivating the model
// leaf v. v must still be active.
func (e *Engine) DeathPriorLogRatio(t *ctree.Tree, v ctree.NodeID) float64 {
	size := t.ModelSize()
	if t.Mode() == ctree.ModeFull {
		return e.prior(size, size-t.ValidChildCount(v))
	}
	return e.prior(size, size-1)
}

// BirthLogScore is the log posterior ratio of activating v.
func (e *Engine) BirthLogScore(t *ctree.Tree, v ctree.NodeID) float64 {
	return e.BirthLogRatio(t, v) + e.BirthPriorLogRatio(t, v)
}

// DeathLogScore is the log posterior ratio of deactivating v.
func (e *Engine) DeathLogScore(t *ctree.Tree, v ctree.NodeID) float64 {
	return e.DeathLogRatio(t, v) + e.DeathPriorLogRatio(t, v)
}

// LogLikelihood returns the unnormalized log posterior of the current model
// relative to the minimal model.
//
// The model is collapsed leaf by leaf while the death scores are summed, then
// rebuilt by activating the removed nodes in reverse order. The tree ends up
// exactly as it started, sample counts included.
func LogLikelihood(t *ctree.Tree, e *Engine) (float64, error) {
	root := t.Root()
	var removed []ctree.NodeID
	l := 0.0
	for !t.IsMinimal() {
		v, err := t.LeafAt(root, 0)
		if err != nil {
			return 0, err
		}
		l -= e.DeathLogScore(t, v)
		if err := t.Deactivate(v); err != nil {
			return 0, err
		}
		removed = append(removed, v)
	}
	for i := len(removed) - 1; i >= 0; i-- {
		if err := t.Activate(removed[i]); err != nil {
			return 0, err
		}
	}
	return l, nil
}
