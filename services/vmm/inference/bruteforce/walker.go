// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bruteforce

import (
	"context"
	"math"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/likelihood"
)

// pending is a persistent list of nodes still to be decided, each with the
// number of levels the model may still grow below it. Lists share their
// tails, so pushing children never copies the rest of the work.
type pending struct {
	id     ctree.NodeID
	height int
	next   *pending
}

type frameKind uint8

const (
	// frameVisit decides the head of queue: first without it, then with it.
	frameVisit frameKind = iota

	// frameInclude activates the head of queue and visits its children.
	frameInclude

	// frameUndo deactivates id and restores the log weight.
	frameUndo
)

type frame struct {
	kind      frameKind
	queue     *pending
	id        ctree.NodeID
	logWeight float64
}

// walker enumerates models with an explicit stack. Every model is visited
// exactly once: each pending node is first left out and then, if it can be
// activated, taken in together with everything below it. Undo frames run in
// reverse activation order, so the tree only ever loses model leaves.
type walker struct {
	tree   *ctree.Tree
	engine *likelihood.Engine
	stack  []frame

	// logWeight is the log posterior of the current model relative to the
	// minimal one.
	logWeight float64

	// Visited weights are summed as exp(logWeight - shift); shift is the
	// largest log weight seen so far.
	shift          float64
	total          float64
	configurations int
}

func newWalker(tree *ctree.Tree, engine *likelihood.Engine) *walker {
	return &walker{tree: tree, engine: engine}
}

func (w *walker) run(ctx context.Context, maxHeight, checkInterval int) error {
	w.stack = append(w.stack[:0], frame{kind: frameVisit, queue: w.initialQueue(maxHeight)})

	for steps := 1; len(w.stack) > 0; steps++ {
		if steps%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		f := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		switch f.kind {
		case frameVisit:
			if f.queue == nil {
				w.record()
				continue
			}
			if w.canActivate(f.queue) {
				w.stack = append(w.stack, frame{kind: frameInclude, queue: f.queue})
			}
			w.stack = append(w.stack, frame{kind: frameVisit, queue: f.queue.next})

		case frameInclude:
			v := f.queue.id
			delta := w.engine.BirthLogScore(w.tree, v)
			if err := w.tree.Activate(v); err != nil {
				return err
			}
			w.stack = append(w.stack,
				frame{kind: frameUndo, id: v, logWeight: w.logWeight},
				frame{kind: frameVisit, queue: prepend(w.tree.Children(v), f.queue.height-1, f.queue.next)},
			)
			w.logWeight += delta

		case frameUndo:
			if err := w.tree.Deactivate(f.id); err != nil {
				return err
			}
			w.logWeight = f.logWeight
		}
	}
	return nil
}

// initialQueue lists the first nodes to decide. Sparse models always contain
// the root, so enumeration starts at its children; full models start at the
// root itself.
func (w *walker) initialQueue(maxHeight int) *pending {
	height := maxHeight
	if height < 0 {
		height = math.MaxInt
	}
	root := w.tree.Root()
	if w.tree.Mode() == ctree.ModeFull {
		return &pending{id: root, height: height}
	}
	return prepend(w.tree.Children(root), height-1, nil)
}

// canActivate reports whether p may join the model. A full model node needs
// room for the children that become attachments with it.
func (w *walker) canActivate(p *pending) bool {
	if !w.tree.IsAttachment(p.id) {
		return false
	}
	if w.tree.Mode() == ctree.ModeFull {
		return p.height >= 1
	}
	return p.height >= 0
}

// record adds the current model to the running sums.
func (w *walker) record() {
	w.configurations++
	if w.configurations == 1 {
		w.shift = w.logWeight
	}
	if w.logWeight > w.shift {
		scale := math.Exp(w.shift - w.logWeight)
		w.tree.ScaleSamples(scale)
		w.total *= scale
		w.shift = w.logWeight
	}
	weight := math.Exp(w.logWeight - w.shift)
	w.total += weight
	w.tree.RecordSample(weight)
}

// prepend puts ids in front of rest, keeping their order.
func prepend(ids []ctree.NodeID, height int, rest *pending) *pending {
	q := rest
	for i := len(ids) - 1; i >= 0; i-- {
		q = &pending{id: ids[i], height: height, next: q}
	}
	return q
}
