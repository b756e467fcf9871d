// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ctree

// RecordSample adds weight to the sample count of every node of the current
// model.
//
// Sparse models credit their active nodes. Full models credit the nodes
// whose parent is active, plus the root. With Options.Fringe set only the
// fringe is credited: model leaves and active nodes with an observed inactive
// child (sparse), or the attachments (full).
func (t *Tree) RecordSample(weight float64) {
	t.record(0, weight)
}

func (t *Tree) record(id NodeID, weight float64) {
	n := &t.nodes[id]
	var onFringe bool
	if t.opts.Mode == ModeFull {
		if n.parent != NoNode && !t.nodes[n.parent].active {
			return
		}
		onFringe = !n.active
	} else {
		if !n.active {
			return
		}
		onFringe = n.nodeCount == 1
	}

	if first := n.children; first != NoNode {
		for s := 0; s < t.obs.alphabet; s++ {
			child := first + NodeID(s)
			if t.nodes[child].counts == nil {
				continue
			}
			if t.opts.Mode == ModeSparse && !t.nodes[child].active {
				onFringe = true
			}
			t.record(child, weight)
		}
	}

	if !t.opts.Fringe || onFringe {
		t.nodes[id].sampleCount += weight
	}
}

// ScaleSamples multiplies every sample count by factor.
func (t *Tree) ScaleSamples(factor float64) {
	for i := range t.nodes {
		t.nodes[i].sampleCount *= factor
	}
}

// ResetSamples clears every sample count.
func (t *Tree) ResetSamples() {
	for i := range t.nodes {
		t.nodes[i].sampleCount = 0
	}
}
