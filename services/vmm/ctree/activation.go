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

// Activate adds the attachment id to the model.
//
// Description:
//
//	Marks id active, grows the lookahead levels the likelihood needs below it,
//	turns its observed children into attachments and updates the aggregates
//	of every ancestor.
//
// Inputs:
//
//	id - An inactive node whose parent is active (or the root) and whose
//	     context was observed.
//
// Outputs:
//
//	error - A *TreeError matching ErrContractViolation when a precondition
//	        does not hold. The tree is unchanged in that case.
func (t *Tree) Activate(id NodeID) error {
	if !t.valid(id) {
		return treeErr("activate", id, ErrUnknownNode)
	}
	n := &t.nodes[id]
	switch {
	case n.active:
		return treeErr("activate", id, ErrAlreadyActive)
	case n.parent != NoNode && !t.nodes[n.parent].active:
		return treeErr("activate", id, ErrInactiveParent)
	case n.counts == nil:
		return treeErr("activate", id, ErrNotAttachable)
	}

	t.materialize(id, t.lookahead())

	// The arena may have grown.
	n = &t.nodes[id]
	n.active = true
	n.nodeCount = 1
	n.leafCount = 1
	n.attachmentCount = 0
	if first := n.children; first != NoNode {
		for s := 0; s < t.obs.alphabet; s++ {
			child := &t.nodes[first+NodeID(s)]
			if child.counts != nil {
				child.attachmentCount = 1
				n.attachmentCount++
			}
		}
	}

	if p := n.parent; p != NoNode {
		leaves := 0
		if t.nodes[p].nodeCount > 1 {
			leaves = 1
		}
		t.propagate(p, 1, leaves, n.attachmentCount-1)
	}
	return nil
}

// Deactivate removes the model leaf id from the model and makes it an
// attachment again.
func (t *Tree) Deactivate(id NodeID) error {
	if !t.valid(id) {
		return treeErr("deactivate", id, ErrUnknownNode)
	}
	n := &t.nodes[id]
	switch {
	case !n.active:
		return treeErr("deactivate", id, ErrNotActive)
	case n.nodeCount != 1:
		return treeErr("deactivate", id, ErrNotLeaf)
	}

	n.active = false
	n.nodeCount = 0
	n.leafCount = 0

	if p := n.parent; p != NoNode {
		leaves := 0
		if t.nodes[p].nodeCount > 2 {
			leaves = -1
		}
		t.propagate(p, -1, leaves, 1-n.attachmentCount)
	}

	if n.attachmentCount > 0 && n.children != NoNode {
		for s := 0; s < t.obs.alphabet; s++ {
			t.nodes[n.children+NodeID(s)].attachmentCount = 0
		}
	}
	n.attachmentCount = 1
	return nil
}

// propagate adds the deltas to id and every ancestor of id.
func (t *Tree) propagate(id NodeID, nodes, leaves, attachments int) {
	for v := id; v != NoNode; v = t.nodes[v].parent {
		n := &t.nodes[v]
		n.nodeCount += nodes
		n.leafCount += leaves
		n.attachmentCount += attachments
	}
}

// LeafAt returns the i-th model leaf in the subtree of id, counting
// depth-first in symbol order.
func (t *Tree) LeafAt(id NodeID, i int) (NodeID, error) {
	if !t.valid(id) {
		return NoNode, treeErr("leaf_at", id, ErrUnknownNode)
	}
	if i < 0 || i >= t.nodes[id].leafCount {
		return NoNode, treeErr("leaf_at", id, ErrIndexOutOfRange)
	}
	for t.nodes[id].nodeCount != 1 {
		next, rest := t.descend(id, i, func(n *node) int { return n.leafCount })
		if next == NoNode {
			return NoNode, treeErr("leaf_at", id, ErrInconsistent)
		}
		id, i = next, rest
	}
	return id, nil
}

// AttachmentAt returns the i-th attachment in the subtree of id, counting
// depth-first in symbol order.
func (t *Tree) AttachmentAt(id NodeID, i int) (NodeID, error) {
	if !t.valid(id) {
		return NoNode, treeErr("attachment_at", id, ErrUnknownNode)
	}
	if i < 0 || i >= t.nodes[id].attachmentCount {
		return NoNode, treeErr("attachment_at", id, ErrIndexOutOfRange)
	}
	for t.nodes[id].nodeCount != 0 {
		next, rest := t.descend(id, i, func(n *node) int { return n.attachmentCount })
		if next == NoNode {
			return NoNode, treeErr("attachment_at", id, ErrInconsistent)
		}
		id, i = next, rest
	}
	return id, nil
}

// descend finds the child of id whose subtree holds the i-th item as
// measured by size, and the index of the item inside that subtree.
func (t *Tree) descend(id NodeID, i int, size func(*node) int) (NodeID, int) {
	first := t.nodes[id].children
	if first == NoNode {
		return NoNode, 0
	}
	for s := 0; s < t.obs.alphabet; s++ {
		child := first + NodeID(s)
		k := size(&t.nodes[child])
		if i < k {
			return child, i
		}
		i -= k
	}
	return NoNode, 0
}
