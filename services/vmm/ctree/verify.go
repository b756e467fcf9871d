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

import "fmt"

// Verify recomputes every aggregate by direct traversal and returns an error
// wrapping ErrInconsistent for the first node whose cached values disagree.
func (t *Tree) Verify() error {
	_, _, _, err := t.verify(0)
	return err
}

func (t *Tree) verify(id NodeID) (nodes, leaves, attachments int, err error) {
	n := &t.nodes[id]
	parentActive := n.parent == NoNode || t.nodes[n.parent].active

	if n.active && !parentActive {
		return 0, 0, 0, t.inconsistent(id, "active node below an inactive parent")
	}
	if n.active && n.counts == nil {
		return 0, 0, 0, t.inconsistent(id, "active node without counts")
	}

	var childNodes, childLeaves, childAttachments int
	if first := n.children; first != NoNode {
		for s := 0; s < t.obs.alphabet; s++ {
			cn, cl, ca, err := t.verify(first + NodeID(s))
			if err != nil {
				return 0, 0, 0, err
			}
			childNodes += cn
			childLeaves += cl
			childAttachments += ca
		}
	}

	if !n.active {
		if childNodes != 0 {
			return 0, 0, 0, t.inconsistent(id, "active nodes below an inactive node")
		}
		attachments = 0
		if parentActive && n.counts != nil {
			attachments = 1
		}
	} else {
		nodes = 1 + childNodes
		leaves = childLeaves
		if childNodes == 0 {
			leaves = 1
		}
		attachments = childAttachments
	}

	switch {
	case n.nodeCount != nodes:
		return 0, 0, 0, t.inconsistent(id, fmt.Sprintf("node count %d, want %d", n.nodeCount, nodes))
	case n.leafCount != leaves:
		return 0, 0, 0, t.inconsistent(id, fmt.Sprintf("leaf count %d, want %d", n.leafCount, leaves))
	case n.attachmentCount != attachments:
		return 0, 0, 0, t.inconsistent(id, fmt.Sprintf("attachment count %d, want %d", n.attachmentCount, attachments))
	}
	return nodes, leaves, attachments, nil
}

func (t *Tree) inconsistent(id NodeID, msg string) error {
	return fmt.Errorf("%w: node %d %v: %s", ErrInconsistent, id, t.Context(id), msg)
}
