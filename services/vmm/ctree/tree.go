// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ctree implements the context tree behind a variable-order Markov
// model.
//
// A tree node stands for a context: the symbols on the path from the root to
// the node, most recent first. Every node carries the counts of the symbols
// that followed its context in the observations. A model is a connected set
// of active nodes that contains the root; the inactive nodes directly below
// active ones are its attachments, the places where the model may grow.
//
// The tree keeps three aggregates per node (active nodes, model leaves and
// attachments in the subtree) so that algorithms can pick the i-th leaf or
// attachment uniformly in time proportional to the tree depth.
//
// # Thread Safety
//
// Tree is not safe for concurrent use. Observations are read-only and may
// be shared.
package ctree

import (
	"fmt"
	"strings"
)

// NodeID addresses a node in the tree arena.
type NodeID int32

// NoNode is the id of a missing parent or child block.
const NoNode NodeID = -1

// RootSymbol is the symbol reported for the root, which has an empty context.
const RootSymbol = -1

// Mode selects which parameters a model carries.
type Mode string

const (
	// ModeSparse models give every active node a distribution over the symbols
	// not claimed by its active children.
	ModeSparse Mode = "sparse"

	// ModeFull models give every attachment a full distribution and leave
	// interior nodes without parameters.
	ModeFull Mode = "full"
)

func (m Mode) String() string { return string(m) }

// ParseMode converts a configuration string into a Mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case ModeSparse:
		return ModeSparse, nil
	case ModeFull:
		return ModeFull, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
}

// Options configures a tree.
type Options struct {
	// Mode selects sparse or full models.
	Mode Mode

	// HeightStep is the number of levels grown at once whenever a node
	// without children needs them.
	HeightStep int

	// Fringe restricts sample counting to the fringe of the model.
	Fringe bool
}

// DefaultOptions returns sparse models grown one level at a time.
func DefaultOptions() Options {
	return Options{Mode: ModeSparse, HeightStep: 1}
}

// Validate checks the options.
func (o Options) Validate() error {
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.HeightStep < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidHeightStep, o.HeightStep)
	}
	return nil
}

// node is one arena slot. Pointers into the arena are only valid until the
// next growth.
type node struct {
	symbol   int
	depth    int
	parent   NodeID
	children NodeID // first id of a block of alphabetSize children

	counts []float64 // nil when the context never occurs

	// pending holds the events whose context continues below this node
	// while it has no children.
	pending []reach

	nodeCount       int
	leafCount       int
	attachmentCount int
	sampleCount     float64
	active          bool
}

// reach is an event waiting at a childless node. cursor points at the next
// context symbol.
type reach struct {
	event  int
	cursor int
}

// Tree is a context tree over one set of observations.
type Tree struct {
	obs   *Observations
	opts  Options
	nodes []node
}

// New builds a tree with HeightStep levels below the root and counts them.
// The root starts inactive and is the only attachment.
func New(obs *Observations, opts Options) (*Tree, error) {
	if obs == nil {
		return nil, ErrNilObservations
	}
	if obs.Len() == 0 {
		return nil, ErrNoObservations
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Mode, _ = ParseMode(string(opts.Mode))

	t := &Tree{
		obs:   obs,
		opts:  opts,
		nodes: make([]node, 1, initialCapacity(obs.alphabet, opts.HeightStep)),
	}
	t.nodes[0] = node{symbol: RootSymbol, parent: NoNode, children: NoNode}
	pending := make([]reach, 0, obs.Len())
	for e, target := range obs.targets {
		t.increment(0, target)
		if c := obs.first[e]; c >= 0 {
			pending = append(pending, reach{event: e, cursor: c})
		}
	}
	t.nodes[0].pending = pending
	t.grow(0, opts.HeightStep)
	t.count(0)
	if t.nodes[0].counts != nil {
		t.nodes[0].attachmentCount = 1
	}
	return t, nil
}

func initialCapacity(alphabet, levels int) int {
	n, width := 1, 1
	for i := 0; i < levels && n < 1<<16; i++ {
		width *= alphabet
		n += width
	}
	return n
}

// grow adds levels of children below id. id must not have children yet.
func (t *Tree) grow(id NodeID, levels int) {
	if levels <= 0 {
		return
	}
	first := NodeID(len(t.nodes))
	depth := t.nodes[id].depth + 1
	for s := 0; s < t.obs.alphabet; s++ {
		t.nodes = append(t.nodes, node{
			symbol:   s,
			depth:    depth,
			parent:   id,
			children: NoNode,
		})
	}
	t.nodes[id].children = first
	for s := 0; s < t.obs.alphabet; s++ {
		t.grow(first+NodeID(s), levels-1)
	}
}

// count pushes the events pending at id down its freshly grown subtree and
// increments every node they reach. Events whose context outlives the
// subtree wait at the childless node they end on.
func (t *Tree) count(id NodeID) {
	pending := t.nodes[id].pending
	t.nodes[id].pending = nil
	for _, r := range pending {
		target := t.obs.targets[r.event]
		v, c := id, r.cursor
		for c >= 0 && t.nodes[v].children != NoNode {
			v = t.nodes[v].children + NodeID(t.obs.symbols[c])
			c = t.obs.next[c]
			t.increment(v, target)
		}
		if c >= 0 {
			t.nodes[v].pending = append(t.nodes[v].pending, reach{event: r.event, cursor: c})
		}
	}
}

func (t *Tree) increment(id NodeID, sym int) {
	n := &t.nodes[id]
	if n.counts == nil {
		n.counts = make([]float64, t.obs.alphabet)
	}
	n.counts[sym]++
}

// materialize makes sure every observed descendant of id fewer than levels
// below it has children.
func (t *Tree) materialize(id NodeID, levels int) {
	if levels <= 0 || t.nodes[id].counts == nil {
		return
	}
	first := t.nodes[id].children
	if first == NoNode {
		t.grow(id, max(levels, t.opts.HeightStep))
		t.count(id)
		return
	}
	for s := 0; s < t.obs.alphabet; s++ {
		t.materialize(first+NodeID(s), levels-1)
	}
}

func (t *Tree) lookahead() int {
	if t.opts.Mode == ModeFull {
		return 2
	}
	return 1
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// -----------------------------------------------------------------------------
// Read-only accessors
// -----------------------------------------------------------------------------

// Root returns the root id.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of materialized nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// AlphabetSize returns the number of symbols.
func (t *Tree) AlphabetSize() int { return t.obs.alphabet }

// Mode returns the model mode.
func (t *Tree) Mode() Mode { return t.opts.Mode }

// Options returns the options the tree was built with.
func (t *Tree) Options() Options { return t.opts }

// Observations returns the data the tree counts.
func (t *Tree) Observations() *Observations { return t.obs }

// Symbol returns the last context symbol of id, or RootSymbol for the root.
func (t *Tree) Symbol(id NodeID) int { return t.nodes[id].symbol }

// Depth returns the context length of id.
func (t *Tree) Depth(id NodeID) int { return t.nodes[id].depth }

// Counts returns the symbol counts of id, or nil when its context was never
// observed. The slice is shared with the tree and must not be modified.
func (t *Tree) Counts(id NodeID) []float64 { return t.nodes[id].counts }

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Children returns the children of id in symbol order, or nil when none have
// been materialized.
func (t *Tree) Children(id NodeID) []NodeID {
	first := t.nodes[id].children
	if first == NoNode {
		return nil
	}
	out := make([]NodeID, t.obs.alphabet)
	for s := range out {
		out[s] = first + NodeID(s)
	}
	return out
}

// Child returns the child of id for sym, or NoNode.
func (t *Tree) Child(id NodeID, sym int) NodeID {
	first := t.nodes[id].children
	if first == NoNode || sym < 0 || sym >= t.obs.alphabet {
		return NoNode
	}
	return first + NodeID(sym)
}

// Context returns the context of id: element 0 is the symbol immediately
// before the predicted one.
func (t *Tree) Context(id NodeID) []int {
	path := make([]int, t.nodes[id].depth)
	for v := id; t.nodes[v].parent != NoNode; v = t.nodes[v].parent {
		path[t.nodes[v].depth-1] = t.nodes[v].symbol
	}
	return path
}

// NodeCount returns the number of active nodes in the subtree of id.
func (t *Tree) NodeCount(id NodeID) int { return t.nodes[id].nodeCount }

// LeafCount returns the number of model leaves in the subtree of id.
func (t *Tree) LeafCount(id NodeID) int { return t.nodes[id].leafCount }

// AttachmentCount returns the number of attachments in the subtree of id.
func (t *Tree) AttachmentCount(id NodeID) int { return t.nodes[id].attachmentCount }

// SampleCount returns the accumulated sample weight of id.
func (t *Tree) SampleCount(id NodeID) float64 { return t.nodes[id].sampleCount }

// IsActive reports whether id belongs to the model.
func (t *Tree) IsActive(id NodeID) bool { return t.nodes[id].active }

// IsAttachment reports whether id can be activated right now.
func (t *Tree) IsAttachment(id NodeID) bool {
	n := &t.nodes[id]
	return !n.active && n.attachmentCount > 0
}

// ValidChildCount returns the number of children of id with observed contexts.
func (t *Tree) ValidChildCount(id NodeID) int {
	first := t.nodes[id].children
	if first == NoNode {
		return 0
	}
	n := 0
	for s := 0; s < t.obs.alphabet; s++ {
		if t.nodes[first+NodeID(s)].counts != nil {
			n++
		}
	}
	return n
}

// Walk visits the materialized nodes depth-first in symbol order. Returning
// false from fn skips the subtree of that node.
func (t *Tree) Walk(fn func(id NodeID) bool) {
	t.walk(0, fn)
}

func (t *Tree) walk(id NodeID, fn func(id NodeID) bool) {
	if !fn(id) {
		return
	}
	first := t.nodes[id].children
	if first == NoNode {
		return
	}
	for s := 0; s < t.obs.alphabet; s++ {
		t.walk(first+NodeID(s), fn)
	}
}

// -----------------------------------------------------------------------------
// Model-level helpers
// -----------------------------------------------------------------------------

// MinimalNodeCount returns the number of active nodes in the smallest model:
// the root alone for sparse models and nothing for full ones.
func (t *Tree) MinimalNodeCount() int {
	if t.opts.Mode == ModeFull {
		return 0
	}
	return 1
}

// ModelSize returns the number of parameter vectors of the current model.
func (t *Tree) ModelSize() int {
	root := &t.nodes[0]
	if t.opts.Mode == ModeFull {
		return root.nodeCount + root.attachmentCount
	}
	return root.nodeCount
}

// IsMinimal reports whether the model cannot shrink any further.
func (t *Tree) IsMinimal() bool {
	return t.nodes[0].nodeCount <= t.MinimalNodeCount()
}

// Reset deactivates model leaves until the model is minimal.
func (t *Tree) Reset() error {
	for !t.IsMinimal() {
		leaf, err := t.LeafAt(0, 0)
		if err != nil {
			return err
		}
		if err := t.Deactivate(leaf); err != nil {
			return err
		}
	}
	return nil
}
