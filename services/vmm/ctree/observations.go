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

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects how observations define the context of a predicted symbol.
type Kind string

const (
	// KindSequence predicts x[p] from x[p-1], x[p-2], ... within one sequence.
	KindSequence Kind = "sequence"

	// KindNetwork predicts the destination of an edge from its source, then the
	// source of the latest earlier edge that arrived at that source, and so on.
	KindNetwork Kind = "network"
)

func (k Kind) String() string { return string(k) }

// ParseKind converts a configuration string into a Kind.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindSequence:
		return KindSequence, nil
	case KindNetwork:
		return KindNetwork, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, name)
}

// Edge is one event of a network stream.
type Edge struct {
	Src int `json:"src" yaml:"src"`
	Dst int `json:"dst" yaml:"dst"`
}

// Observations is the indexed form of the data a tree is counted from.
//
// Every observation is an event with a target symbol and a chain of context
// symbols. The chain is read through cursors: first[e] is the cursor of the
// depth-1 symbol of event e, symbols[c] the symbol at cursor c and next[c]
// the cursor one level deeper. A negative cursor ends the chain.
//
// Observations are immutable after construction and may be shared by any
// number of trees.
type Observations struct {
	kind     Kind
	alphabet int

	targets []int
	first   []int
	symbols []int
	next    []int
}

// NewObservations validates raw data and indexes it.
//
// Sequence data is []int (one sequence) or [][]int (independent sequences;
// contexts never cross a sequence boundary). Network data is []Edge or
// [][2]int holding (src, dst) pairs in stream order.
func NewObservations(kind Kind, alphabetSize int, raw any) (*Observations, error) {
	if alphabetSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlphabet, alphabetSize)
	}

	switch kind {
	case KindSequence:
		switch data := raw.(type) {
		case []int:
			return NewSequenceObservations(alphabetSize, data)
		case [][]int:
			return NewSequenceObservations(alphabetSize, data...)
		}
	case KindNetwork:
		switch data := raw.(type) {
		case []Edge:
			return NewNetworkObservations(alphabetSize, data)
		case [][2]int:
			edges := make([]Edge, len(data))
			for i, pair := range data {
				edges[i] = Edge{Src: pair[0], Dst: pair[1]}
			}
			return NewNetworkObservations(alphabetSize, edges)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, string(kind))
	}
	return nil, fmt.Errorf("%w: %s data cannot be built from %T", ErrInvalidKind, kind, raw)
}

// NewSequenceObservations indexes one or more symbol sequences.
func NewSequenceObservations(alphabetSize int, sequences ...[]int) (*Observations, error) {
	if alphabetSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlphabet, alphabetSize)
	}

	total := 0
	for _, seq := range sequences {
		total += len(seq)
	}
	if total == 0 {
		return nil, ErrNoObservations
	}

	o := &Observations{
		kind:     KindSequence,
		alphabet: alphabetSize,
		targets:  make([]int, 0, total),
		first:    make([]int, 0, total),
		symbols:  make([]int, 0, total),
		next:     make([]int, 0, total),
	}

	for i, seq := range sequences {
		offset := len(o.symbols)
		for p, sym := range seq {
			if sym < 0 || sym >= alphabetSize {
				return nil, fmt.Errorf("%w: sequence %d position %d holds %d (alphabet size %d)",
					ErrSymbolOutOfRange, i, p, sym, alphabetSize)
			}
			prev := -1
			if p > 0 {
				prev = offset + p - 1
			}
			// Event offset+p and cursor offset+p share an index.
			o.targets = append(o.targets, sym)
			o.first = append(o.first, prev)
			o.symbols = append(o.symbols, sym)
			o.next = append(o.next, prev)
		}
	}
	return o, nil
}

// NewNetworkObservations indexes an ordered stream of edges.
func NewNetworkObservations(alphabetSize int, edges []Edge) (*Observations, error) {
	if alphabetSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlphabet, alphabetSize)
	}
	if len(edges) == 0 {
		return nil, ErrNoObservations
	}
	for i, e := range edges {
		if e.Src < 0 || e.Src >= alphabetSize || e.Dst < 0 || e.Dst >= alphabetSize {
			return nil, fmt.Errorf("%w: edge %d is (%d, %d) (alphabet size %d)",
				ErrSymbolOutOfRange, i, e.Src, e.Dst, alphabetSize)
		}
	}

	index := newDestinationIndex(alphabetSize, edges)
	n := len(edges)
	o := &Observations{
		kind:     KindNetwork,
		alphabet: alphabetSize,
		targets:  make([]int, n),
		first:    make([]int, n),
		symbols:  make([]int, n),
		next:     make([]int, n),
	}
	for i, e := range edges {
		o.targets[i] = e.Dst
		o.first[i] = i
		o.symbols[i] = e.Src
		o.next[i] = index.latestBefore(e.Src, i)
	}
	return o, nil
}

// destinationIndex maps every destination symbol to the sorted positions of
// the edges that arrive there.
type destinationIndex struct {
	positions [][]int
}

func newDestinationIndex(alphabetSize int, edges []Edge) *destinationIndex {
	idx := &destinationIndex{positions: make([][]int, alphabetSize)}
	for i, e := range edges {
		idx.positions[e.Dst] = append(idx.positions[e.Dst], i)
	}
	return idx
}

// latestBefore returns the last position below before whose destination is
// sym, or -1.
func (idx *destinationIndex) latestBefore(sym, before int) int {
	pos := idx.positions[sym]
	i := sort.SearchInts(pos, before)
	if i == 0 {
		return -1
	}
	return pos[i-1]
}

// Kind returns the observation kind.
func (o *Observations) Kind() Kind { return o.kind }

// AlphabetSize returns the number of distinct symbols.
func (o *Observations) AlphabetSize() int { return o.alphabet }

// Len returns the number of events.
func (o *Observations) Len() int { return len(o.targets) }

// Target returns the symbol predicted by event e.
func (o *Observations) Target(e int) int { return o.targets[e] }

// ContextSymbol returns the symbol at the given depth (1-based) of the
// context of event e. ok is false when the context is shorter than depth.
func (o *Observations) ContextSymbol(e, depth int) (sym int, ok bool) {
	if e < 0 || e >= len(o.targets) || depth < 1 {
		return 0, false
	}
	c := o.first[e]
	for d := 1; d < depth && c >= 0; d++ {
		c = o.next[c]
	}
	if c < 0 {
		return 0, false
	}
	return o.symbols[c], true
}
