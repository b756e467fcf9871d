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
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Input Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidKind indicates an unknown observation kind or a raw data shape
	// that does not match the requested kind.
	ErrInvalidKind = errors.New("invalid observation kind")

	// ErrInvalidAlphabet indicates an alphabet size below one.
	ErrInvalidAlphabet = errors.New("alphabet size must be at least 1")

	// ErrSymbolOutOfRange indicates an observed symbol outside [0, alphabetSize).
	ErrSymbolOutOfRange = errors.New("symbol out of range")

	// ErrNoObservations indicates observations without a single event.
	ErrNoObservations = errors.New("no observations")

	// ErrNilObservations indicates a tree was requested without observations.
	ErrNilObservations = errors.New("observations must not be nil")

	// ErrInvalidMode indicates an unknown tree mode.
	ErrInvalidMode = errors.New("invalid tree mode")

	// ErrInvalidHeightStep indicates a growth step below one level.
	ErrInvalidHeightStep = errors.New("height step must be at least 1")

	// ErrInconsistent is returned by Verify when a cached aggregate disagrees
	// with a direct traversal.
	ErrInconsistent = errors.New("tree aggregates inconsistent")
)

// -----------------------------------------------------------------------------
// Contract Errors
// -----------------------------------------------------------------------------

// ErrContractViolation matches every error caused by calling a tree operation
// outside its preconditions.
var ErrContractViolation = errors.New("tree contract violation")

// contractError is a sentinel that also matches ErrContractViolation.
type contractError struct {
	msg string
}

func (e *contractError) Error() string { return e.msg }

func (e *contractError) Is(target error) bool { return target == ErrContractViolation }

var (
	ErrAlreadyActive   error = &contractError{"node is already active"}
	ErrInactiveParent  error = &contractError{"parent node is inactive"}
	ErrNotAttachable   error = &contractError{"node context was never observed"}
	ErrNotActive       error = &contractError{"node is not active"}
	ErrNotLeaf         error = &contractError{"node is not a leaf of the model"}
	ErrIndexOutOfRange error = &contractError{"selection index out of range"}
	ErrUnknownNode     error = &contractError{"unknown node id"}
)

// TreeError records the operation and node that failed.
type TreeError struct {
	Op   string
	Node NodeID
	Err  error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("ctree %s node %d: %v", e.Op, e.Node, e.Err)
}

func (e *TreeError) Unwrap() error { return e.Err }

func treeErr(op string, id NodeID, err error) error {
	return &TreeError{Op: op, Node: id, Err: err}
}
