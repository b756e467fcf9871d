// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
)

func TestReadObservations_Sequences(t *testing.T) {
	input := `# two sequences
0 1 0 1
2,0, 1

`
	obs, err := readObservations(strings.NewReader(input), ctree.KindSequence, 0)
	if err != nil {
		t.Fatalf("readObservations() error = %v", err)
	}
	if obs.AlphabetSize() != 3 {
		t.Errorf("AlphabetSize() = %d, want 3 (inferred)", obs.AlphabetSize())
	}
	if obs.Len() != 7 {
		t.Errorf("Len() = %d, want 7", obs.Len())
	}
	if obs.Kind() != ctree.KindSequence {
		t.Errorf("Kind() = %v", obs.Kind())
	}
}

func TestReadObservations_Network(t *testing.T) {
	input := "0 1\n1 2\n2 0\n"
	obs, err := readObservations(strings.NewReader(input), ctree.KindNetwork, 4)
	if err != nil {
		t.Fatalf("readObservations() error = %v", err)
	}
	if obs.AlphabetSize() != 4 || obs.Len() != 3 {
		t.Errorf("got alphabet %d with %d events, want 4 and 3", obs.AlphabetSize(), obs.Len())
	}
	if obs.Target(1) != 2 {
		t.Errorf("Target(1) = %d, want 2", obs.Target(1))
	}
}

func TestReadObservations_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     ctree.Kind
		alphabet int
		want     error
	}{
		{"not a number", "0 1 x\n", ctree.KindSequence, 0, ErrMalformedInput},
		{"negative symbol", "0 -1\n", ctree.KindSequence, 0, ErrMalformedInput},
		{"edge with three symbols", "0 1 2\n", ctree.KindNetwork, 0, ErrMalformedInput},
		{"empty input", "# nothing\n\n", ctree.KindSequence, 0, ctree.ErrNoObservations},
		{"symbol beyond alphabet", "0 1 5\n", ctree.KindSequence, 3, ctree.ErrSymbolOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readObservations(strings.NewReader(tt.input), tt.kind, tt.alphabet)
			if !errors.Is(err, tt.want) {
				t.Errorf("readObservations() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadRows_LineNumbers(t *testing.T) {
	_, err := readRows(strings.NewReader("0 1\n\n1 z\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("readRows() error = %v, want mention of line 3", err)
	}
}
