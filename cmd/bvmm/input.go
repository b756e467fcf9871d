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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/bvmm/services/vmm/ctree"
)

// ErrMalformedInput is returned for input lines that are not integer coded.
var ErrMalformedInput = errors.New("malformed input")

// readObservations parses integer-coded input. An alphabetSize of zero is
// replaced by one more than the largest symbol seen.
func readObservations(r io.Reader, kind ctree.Kind, alphabetSize int) (*ctree.Observations, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ctree.ErrNoObservations
	}

	if alphabetSize == 0 {
		for _, row := range rows {
			for _, s := range row.symbols {
				alphabetSize = max(alphabetSize, s+1)
			}
		}
	}

	switch kind {
	case ctree.KindNetwork:
		edges := make([]ctree.Edge, 0, len(rows))
		for _, row := range rows {
			if len(row.symbols) != 2 {
				return nil, fmt.Errorf("%w: line %d: want \"src dst\", got %d symbols", ErrMalformedInput, row.line, len(row.symbols))
			}
			edges = append(edges, ctree.Edge{Src: row.symbols[0], Dst: row.symbols[1]})
		}
		return ctree.NewNetworkObservations(alphabetSize, edges)
	default:
		seqs := make([][]int, 0, len(rows))
		for _, row := range rows {
			seqs = append(seqs, row.symbols)
		}
		return ctree.NewSequenceObservations(alphabetSize, seqs...)
	}
}

type row struct {
	line    int
	symbols []int
}

// readRows splits input into lines of integers. Blank lines and lines
// starting with # are skipped.
func readRows(r io.Reader) ([]row, error) {
	var rows []row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		symbols := make([]int, 0, len(fields))
		for _, f := range fields {
			s, err := strconv.Atoi(f)
			if err != nil || s < 0 {
				return nil, fmt.Errorf("%w: line %d: %q is not a symbol", ErrMalformedInput, line, f)
			}
			symbols = append(symbols, s)
		}
		rows = append(rows, row{line: line, symbols: symbols})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return rows, nil
}
