// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Printer Tests
// =============================================================================

func TestNewPrinter_BufferIsPlain(t *testing.T) {
	var buf bytes.Buffer
	if NewPrinter(&buf).Styled() {
		t.Error("a buffer must not be treated as a terminal")
	}
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("a regular file must not be treated as a terminal")
	}
}

func TestPrinter_PlainSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPlainPrinter(&buf).Summary("sample", F("births", 3), F("rate", "0.50"))

	want := "sample births=3 rate=0.50\n"
	if buf.String() != want {
		t.Errorf("Summary() = %q, want %q", buf.String(), want)
	}
}

func TestPrinter_StyledSummary(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf, styled: true}
	p.Summary("enumerate", F("configurations", 16), F("nodes", 4))

	out := buf.String()
	for _, want := range []string{"enumerate", "configurations", "16", "nodes"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary() output %q is missing %q", out, want)
		}
	}
	if strings.Contains(out, "configurations=16") {
		t.Errorf("styled summary fell back to plain output: %q", out)
	}
}

func TestPrinter_PlainStatus(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Printer, string)
		want string
	}{
		{"success", (*Printer).Success, "OK: done\n"},
		{"warning", (*Printer).Warning, "WARN: done\n"},
		{"error", (*Printer).Error, "ERROR: done\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.fn(NewPlainPrinter(&buf), "done")
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrinter_StyledStatusHasIcon(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf, styled: true}
	p.Success("written")
	if !strings.Contains(buf.String(), string(IconSuccess)) || !strings.Contains(buf.String(), "written") {
		t.Errorf("Success() = %q", buf.String())
	}
}
