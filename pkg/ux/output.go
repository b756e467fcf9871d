// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-facing command line output.
//
// Output is styled with lipgloss only when it goes to a terminal. Anything
// else, such as a pipe or a file, receives plain "key=value" lines that are
// easy to grep.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand colors
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Value:   lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// Field is one labelled value of a summary.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for Field{key, value}.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Printer writes summaries to one destination.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter returns a Printer that styles its output when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewPlainPrinter returns a Printer that never styles its output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Styled reports whether output is styled.
func (p *Printer) Styled() bool { return p.styled }

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Summary prints a titled box of fields, or a single "title key=value ..."
// line when output is plain.
func (p *Printer) Summary(title string, fields ...Field) {
	if !p.styled {
		parts := make([]string, 0, len(fields)+1)
		parts = append(parts, title)
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
		}
		fmt.Fprintln(p.w, strings.Join(parts, " "))
		return
	}

	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}
	lines := []string{Styles.Title.Render(title)}
	for _, f := range fields {
		key := Styles.Key.Render(fmt.Sprintf("%-*s", width, f.Key))
		lines = append(lines, key+"  "+Styles.Value.Render(fmt.Sprint(f.Value)))
	}
	fmt.Fprintln(p.w, Styles.Box.Render(strings.Join(lines, "\n")))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	p.status(IconSuccess, Styles.Success, "OK", text)
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	p.status(IconWarning, Styles.Warning, "WARN", text)
}

// Error prints an error message
func (p *Printer) Error(text string) {
	p.status(IconError, Styles.Error, "ERROR", text)
}

func (p *Printer) status(icon Icon, style lipgloss.Style, plain, text string) {
	if !p.styled {
		fmt.Fprintf(p.w, "%s: %s\n", plain, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
}
