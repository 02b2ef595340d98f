// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders castgraph CLI output.
//
// Human output uses lipgloss styles in the Aleutian teal palette. When
// stdout is not a terminal, or CASTGRAPH_OUTPUT=machine, output degrades to
// tab-separated lines that are stable for scripts.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes CLI output at a fixed personality level.
//
// Thread Safety: Not safe for concurrent use; one Printer per command.
type Printer struct {
	out   io.Writer
	err   io.Writer
	level PersonalityLevel
}

// NewPrinter returns a Printer on stdout/stderr at the process-wide level.
func NewPrinter() *Printer {
	return NewPrinterWithWriters(os.Stdout, os.Stderr, GetPersonalityLevel())
}

// NewPrinterWithWriters returns a Printer on the given writers. Used by tests
// and by commands whose output is redirected.
func NewPrinterWithWriters(out, errOut io.Writer, level PersonalityLevel) *Printer {
	return &Printer{out: out, err: errOut, level: level}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel { return p.level }

// Title prints a styled title. Suppressed in machine mode.
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning line to the error writer.
func (p *Printer) Warning(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.err, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error line to the error writer.
func (p *Printer) Error(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.err, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Value prints a single labelled result, e.g. a distance or a count.
func (p *Printer) Value(label string, value any) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "%v\n", value)
	default:
		fmt.Fprintf(p.out, "%s %s %v\n", Styles.Muted.Render(label), IconArrow, Styles.Bold.Render(fmt.Sprint(value)))
	}
}

// Box prints content in a rounded box with a title.
func (p *Printer) Box(title, content string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// Table prints rows under headers.
//
// Description:
//
//	Machine mode prints a tab-separated header line followed by one
//	tab-separated line per row. Otherwise columns are padded to their
//	widest cell, measured with lipgloss.Width so styled cells align.
//
// Inputs:
//
//	headers - Column names.
//	rows - Cell values. Short rows are padded with empty cells.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.level == PersonalityMachine {
		fmt.Fprintln(p.out, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(p.out, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = Styles.Header.Render(pad(h, widths[i]))
	}
	fmt.Fprintln(p.out, strings.TrimRight(strings.Join(cells, "  "), " "))

	rules := make([]string, len(headers))
	for i := range headers {
		rules[i] = strings.Repeat("─", widths[i])
	}
	fmt.Fprintln(p.out, Styles.Muted.Render(strings.Join(rules, "  ")))

	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(p.out, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
