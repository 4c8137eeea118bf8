package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Styling mirrors the muted, rounded-border tables used elsewhere in
// the toolchain: a bold accent header row, faint borders, no
// interactivity needed since every hakit subcommand is a one-shot
// dump rather than a long-lived view.
var (
	accent = lipgloss.Color("99")
	faint  = lipgloss.Color("238")
	dim    = lipgloss.Color("243")
)

func renderTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row%2 == 1 {
				return oddStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}

// splitFields splits a line into at most n single-space-delimited
// fields, leaving any remainder (e.g. a value containing spaces) in
// the last field.
func splitFields(line string, n int) []string {
	return strings.SplitN(strings.TrimSpace(line), " ", n)
}

func unquote(s string) string {
	return strings.Trim(s, "\"")
}
