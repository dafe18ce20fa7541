// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles renders report text. Plain styles leave text untouched, for
// output that is piped or redirected.
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	OK      lipgloss.Style
	Warning lipgloss.Style
	Failure lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles returns colored styles when stdout is a terminal and
// plain ones otherwise.
func NewStyles() Styles {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return PlainStyles()
	}
	return Styles{
		Heading: lipgloss.NewStyle().Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Muted:   lipgloss.NewStyle().Faint(true),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Heading: plain,
		Label:   plain,
		OK:      plain,
		Warning: plain,
		Failure: plain,
		Muted:   plain,
	}
}
