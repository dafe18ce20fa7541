// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the archivist
// binary: a tree of [Command] values with pflag flag sets, typo
// suggestions for commands and flags, [ExitError] for handled
// non-zero exits, [WriteJSON] for --json output, lipgloss [Styles]
// for terminal reports, and [NewCommandLogger] for slog output that
// is text on a terminal and JSON otherwise.
package cli
