// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
)

// Root returns the archivist command tree.
func (a *App) Root() *cli.Command {
	return &cli.Command{
		Name:    "archivist",
		Summary: "Forensic archive extraction into a content-addressed workspace",
		Description: `archivist expands archives, including archives nested inside archives,
into a workspace. Every extracted file is stored once by SHA-256 and
recorded in a searchable metadata database. Extraction is bounded by
depth, size, and compression-ratio limits so decompression bombs are
stopped rather than expanded.`,
		Subcommands: []*cli.Command{
			a.importCommand(),
			a.verifyCommand(),
			a.searchCommand(),
			a.filesCommand(),
			a.statusCommand(),
			a.checkpointsCommand(),
			a.clearCommand(),
			a.scanCommand(),
			a.versionCommand(),
		},
	}
}
