// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/version"
)

func (a *App) versionCommand() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&asJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if asJSON {
				return cli.WriteJSON(a.stdout(), version.Current())
			}
			fmt.Fprintf(a.stdout(), "archivist %s\n", version.Full())
			return nil
		},
	}
}
