// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/engine"
	"github.com/bureau-foundation/archivist/lib/integrity"
)

func (a *App) verifyCommand() *cli.Command {
	var options globalOptions
	return &cli.Command{
		Name:    "verify",
		Summary: "Check every recorded file and archive against the object store",
		Description: `Re-hash every stored object referenced by the metadata database.
Exits 1 when any record is missing its object or the object no longer
matches its hash.`,
		Flags: func() *pflag.FlagSet { return newFlagSet("verify", &options) },
		Run: func(ctx context.Context, args []string) error {
			session, err := a.openSession(&options)
			if err != nil {
				return err
			}
			defer session.Close()

			extractor, err := engine.New(engine.Config{
				Workspace: session.workspace,
				Policy:    session.config.Extraction,
				Clock:     a.clock(),
				Logger:    session.logger.With("component", "engine"),
			})
			if err != nil {
				return err
			}
			report, err := extractor.Verify(ctx)
			if err != nil {
				return err
			}

			if options.json {
				if err := cli.WriteJSON(a.stdout(), report); err != nil {
					return err
				}
			} else {
				a.printReport(report)
			}
			if !report.IsValid() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func (a *App) printReport(report *integrity.Report) {
	w := a.stdout()
	styles := a.styles()
	verdict := styles.OK.Render("valid")
	if !report.IsValid() {
		verdict = styles.Failure.Render("INVALID")
	}
	fmt.Fprintf(w, "%s %s: %d of %d records valid\n",
		styles.Heading.Render("integrity"), verdict, report.Valid, report.Total)
	for _, problem := range report.Missing {
		fmt.Fprintf(w, "  %s %s %s %s\n", styles.Failure.Render("missing"), problem.Kind, problem.Hash, problem.VirtualPath)
	}
	for _, problem := range report.Corrupted {
		fmt.Fprintf(w, "  %s %s %s %s\n", styles.Failure.Render("corrupted"), problem.Kind, problem.Hash, problem.VirtualPath)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  %s %s\n", styles.Warning.Render("warning"), warning)
	}
}
