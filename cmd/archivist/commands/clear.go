// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
)

type clearOptions struct {
	globalOptions
	yes bool
}

type clearView struct {
	Files       int64 `json:"files"`
	Archives    int64 `json:"archives"`
	Checkpoints int   `json:"checkpoints"`
}

func (a *App) clearCommand() *cli.Command {
	var options clearOptions
	return &cli.Command{
		Name:    "clear",
		Summary: "Remove every file and archive record from the workspace",
		Description: `Delete the workspace's file and archive records and its checkpoints so
archives can be imported again from scratch. Stored objects and
extracted files stay on disk, as does log scanning progress.`,
		Usage: "archivist clear --yes",
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("clear", &options.globalOptions)
			flagSet.BoolVar(&options.yes, "yes", false, "confirm removal")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if !options.yes {
				return errors.New("clear removes every record in the workspace; pass --yes to confirm")
			}
			session, err := a.openSession(&options.globalOptions)
			if err != nil {
				return err
			}
			defer session.Close()

			records := session.workspace.Metadata
			var view clearView
			if view.Files, err = records.FileCount(ctx); err != nil {
				return err
			}
			if view.Archives, err = records.ArchiveCount(ctx); err != nil {
				return err
			}
			if err := records.ClearAll(ctx); err != nil {
				return err
			}

			manager := session.workspace.Checkpoints
			incomplete, err := manager.ListIncomplete()
			if err != nil {
				return err
			}
			for _, checkpoint := range incomplete {
				if err := manager.Delete(checkpoint.WorkspaceID, checkpoint.ArchivePath); err != nil {
					return err
				}
			}
			view.Checkpoints = len(incomplete)
			session.logger.Info("workspace cleared",
				"files", view.Files,
				"archives", view.Archives,
				"checkpoints", view.Checkpoints,
			)

			if options.json {
				return cli.WriteJSON(a.stdout(), view)
			}
			fmt.Fprintf(a.stdout(), "removed %d files, %d archives, %d checkpoints\n",
				view.Files, view.Archives, view.Checkpoints)
			return nil
		},
	}
}
