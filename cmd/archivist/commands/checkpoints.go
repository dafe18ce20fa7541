// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
)

type checkpointView struct {
	ArchivePath    string    `json:"archive_path"`
	RunID          string    `json:"run_id"`
	ExtractedFiles int64     `json:"extracted_files"`
	ExtractedBytes int64     `json:"extracted_bytes"`
	MaxDepth       int       `json:"max_depth"`
	Errors         int       `json:"errors"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type checkpointsOptions struct {
	globalOptions
	discard bool
}

func (a *App) checkpointsCommand() *cli.Command {
	var options checkpointsOptions
	return &cli.Command{
		Name:    "checkpoints",
		Summary: "List imports that were interrupted before completing",
		Description: `List the checkpoints left by imports that did not complete. Running
"archivist import" again on the same archive resumes from its
checkpoint; --discard removes them instead.`,
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("checkpoints", &options.globalOptions)
			flagSet.BoolVar(&options.discard, "discard", false, "delete every listed checkpoint")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := a.openSession(&options.globalOptions)
			if err != nil {
				return err
			}
			defer session.Close()

			manager := session.workspace.Checkpoints
			incomplete, err := manager.ListIncomplete()
			if err != nil {
				return err
			}
			views := make([]checkpointView, 0, len(incomplete))
			for _, checkpoint := range incomplete {
				views = append(views, checkpointView{
					ArchivePath:    checkpoint.ArchivePath,
					RunID:          checkpoint.RunID,
					ExtractedFiles: checkpoint.ExtractedFiles,
					ExtractedBytes: checkpoint.ExtractedBytes,
					MaxDepth:       checkpoint.MaxDepth,
					Errors:         checkpoint.ErrorCount,
					StartedAt:      checkpoint.StartedAt,
					UpdatedAt:      checkpoint.UpdatedAt,
				})
				if options.discard {
					if err := manager.Delete(checkpoint.WorkspaceID, checkpoint.ArchivePath); err != nil {
						return err
					}
					session.logger.Info("checkpoint discarded", "archive_path", checkpoint.ArchivePath, "run_id", checkpoint.RunID)
				}
			}

			if options.json {
				return cli.WriteJSON(a.stdout(), views)
			}
			if len(views) == 0 {
				fmt.Fprintln(a.stdout(), "no interrupted imports")
				return nil
			}
			table := tabwriter.NewWriter(a.stdout(), 2, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ARCHIVE\tFILES\tBYTES\tERRORS\tUPDATED")
			for _, view := range views {
				fmt.Fprintf(table, "%s\t%d\t%s\t%d\t%s\n",
					view.ArchivePath, view.ExtractedFiles, humanize.IBytes(uint64(max(view.ExtractedBytes, 0))),
					view.Errors, humanize.Time(view.UpdatedAt))
			}
			return table.Flush()
		},
	}
}
