// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/metadata"
)

type statusView struct {
	WorkspaceID           string    `json:"workspace_id"`
	Dir                   string    `json:"dir"`
	Files                 int64     `json:"files"`
	Archives              int64     `json:"archives"`
	ContentBytes          int64     `json:"content_bytes"`
	MaxDepth              int64     `json:"max_depth"`
	Objects               int64     `json:"objects"`
	ObjectBytes           int64     `json:"object_bytes"`
	IncompleteCheckpoints int       `json:"incomplete_checkpoints"`
	LastIndexed           time.Time `json:"last_indexed,omitzero"`
}

func (a *App) statusCommand() *cli.Command {
	var options globalOptions
	return &cli.Command{
		Name:    "status",
		Summary: "Summarize the workspace",
		Flags:   func() *pflag.FlagSet { return newFlagSet("status", &options) },
		Run: func(ctx context.Context, args []string) error {
			session, err := a.openSession(&options)
			if err != nil {
				return err
			}
			defer session.Close()

			view, err := collectStatus(ctx, session)
			if err != nil {
				return err
			}
			if options.json {
				return cli.WriteJSON(a.stdout(), view)
			}

			styles := a.styles()
			w := a.stdout()
			fmt.Fprintf(w, "%s %s\n", styles.Heading.Render("workspace"), view.WorkspaceID)
			table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
			row := func(label, value string) {
				fmt.Fprintf(table, "  %s\t%s\n", styles.Label.Render(label), value)
			}
			row("directory", view.Dir)
			row("files", humanize.Comma(view.Files))
			row("archives", humanize.Comma(view.Archives))
			row("content", humanize.IBytes(uint64(view.ContentBytes)))
			row("stored", fmt.Sprintf("%s in %s objects", humanize.IBytes(uint64(view.ObjectBytes)), humanize.Comma(view.Objects)))
			row("max depth", fmt.Sprint(view.MaxDepth))
			if view.LastIndexed.IsZero() {
				row("last indexed", "never")
			} else {
				row("last indexed", humanize.Time(view.LastIndexed))
			}
			table.Flush()
			if view.IncompleteCheckpoints > 0 {
				fmt.Fprintf(w, "%s %d interrupted imports; run 'archivist checkpoints' for details\n",
					styles.Warning.Render("warning"), view.IncompleteCheckpoints)
			}
			return nil
		},
	}
}

func collectStatus(ctx context.Context, session *workspaceSession) (statusView, error) {
	records := session.workspace.Metadata
	view := statusView{
		WorkspaceID: session.workspace.ID(),
		Dir:         session.workspace.Dir(),
	}
	var err error
	if view.Files, err = records.FileCount(ctx); err != nil {
		return view, err
	}
	if view.Archives, err = records.ArchiveCount(ctx); err != nil {
		return view, err
	}
	if view.ContentBytes, err = records.TotalSize(ctx); err != nil {
		return view, err
	}
	if view.MaxDepth, err = records.MaxDepth(ctx); err != nil {
		return view, err
	}
	usage, err := session.workspace.Objects.Usage()
	if err != nil {
		return view, err
	}
	view.Objects, view.ObjectBytes = usage.Objects, usage.Bytes

	incomplete, err := session.workspace.Checkpoints.ListIncomplete()
	if err != nil {
		return view, err
	}
	view.IncompleteCheckpoints = len(incomplete)

	state, err := records.IndexState(ctx, session.workspace.ID())
	switch {
	case err == nil:
		view.LastIndexed = state.LastCommitTime
	case !errors.Is(err, metadata.ErrNotFound):
		return view, err
	}
	return view, nil
}
