// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/logscan"
)

type scanOptions struct {
	globalOptions
	printLines bool
}

type scanView struct {
	Path        string          `json:"path"`
	StartOffset int64           `json:"start_offset"`
	EndOffset   int64           `json:"end_offset"`
	Lines       int             `json:"lines"`
	Restart     logscan.Restart `json:"restart,omitempty"`
	Text        []string        `json:"text,omitempty"`
}

func (a *App) scanCommand() *cli.Command {
	var options scanOptions
	return &cli.Command{
		Name:    "scan",
		Summary: "Read lines appended to log files since the last scan",
		Description: `Read each log file from where the previous scan stopped. A file that
shrank or whose first 4 KiB changed is treated as rotated and read
from the start.`,
		Usage: "archivist scan <logfile>... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("scan", &options.globalOptions)
			flagSet.BoolVarP(&options.printLines, "print", "p", false, "print the new lines")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one log file is required")
			}
			session, err := a.openSession(&options.globalOptions)
			if err != nil {
				return err
			}
			defer session.Close()

			scanner, err := logscan.NewScanner(logscan.Config{
				Progress:    session.workspace.Metadata,
				WorkspaceID: session.workspace.ID(),
				Logger:      session.logger.With("component", "logscan"),
			})
			if err != nil {
				return err
			}

			views := make([]scanView, 0, len(args))
			for _, path := range args {
				absolute, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				var text []string
				result, err := scanner.Scan(ctx, absolute, func(line logscan.Line) error {
					if options.printLines {
						text = append(text, line.Text)
					}
					return nil
				})
				if err != nil {
					return err
				}
				views = append(views, scanView{
					Path:        result.Path,
					StartOffset: result.StartOffset,
					EndOffset:   result.EndOffset,
					Lines:       result.Lines,
					Restart:     result.Restart,
					Text:        text,
				})
			}

			if options.json {
				return cli.WriteJSON(a.stdout(), views)
			}
			styles := a.styles()
			for _, view := range views {
				note := ""
				if view.Restart != logscan.RestartNone {
					note = " " + styles.Warning.Render("("+string(view.Restart)+", read from start)")
				}
				fmt.Fprintf(a.stdout(), "%s: %d new lines, bytes %d-%d%s\n",
					styles.Heading.Render(view.Path), view.Lines, view.StartOffset, view.EndOffset, note)
				for _, line := range view.Text {
					fmt.Fprintln(a.stdout(), line)
				}
			}
			return nil
		},
	}
}
