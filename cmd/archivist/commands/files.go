// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/metadata"
)

// fileView is the JSON shape of a file record.
type fileView struct {
	Hash         string    `json:"sha256"`
	VirtualPath  string    `json:"virtual_path"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	MIMEType     string    `json:"mime_type"`
	ModifiedTime time.Time `json:"modified_time,omitzero"`
	Depth        int       `json:"depth"`
	Rank         *float64  `json:"rank,omitempty"`
}

func newFileView(file metadata.File) fileView {
	return fileView{
		Hash:         file.Hash,
		VirtualPath:  file.VirtualPath,
		OriginalName: file.OriginalName,
		Size:         file.Size,
		MIMEType:     file.MIMEType,
		ModifiedTime: file.ModifiedTime,
		Depth:        file.Depth,
	}
}

func writeFileTable(w io.Writer, views []fileView) {
	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "SHA256\tSIZE\tTYPE\tPATH")
	for _, view := range views {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
			view.Hash[:min(12, len(view.Hash))], humanize.IBytes(uint64(max(view.Size, 0))), view.MIMEType, view.VirtualPath)
	}
	table.Flush()
}

type filesOptions struct {
	globalOptions
	archiveHash string
}

func (a *App) filesCommand() *cli.Command {
	var options filesOptions
	return &cli.Command{
		Name:    "files",
		Summary: "List extracted files",
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("files", &options.globalOptions)
			flagSet.StringVar(&options.archiveHash, "archive", "", "only files directly inside the archive with this SHA-256")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := a.openSession(&options.globalOptions)
			if err != nil {
				return err
			}
			defer session.Close()

			var files []metadata.File
			if options.archiveHash != "" {
				parent, err := session.workspace.Metadata.ArchiveByHash(ctx, strings.ToLower(options.archiveHash))
				if err != nil {
					return err
				}
				files, err = session.workspace.Metadata.FilesByArchive(ctx, parent.ID)
				if err != nil {
					return err
				}
			} else {
				files, err = session.workspace.Metadata.AllFiles(ctx)
				if err != nil {
					return err
				}
			}

			views := make([]fileView, 0, len(files))
			for _, file := range files {
				views = append(views, newFileView(file))
			}
			if options.json {
				return cli.WriteJSON(a.stdout(), views)
			}
			writeFileTable(a.stdout(), views)
			return nil
		},
	}
}

type searchOptions struct {
	globalOptions
	limit int
}

func (a *App) searchCommand() *cli.Command {
	var options searchOptions
	return &cli.Command{
		Name:    "search",
		Summary: "Full-text search over file paths and names",
		Usage:   "archivist search <term>... [flags]",
		Examples: []cli.Example{
			{Description: "Files whose path has a token starting with \"access\" and one starting with \"2026\"", Command: "archivist search access 2026"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("search", &options.globalOptions)
			flagSet.IntVarP(&options.limit, "limit", "n", 50, "maximum number of results")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("a search term is required")
			}
			session, err := a.openSession(&options.globalOptions)
			if err != nil {
				return err
			}
			defer session.Close()

			results, err := session.workspace.Metadata.SearchFiles(ctx, strings.Join(args, " "), options.limit)
			if err != nil {
				return err
			}
			views := make([]fileView, 0, len(results))
			for _, result := range results {
				view := newFileView(result.File)
				rank := result.Rank
				view.Rank = &rank
				views = append(views, view)
			}
			if options.json {
				return cli.WriteJSON(a.stdout(), views)
			}
			if len(views) == 0 {
				fmt.Fprintln(a.stdout(), "no matches")
				return nil
			}
			writeFileTable(a.stdout(), views)
			return nil
		},
	}
}
