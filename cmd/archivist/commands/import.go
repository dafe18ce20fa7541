// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/config"
	"github.com/bureau-foundation/archivist/lib/engine"
)

type importOptions struct {
	globalOptions
	policyPath      string
	maxDepth        int
	abortOnCritical bool
	skipVerify      bool
}

type importReport struct {
	Archive string         `json:"archive"`
	Result  *engine.Result `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (a *App) importCommand() *cli.Command {
	var options importOptions
	return &cli.Command{
		Name:    "import",
		Summary: "Extract archives into the workspace",
		Description: `Extract each archive, and every archive nested inside it down to the
configured depth, into the workspace. An interrupted import resumes
from its checkpoint when run again on the same path.`,
		Usage: "archivist import <archive>... [flags]",
		Examples: []cli.Example{
			{Description: "Import into the default workspace", Command: "archivist import evidence.zip"},
			{Description: "Import with a stricter policy", Command: "archivist import --policy strict.yaml -w case-17 dump.tar.gz"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("import", &options.globalOptions)
			flagSet.StringVar(&options.policyPath, "policy", "", "extraction policy overlay (.yaml, .yml, .json, .jsonc)")
			flagSet.IntVar(&options.maxDepth, "max-depth", 0, "override extraction.max_depth")
			flagSet.BoolVar(&options.abortOnCritical, "abort-on-critical", false, "stop the whole import at the first critical security violation")
			flagSet.BoolVar(&options.skipVerify, "skip-verify", false, "skip the integrity check after each import")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one archive is required")
			}
			return a.runImport(ctx, &options, args)
		},
	}
}

func (a *App) runImport(ctx context.Context, options *importOptions, archives []string) error {
	session, err := a.openSession(&options.globalOptions)
	if err != nil {
		return err
	}
	defer session.Close()

	policy := session.config.Extraction
	if options.policyPath != "" {
		if policy, err = config.LoadPolicyFile(options.policyPath, policy); err != nil {
			return err
		}
	}
	if options.maxDepth > 0 {
		policy.MaxDepth = options.maxDepth
	}

	extractor, err := engine.New(engine.Config{
		Workspace:       session.workspace,
		Policy:          policy,
		Clock:           a.clock(),
		Logger:          session.logger.With("component", "engine"),
		AbortOnCritical: options.abortOnCritical,
		SkipVerify:      options.skipVerify,
	})
	if err != nil {
		return err
	}

	var reports []importReport
	var failures []error
	for _, path := range archives {
		result, err := extractor.Import(ctx, path)
		report := importReport{Archive: path, Result: result}
		if err != nil {
			report.Error = err.Error()
			failures = append(failures, fmt.Errorf("%s: %w", path, err))
		}
		reports = append(reports, report)
		if !options.json {
			a.printImport(a.stdout(), report)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if options.json {
		if err := cli.WriteJSON(a.stdout(), reports); err != nil {
			return err
		}
	}
	return errors.Join(failures...)
}

func (a *App) printImport(w io.Writer, report importReport) {
	styles := a.styles()
	result := report.Result
	switch {
	case result == nil:
		fmt.Fprintf(w, "%s  %s\n", styles.Heading.Render(report.Archive), styles.Failure.Render("failed"))
		fmt.Fprintf(w, "  %s\n", report.Error)
		return
	case report.Error != "":
		fmt.Fprintf(w, "%s  %s\n", styles.Heading.Render(report.Archive), styles.Failure.Render("interrupted"))
		fmt.Fprintf(w, "  %s\n", report.Error)
	case len(result.Violations) > 0:
		fmt.Fprintf(w, "%s  %s\n", styles.Heading.Render(report.Archive), styles.Warning.Render("completed with security events"))
	default:
		fmt.Fprintf(w, "%s  %s\n", styles.Heading.Render(report.Archive), styles.OK.Render("ok"))
	}

	fmt.Fprintf(w, "  %s\n", result.Summary())
	fmt.Fprintf(w, "  %s %s  %s %s\n",
		styles.Label.Render("run"), result.RunID,
		styles.Label.Render("sha256"), result.ArchiveHash)
	if result.Resumed > 0 {
		fmt.Fprintf(w, "  %s %d entries already extracted\n", styles.Label.Render("resumed"), result.Resumed)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  %s %s: %s\n",
			styles.Warning.Render("["+string(warning.Category)+"]"), warning.Path, warning.Message)
	}
	if result.Integrity != nil && !result.Integrity.IsValid() {
		fmt.Fprintf(w, "  %s %d missing, %d corrupted\n",
			styles.Failure.Render("integrity"), len(result.Integrity.Missing), len(result.Integrity.Corrupted))
	}
}
