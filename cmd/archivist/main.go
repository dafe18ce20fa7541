// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// archivist extracts nested archives into a content-addressed,
// searchable workspace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/archivist/cmd/archivist/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an error with an
		// exit code; don't print a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// An interrupted import saves its checkpoint before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app := &commands.App{}
	return app.Root().Execute(ctx, os.Args[1:])
}
