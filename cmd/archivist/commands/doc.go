// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the archivist command tree. Each command
// opens the configured workspace for the duration of one run.
package commands
