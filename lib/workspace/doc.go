// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace lays out one archivist workspace on disk and opens
// the stores that live in it.
//
// A workspace directory holds:
//
//	objects/       content-addressed file and archive bytes (lib/cas)
//	tmp/           in-flight object copies
//	metadata.db    file and archive records (lib/metadata)
//	checkpoints/   extraction progress (lib/checkpoint)
//	extracted/     the materialized archive trees
//	lock           held by a running import
//
// [CheckFreeSpace] is the preflight the engine runs before extracting.
package workspace
