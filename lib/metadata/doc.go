// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata is the durable record of what an import produced:
// which content hashes exist, where each sits in the (possibly nested)
// archive tree, and how far incremental log indexing has progressed.
//
// Two tables carry the tree. files holds leaf content and archives
// holds container nodes; both are unique on sha256_hash and may point
// at a parent archive. Inserting a hash that is already present is not
// an error: the existing row id is returned, mirroring deduplication
// in the content-addressed store. Multi-row writes ([Store.InsertFiles],
// [Store.InsertArchiveWithFiles]) run in a single IMMEDIATE transaction
// so a partial tree is never visible.
//
// An FTS5 index over files(virtual_path, original_name), maintained by
// triggers, backs [Store.SearchFiles]. The index_state and
// indexed_files tables hold per-workspace commit times and per-file
// read offsets for lib/logscan.
//
// Timestamps are stored as Unix nanoseconds.
package metadata
