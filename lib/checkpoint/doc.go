// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package checkpoint persists extraction progress so an import that
// crashes can resume without redoing finished work.
//
// A [Checkpoint] belongs to one (workspace, archive path) pair and
// holds the set of target paths already extracted plus running totals.
// The engine marks each file as it lands and asks [Manager.ShouldWrite]
// whether enough files or bytes have accumulated since the last write;
// whichever interval is crossed first triggers a save. Files are CBOR
// (lib/codec), replaced atomically, and named by a BLAKE3 digest of
// the key so arbitrary archive paths map to safe file names.
//
// A checkpoint is deleted when its import completes. One that
// survives to the next run, listed by [Manager.ListIncomplete], is the
// record of a crashed or aborted import.
//
// A disabled Manager accepts every call and persists nothing.
package checkpoint
