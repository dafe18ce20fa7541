// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logscan reads log files incrementally. Each [Scanner.Scan]
// delivers only the complete lines appended since the previous scan,
// using the per-file offsets kept in the metadata store.
//
// A file that shrank, or whose leading bytes no longer match the
// recorded BLAKE3 fingerprint, was truncated or rotated and is read
// again from the start.
package logscan
