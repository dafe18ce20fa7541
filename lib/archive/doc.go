// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive opens the container formats the ingestion engine
// descends into and presents them through one sequential [Reader].
//
// Supported formats:
//
//   - zip (github.com/klauspost/compress/zip)
//   - tar, plain or wrapped in gzip, zstd, or lz4
//   - single-stream gzip, zstd, and lz4 files, which read as an
//     archive holding exactly one entry
//   - 7z (github.com/bodgit/sevenzip)
//   - rar, versions 1.5 through 5 (github.com/nwaples/rardecode/v2)
//
// Decompression is delegated entirely to the codec libraries; this
// package only adapts their readers. Formats are recognized by file
// name first ([DetectName]) and by magic bytes when the name says
// nothing ([Detect]).
//
// Entry names are untrusted. [PathRules.Resolve] turns an entry name
// into a path that is guaranteed to stay inside the extraction
// directory, or rejects it.
package archive
