// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for archivist's on-disk
// state files, currently the extraction checkpoints.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so
// identical state always produces identical bytes, and times are
// written as RFC 3339 strings with nanoseconds. The decoder ignores
// unknown fields so older binaries can read state written by newer
// ones.
//
//	data, err := codec.Marshal(state)
//	err = codec.Unmarshal(data, &state)
//
// [WriteFile] replaces a state file atomically (temporary file, fsync,
// rename), so a crash mid-write leaves the previous version intact.
//
// Types that are only ever CBOR carry `cbor` struct tags. Types that
// also appear in CLI --json output carry `json` tags only;
// fxamacker/cbor falls back to them.
package codec
