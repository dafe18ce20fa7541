// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"unicode/utf8"

	"github.com/h2non/filetype"
)

// SniffSize is how many leading bytes DetectMIME needs.
const SniffSize = sniffSize

// DetectMIME classifies content from its first SniffSize bytes.
// Binary formats are identified by magic number; anything else that
// decodes as UTF-8 without NUL bytes is text/plain.
func DetectMIME(head []byte) string {
	if len(head) == 0 {
		return "application/x-empty"
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if bytes.HasPrefix(head, zstdMagic) {
		return "application/zstd"
	}
	if bytes.HasPrefix(head, lz4Magic) {
		return "application/x-lz4"
	}
	if looksLikeText(head) {
		return "text/plain"
	}
	return "application/octet-stream"
}

// looksLikeText tolerates a multi-byte rune cut off at the end of the
// sniffed prefix.
func looksLikeText(head []byte) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	for trim := 0; trim < utf8.UTFMax && trim < len(head); trim++ {
		if utf8.Valid(head[:len(head)-trim]) {
			return true
		}
	}
	return false
}
