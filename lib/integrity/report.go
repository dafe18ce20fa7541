// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"time"
)

// RecordKind distinguishes file rows from archive rows.
type RecordKind string

const (
	KindFile    RecordKind = "file"
	KindArchive RecordKind = "archive"
)

// Problem identifies one row that failed verification.
type Problem struct {
	Kind        RecordKind `json:"kind"`
	ID          int64      `json:"id"`
	Hash        string     `json:"hash"`
	VirtualPath string     `json:"virtual_path"`
	Detail      string     `json:"detail,omitempty"`
}

// Report is the outcome of one verification pass.
type Report struct {
	Total int `json:"total"`
	Valid int `json:"valid"`

	// Missing rows have no object under their hash.
	Missing []Problem `json:"missing"`

	// Corrupted rows have an object whose content no longer hashes to
	// its name, or a recorded hash that is not a SHA-256 digest.
	Corrupted []Problem `json:"corrupted"`

	// Warnings are problems that did not affect any row's verdict,
	// such as an object that could not be read for a transient reason.
	Warnings []string `json:"warnings,omitempty"`

	CheckedAt time.Time     `json:"checked_at"`
	Duration  time.Duration `json:"duration"`
}

// IsValid reports whether no row is missing or corrupted.
func (r *Report) IsValid() bool {
	return len(r.Missing) == 0 && len(r.Corrupted) == 0
}
