// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no object exists for a hash.
	ErrNotFound = errors.New("cas: object not found")

	// ErrCopyTimeout is the cause recorded when a copy exceeds
	// Config.CopyTimeout.
	ErrCopyTimeout = errors.New("cas: copy timed out")
)

// IntegrityError reports content whose digest differs from the hash
// it is stored or expected under.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cas: %s: hash mismatch (expected %s, got %s)", e.Path, e.Expected, e.Actual)
}
