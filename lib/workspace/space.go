// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package workspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeSpaceMargin is the multiple of the estimated extraction size
// that must be available before an import starts.
const FreeSpaceMargin = 1.2

// SpaceError reports a filesystem without room for an import.
type SpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("workspace: insufficient space at %s: need %d bytes, %d available",
		e.Path, e.Required, e.Available)
}

// FreeSpace returns the bytes available to an unprivileged writer on
// the filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("workspace: statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace returns a *SpaceError unless the filesystem holding
// path has at least estimate × FreeSpaceMargin bytes free.
func CheckFreeSpace(path string, estimate int64) error {
	if estimate <= 0 {
		return nil
	}
	available, err := FreeSpace(path)
	if err != nil {
		return err
	}
	required := uint64(float64(estimate) * FreeSpaceMargin)
	if available < required {
		return &SpaceError{Path: path, Required: required, Available: available}
	}
	return nil
}
