// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"slices"
	"time"
)

// FormatVersion is written into every checkpoint file. Files with a
// different version are refused rather than misread.
const FormatVersion = 1

// Checkpoint is the resumable state of one archive import. It is not
// safe for concurrent use; the engine updates it from the single
// traversal goroutine.
type Checkpoint struct {
	Version     int    `cbor:"version"`
	WorkspaceID string `cbor:"workspace_id"`
	ArchivePath string `cbor:"archive_path"`
	RunID       string `cbor:"run_id"`

	// Extracted holds the target paths already written to the store.
	Extracted map[string]bool `cbor:"extracted"`

	ExtractedFiles int64  `cbor:"extracted_files"`
	ExtractedBytes int64  `cbor:"extracted_bytes"`
	MaxDepth       int    `cbor:"max_depth"`
	ErrorCount     int    `cbor:"error_count"`
	LastPath       string `cbor:"last_path,omitempty"`

	StartedAt time.Time `cbor:"started_at"`
	UpdatedAt time.Time `cbor:"updated_at"`

	// Totals at the last save, for interval accounting.
	savedFiles int64
	savedBytes int64
}

func newCheckpoint(workspaceID, archivePath, runID string, now time.Time) *Checkpoint {
	return &Checkpoint{
		Version:     FormatVersion,
		WorkspaceID: workspaceID,
		ArchivePath: archivePath,
		RunID:       runID,
		Extracted:   make(map[string]bool),
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// IsExtracted reports whether targetPath was already extracted.
func (c *Checkpoint) IsExtracted(targetPath string) bool {
	return c.Extracted[targetPath]
}

// MarkExtracted records targetPath as done and adds size to the
// totals. Marking a path twice counts it once.
func (c *Checkpoint) MarkExtracted(targetPath string, size int64) {
	if c.Extracted[targetPath] {
		return
	}
	if c.Extracted == nil {
		c.Extracted = make(map[string]bool)
	}
	c.Extracted[targetPath] = true
	c.ExtractedFiles++
	c.ExtractedBytes += size
	c.LastPath = targetPath
}

// ObserveDepth raises MaxDepth to depth if deeper.
func (c *Checkpoint) ObserveDepth(depth int) {
	c.MaxDepth = max(c.MaxDepth, depth)
}

// RecordError counts a per-file failure.
func (c *Checkpoint) RecordError() {
	c.ErrorCount++
}

// ExtractedPaths returns the extracted set in sorted order.
func (c *Checkpoint) ExtractedPaths() []string {
	paths := make([]string, 0, len(c.Extracted))
	for path := range c.Extracted {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

func (c *Checkpoint) markSaved() {
	c.savedFiles = c.ExtractedFiles
	c.savedBytes = c.ExtractedBytes
}
