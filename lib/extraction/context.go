// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package extraction

import (
	"slices"
	"time"
)

// Context is the traversal state of one branch of an archive tree.
// A Context is a value: children are produced by [Context.CreateChild]
// and never share mutable state with their parent.
type Context struct {
	// WorkspaceID identifies the workspace receiving extracted content.
	WorkspaceID string

	// Depth is the nesting level. The top-level archive is depth 0.
	Depth int

	// ParentArchive is the path of the archive that contained this
	// branch. Empty at depth 0.
	ParentArchive string

	// ExtractedBytes and ExtractedFiles are running totals across the
	// whole tree at the moment this context was created. They are
	// carried forward into children, never reset.
	ExtractedBytes int64
	ExtractedFiles int64

	// StartedAt is when extraction of the top-level archive began.
	StartedAt time.Time

	// RatioChain holds the compression ratio of each ancestor archive,
	// outermost first. Used by the compound risk model.
	RatioChain []float64
}

// NewContext returns the depth-0 context for a top-level archive.
func NewContext(workspaceID string, startedAt time.Time) Context {
	return Context{
		WorkspaceID: workspaceID,
		StartedAt:   startedAt,
	}
}

// CreateChild returns the context for an archive nested inside this
// one. Depth increases by exactly one; workspace, counters, and start
// time are copied verbatim.
func (c Context) CreateChild(parentArchive string) Context {
	return Context{
		WorkspaceID:    c.WorkspaceID,
		Depth:          c.Depth + 1,
		ParentArchive:  parentArchive,
		ExtractedBytes: c.ExtractedBytes,
		ExtractedFiles: c.ExtractedFiles,
		StartedAt:      c.StartedAt,
		RatioChain:     slices.Clone(c.RatioChain),
	}
}

// WithRatio returns a copy of c with ratio appended to the ancestor
// ratio chain.
func (c Context) WithRatio(ratio float64) Context {
	chain := make([]float64, len(c.RatioChain), len(c.RatioChain)+1)
	copy(chain, c.RatioChain)
	c.RatioChain = append(chain, ratio)
	return c
}

// WithProgress returns a copy of c with the running totals replaced.
func (c Context) WithProgress(bytes, files int64) Context {
	c.ExtractedBytes = bytes
	c.ExtractedFiles = files
	c.RatioChain = slices.Clone(c.RatioChain)
	return c
}

// Item is a pending unit of traversal work: an archive file on disk
// waiting to be opened and expanded into TargetDir.
type Item struct {
	// ArchivePath is the archive file on disk.
	ArchivePath string

	// TargetDir is the directory that receives the archive's entries.
	TargetDir string

	// VirtualPath is the logical path of the archive inside the tree,
	// e.g. "logs.zip/2026/app.tar.gz".
	VirtualPath string

	// Depth is the nesting level of the archive itself.
	Depth int

	// ParentArchiveID is the metadata row id of the containing archive,
	// or zero at the top level.
	ParentArchiveID int64

	// Context is the branch state that spawned this item.
	Context Context
}
