// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("metadata: not found")

// ArchiveStatus is the extraction lifecycle of an archive row.
type ArchiveStatus string

const (
	StatusPending   ArchiveStatus = "pending"
	StatusCompleted ArchiveStatus = "completed"
	StatusFailed    ArchiveStatus = "failed"
)

// Valid reports whether s is one of the three known statuses.
func (s ArchiveStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// File is a leaf content record.
type File struct {
	ID           int64
	Hash         string
	VirtualPath  string
	OriginalName string
	Size         int64
	ModifiedTime time.Time
	MIMEType     string

	// ParentArchiveID is zero for files imported outside any archive.
	ParentArchiveID int64
	Depth           int
	CreatedAt       time.Time
}

// Archive is a container node in the import tree.
type Archive struct {
	ID              int64
	Hash            string
	VirtualPath     string
	OriginalName    string
	Type            string
	Size            int64
	ParentArchiveID int64
	Depth           int
	Status          ArchiveStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SearchResult is a file matched by full-text search. Rank is the
// bm25 score; lower is a better match.
type SearchResult struct {
	File
	Rank float64
}

// IndexState is the per-workspace incremental indexing marker.
type IndexState struct {
	WorkspaceID    string
	LastCommitTime time.Time
	IndexVersion   int
}

// IndexedFile records how far a log file has been indexed.
type IndexedFile struct {
	WorkspaceID  string
	Path         string
	LastOffset   int64
	Size         int64
	ModifiedTime time.Time

	// Hash fingerprints the file's leading bytes, used to notice a
	// file that was replaced rather than appended to.
	Hash      string
	UpdatedAt time.Time
}

func validateFile(file *File) error {
	if file.Hash == "" {
		return fmt.Errorf("metadata: file %q has no hash", file.VirtualPath)
	}
	if file.Size < 0 {
		return fmt.Errorf("metadata: file %q has negative size %d", file.VirtualPath, file.Size)
	}
	return nil
}

func validateArchive(archive *Archive) error {
	if archive.Hash == "" {
		return fmt.Errorf("metadata: archive %q has no hash", archive.VirtualPath)
	}
	if archive.Status != "" && !archive.Status.Valid() {
		return fmt.Errorf("metadata: archive %q has unknown status %q", archive.VirtualPath, archive.Status)
	}
	return nil
}

// nullableID maps the zero id to SQL NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeFromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
