// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/archivist/lib/integrity"
	"github.com/bureau-foundation/archivist/lib/security"
)

// WarningCategory classifies a non-fatal finding during an import.
type WarningCategory string

const (
	DepthLimitReached    WarningCategory = "depth_limit_reached"
	PathShortened        WarningCategory = "path_shortened"
	HighCompressionRatio WarningCategory = "high_compression_ratio"
	FileSkipped          WarningCategory = "file_skipped"
	SecurityEvent        WarningCategory = "security_event"
	ArchiveError         WarningCategory = "archive_error"
	PathResolutionError  WarningCategory = "path_resolution_error"
)

// Warning is one finding that did not stop the import.
type Warning struct {
	Category WarningCategory `json:"category"`
	Message  string          `json:"message"`

	// Path is the virtual path the warning concerns.
	Path string `json:"path"`
}

// Result summarizes one Import.
type Result struct {
	RunID       string `json:"run_id"`
	ArchivePath string `json:"archive_path"`

	// ArchiveHash is the content hash of the top-level archive.
	ArchiveHash string `json:"archive_hash"`

	FilesExtracted    int64 `json:"files_extracted"`
	BytesExtracted    int64 `json:"bytes_extracted"`
	ArchivesProcessed int64 `json:"archives_processed"`

	// MaxDepth is the deepest archive level expanded.
	MaxDepth int `json:"max_depth"`

	// DepthSkips counts archives recorded but left unexpanded at the
	// depth limit.
	DepthSkips int `json:"depth_skips"`

	// Resumed counts entries skipped because a checkpoint from an
	// earlier run had already extracted them.
	Resumed int64 `json:"resumed"`

	DirectoriesCreated int `json:"directories_created"`

	Warnings   []Warning             `json:"warnings"`
	Violations []*security.Violation `json:"-"`

	// Integrity is the post-import verification, nil if it did not run.
	Integrity *integrity.Report `json:"integrity,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Speed is the extraction rate in bytes per second.
func (r *Result) Speed() float64 {
	seconds := r.Duration.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(r.BytesExtracted) / seconds
}

// SpeedString formats Speed for display, e.g. "12 MB/s".
func (r *Result) SpeedString() string {
	return humanize.Bytes(uint64(r.Speed())) + "/s"
}

// Summary is a one-line description for logs and terminals.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d files, %s in %s (%s), depth %d, %d warnings",
		r.FilesExtracted,
		humanize.IBytes(uint64(max(r.BytesExtracted, 0))),
		r.Duration.Round(time.Millisecond),
		r.SpeedString(),
		r.MaxDepth,
		len(r.Warnings),
	)
}

// WarningsIn returns the warnings of one category.
func (r *Result) WarningsIn(category WarningCategory) []Warning {
	var matched []Warning
	for _, warning := range r.Warnings {
		if warning.Category == category {
			matched = append(matched, warning)
		}
	}
	return matched
}

func (r *Result) warn(category WarningCategory, path, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
	})
}
