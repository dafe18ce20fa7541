// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/archivist/lib/archive"
	"github.com/bureau-foundation/archivist/lib/extraction"
	"github.com/bureau-foundation/archivist/lib/security"
)

// Policy is the caller-supplied extraction configuration.
type Policy struct {
	// MaxDepth is the nesting depth at which archives are recorded but
	// no longer expanded.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// MaxFileSize skips any entry larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// MaxTotalSize halts an import once this many bytes have been
	// extracted from it.
	MaxTotalSize int64 `yaml:"max_total_size" json:"max_total_size"`

	BufferSize       int `yaml:"buffer_size" json:"buffer_size"`
	DirBatchSize     int `yaml:"dir_batch_size" json:"dir_batch_size"`
	MaxParallelFiles int `yaml:"max_parallel_files" json:"max_parallel_files"`

	// StackSize bounds pending nested archives.
	StackSize int `yaml:"stack_size" json:"stack_size"`

	Security security.Policy  `yaml:"security" json:"security"`
	Paths    archive.PathRules `yaml:"paths" json:"paths"`
}

// DefaultPolicy returns the built-in extraction limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxDepth:         extraction.DefaultMaxDepth,
		MaxFileSize:      100 << 20,
		MaxTotalSize:     10 * security.GiB,
		BufferSize:       64 << 10,
		DirBatchSize:     10,
		MaxParallelFiles: 4,
		StackSize:        extraction.DefaultMaxSize,
		Security:         security.DefaultPolicy(),
		Paths:            archive.DefaultPathRules(),
	}
}

// PolicyError rejects one policy field.
type PolicyError struct {
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("extraction policy: %s %s", e.Field, e.Reason)
}

// Validate reports every invalid field, joined.
func (p Policy) Validate() error {
	var errs []error
	positive := []struct {
		field string
		value int64
	}{
		{"max_depth", int64(p.MaxDepth)},
		{"max_file_size", p.MaxFileSize},
		{"max_total_size", p.MaxTotalSize},
		{"buffer_size", int64(p.BufferSize)},
		{"dir_batch_size", int64(p.DirBatchSize)},
		{"max_parallel_files", int64(p.MaxParallelFiles)},
		{"stack_size", int64(p.StackSize)},
	}
	for _, check := range positive {
		if check.value <= 0 {
			errs = append(errs, &PolicyError{Field: check.field, Reason: "must be greater than zero"})
		}
	}
	if p.MaxFileSize > p.MaxTotalSize && p.MaxTotalSize > 0 {
		errs = append(errs, &PolicyError{Field: "max_file_size", Reason: "must not exceed max_total_size"})
	}
	if err := p.Security.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
