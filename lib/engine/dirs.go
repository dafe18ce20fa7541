// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// dirBatcher creates directories in batches, issuing one MkdirAll per
// unique directory no matter how many entries share it. Not safe for
// concurrent use.
type dirBatcher struct {
	batchSize int
	created   map[string]bool
	pending   []string
	queued    map[string]bool
	calls     int
}

func newDirBatcher(batchSize int) *dirBatcher {
	return &dirBatcher{
		batchSize: max(batchSize, 1),
		created:   make(map[string]bool),
		queued:    make(map[string]bool),
	}
}

// Add queues dir and flushes once a full batch is queued.
func (b *dirBatcher) Add(dir string) error {
	dir = filepath.Clean(dir)
	if b.created[dir] || b.queued[dir] {
		return nil
	}
	b.queued[dir] = true
	b.pending = append(b.pending, dir)
	if len(b.pending) >= b.batchSize {
		return b.Flush()
	}
	return nil
}

// Ensure makes dir exist now, flushing whatever else is queued.
func (b *dirBatcher) Ensure(dir string) error {
	dir = filepath.Clean(dir)
	if b.created[dir] {
		return nil
	}
	if err := b.Add(dir); err != nil {
		return err
	}
	return b.Flush()
}

// Flush creates every queued directory. Directories that fail stay
// uncreated and are reported together.
func (b *dirBatcher) Flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	pending := b.pending
	b.pending = nil
	clear(b.queued)

	// Deepest first: creating a/b/c also creates a and a/b.
	slices.SortFunc(pending, func(x, y string) int { return len(y) - len(x) })

	var errs []error
	for _, dir := range pending {
		if b.created[dir] {
			continue
		}
		b.calls++
		if err := os.MkdirAll(dir, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("engine: creating %s: %w", dir, err))
			continue
		}
		for parent := dir; !b.created[parent]; parent = filepath.Dir(parent) {
			b.created[parent] = true
			if filepath.Dir(parent) == parent {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Created returns the number of MkdirAll calls issued.
func (b *dirBatcher) Created() int { return b.calls }
