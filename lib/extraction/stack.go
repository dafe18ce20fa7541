// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package extraction

import (
	"errors"
	"fmt"
)

// DefaultMaxSize is the stack capacity used when NewStack is given a
// non-positive size.
const DefaultMaxSize = 1000

// DefaultMaxDepth is the nesting limit used by extraction policies that
// do not set one.
const DefaultMaxDepth = 10

// ErrStackFull is returned (wrapped in a *CapacityError) when a push
// would exceed the stack's capacity.
var ErrStackFull = errors.New("extraction: stack full")

// CapacityError reports a rejected push. The caller should treat the
// subtree rooted at ArchivePath as too deeply or broadly nested.
type CapacityError struct {
	Capacity    int
	ArchivePath string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("extraction: stack full (capacity %d), cannot queue %s", e.Capacity, e.ArchivePath)
}

func (e *CapacityError) Unwrap() error { return ErrStackFull }

// Stack is a bounded last-in-first-out queue of pending items.
type Stack struct {
	items   []Item
	maxSize int
}

// NewStack returns an empty stack holding at most maxSize items. A
// non-positive maxSize selects DefaultMaxSize.
func NewStack(maxSize int) *Stack {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Stack{maxSize: maxSize}
}

// Push appends item. It fails with a *CapacityError, leaving the stack
// unchanged, when the stack already holds MaxSize items.
func (s *Stack) Push(item Item) error {
	if len(s.items) >= s.maxSize {
		return &CapacityError{Capacity: s.maxSize, ArchivePath: item.ArchivePath}
	}
	s.items = append(s.items, item)
	return nil
}

// Pop removes and returns the most recently pushed item. The second
// result is false when the stack is empty.
func (s *Stack) Pop() (Item, bool) {
	if len(s.items) == 0 {
		return Item{}, false
	}
	last := len(s.items) - 1
	item := s.items[last]
	s.items[last] = Item{}
	s.items = s.items[:last]
	return item, true
}

// Len returns the number of queued items.
func (s *Stack) Len() int { return len(s.items) }

// IsEmpty reports whether no items are queued.
func (s *Stack) IsEmpty() bool { return len(s.items) == 0 }

// MaxSize returns the stack capacity.
func (s *Stack) MaxSize() int { return s.maxSize }

// IsDepthLimitReached reports whether an archive at depth must not be
// expanded under maxDepth. The archive itself is still recorded; only
// its contents are left unopened.
func IsDepthLimitReached(depth, maxDepth int) bool {
	return depth >= maxDepth
}
