// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package extraction holds the traversal state for nested archive
// extraction: the per-branch [Context], the pending unit of work
// [Item], and the bounded LIFO [Stack] that replaces recursive descent.
//
// Nesting depth is a data value carried on each item, never Go call
// stack depth. A hostile archive nested ten thousand levels deep costs
// at most [DefaultMaxSize] queued items, and a depth check at pop time
// stops expansion at the configured limit.
//
// The stack is driven by a single traversal goroutine and is not safe
// for concurrent use.
package extraction
