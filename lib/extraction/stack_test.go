// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package extraction

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStackLIFO(t *testing.T) {
	stack := NewStack(10)
	for i := range 5 {
		if err := stack.Push(Item{ArchivePath: fmt.Sprintf("archive-%d.zip", i), Depth: i}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if stack.Len() != 5 {
		t.Fatalf("Len = %d, want 5", stack.Len())
	}

	for i := 4; i >= 0; i-- {
		item, ok := stack.Pop()
		if !ok {
			t.Fatalf("Pop returned empty with %d items expected", i+1)
		}
		want := fmt.Sprintf("archive-%d.zip", i)
		if item.ArchivePath != want {
			t.Errorf("Pop = %q, want %q", item.ArchivePath, want)
		}
	}

	if _, ok := stack.Pop(); ok {
		t.Error("Pop on empty stack returned an item")
	}
	if !stack.IsEmpty() {
		t.Error("IsEmpty = false after draining")
	}
}

func TestStackInterleavedPushPop(t *testing.T) {
	stack := NewStack(0)
	push := func(name string) {
		t.Helper()
		if err := stack.Push(Item{ArchivePath: name}); err != nil {
			t.Fatalf("Push(%s): %v", name, err)
		}
	}
	pop := func() string {
		t.Helper()
		item, ok := stack.Pop()
		if !ok {
			t.Fatal("unexpected empty stack")
		}
		return item.ArchivePath
	}

	push("a")
	push("b")
	if got := pop(); got != "b" {
		t.Errorf("pop = %q, want b", got)
	}
	push("c")
	if got := pop(); got != "c" {
		t.Errorf("pop = %q, want c", got)
	}
	if got := pop(); got != "a" {
		t.Errorf("pop = %q, want a", got)
	}
}

func TestStackCapacity(t *testing.T) {
	const capacity = 3
	stack := NewStack(capacity)
	for i := range capacity {
		if err := stack.Push(Item{ArchivePath: fmt.Sprintf("a%d", i)}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	err := stack.Push(Item{ArchivePath: "overflow.zip"})
	if err == nil {
		t.Fatal("Push beyond capacity succeeded")
	}
	if !errors.Is(err, ErrStackFull) {
		t.Errorf("error %v does not wrap ErrStackFull", err)
	}
	var capacityError *CapacityError
	if !errors.As(err, &capacityError) {
		t.Fatalf("error %T is not *CapacityError", err)
	}
	if capacityError.Capacity != capacity || capacityError.ArchivePath != "overflow.zip" {
		t.Errorf("CapacityError = %+v", capacityError)
	}
	if stack.Len() != capacity {
		t.Errorf("Len after rejected push = %d, want %d", stack.Len(), capacity)
	}

	item, _ := stack.Pop()
	if item.ArchivePath != "a2" {
		t.Errorf("top after rejected push = %q, want a2", item.ArchivePath)
	}
}

func TestStackDefaultCapacity(t *testing.T) {
	stack := NewStack(-1)
	if stack.MaxSize() != DefaultMaxSize {
		t.Fatalf("MaxSize = %d, want %d", stack.MaxSize(), DefaultMaxSize)
	}
	for i := range DefaultMaxSize {
		if err := stack.Push(Item{Depth: i}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if err := stack.Push(Item{}); !errors.Is(err, ErrStackFull) {
		t.Fatalf("push %d: err = %v, want ErrStackFull", DefaultMaxSize+1, err)
	}
	if stack.Len() != DefaultMaxSize {
		t.Errorf("Len = %d, want %d", stack.Len(), DefaultMaxSize)
	}
}

func TestIsDepthLimitReached(t *testing.T) {
	for maxDepth := 1; maxDepth <= 20; maxDepth++ {
		for depth := 0; depth <= 25; depth++ {
			got := IsDepthLimitReached(depth, maxDepth)
			want := depth >= maxDepth
			if got != want {
				t.Errorf("IsDepthLimitReached(%d, %d) = %v, want %v", depth, maxDepth, got, want)
			}
		}
	}
}

func TestDepthLimitDoesNotBlockSiblings(t *testing.T) {
	const maxDepth = 2
	stack := NewStack(0)
	root := NewContext("ws", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	deep := root.CreateChild("a.zip").CreateChild("b.zip")

	// The deep branch is pushed first so it is popped last; a shallow
	// sibling on top must still be expanded.
	for _, item := range []Item{
		{ArchivePath: "deep.zip", Depth: deep.Depth, Context: deep},
		{ArchivePath: "shallow.zip", Depth: 1, Context: root.CreateChild("a.zip")},
		{ArchivePath: "deeper.zip", Depth: 3, Context: deep.CreateChild("c.zip")},
	} {
		if err := stack.Push(item); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var expanded, skipped []string
	for !stack.IsEmpty() {
		item, _ := stack.Pop()
		if IsDepthLimitReached(item.Depth, maxDepth) {
			skipped = append(skipped, item.ArchivePath)
			continue
		}
		expanded = append(expanded, item.ArchivePath)
	}

	if len(expanded) != 1 || expanded[0] != "shallow.zip" {
		t.Errorf("expanded = %v, want [shallow.zip]", expanded)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want two deep items", skipped)
	}
}
