// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/archivist/lib/clock"
)

var testEpoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, files, bytes int64) (*Manager, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(testEpoch)
	manager, err := NewManager(Config{
		Dir:          filepath.Join(t.TempDir(), "checkpoints"),
		Enabled:      true,
		FileInterval: files,
		ByteInterval: bytes,
		Clock:        fakeClock,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager, fakeClock
}

func TestSaveLoadDelete(t *testing.T) {
	manager, fakeClock := newTestManager(t, 0, 0)

	checkpoint := manager.Begin("ws", "/data/bundle.zip", "run-1")
	checkpoint.MarkExtracted("/ws/target/a.txt", 10)
	checkpoint.MarkExtracted("/ws/target/b.txt", 20)
	checkpoint.ObserveDepth(2)
	checkpoint.RecordError()

	fakeClock.Advance(time.Second)
	if err := manager.Save(checkpoint); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !manager.Exists("ws", "/data/bundle.zip") {
		t.Fatal("Exists = false after Save")
	}

	loaded, err := manager.Load("ws", "/data/bundle.zip")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ExtractedFiles != 2 || loaded.ExtractedBytes != 30 {
		t.Errorf("totals = (%d, %d), want (2, 30)", loaded.ExtractedFiles, loaded.ExtractedBytes)
	}
	if loaded.MaxDepth != 2 || loaded.ErrorCount != 1 || loaded.LastPath != "/ws/target/b.txt" {
		t.Errorf("metrics = %+v", loaded)
	}
	if loaded.RunID != "run-1" || loaded.Version != FormatVersion {
		t.Errorf("run/version = (%q, %d)", loaded.RunID, loaded.Version)
	}
	if !loaded.UpdatedAt.Equal(testEpoch.Add(time.Second)) || !loaded.StartedAt.Equal(testEpoch) {
		t.Errorf("times = (%v, %v)", loaded.StartedAt, loaded.UpdatedAt)
	}
	if got := loaded.ExtractedPaths(); len(got) != 2 || got[0] != "/ws/target/a.txt" {
		t.Errorf("ExtractedPaths = %v", got)
	}

	if err := manager.Delete("ws", "/data/bundle.zip"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if manager.Exists("ws", "/data/bundle.zip") {
		t.Error("Exists = true after Delete")
	}
	if _, err := manager.Load("ws", "/data/bundle.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete error = %v, want ErrNotFound", err)
	}
	if err := manager.Delete("ws", "/data/bundle.zip"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	manager, _ := newTestManager(t, 0, 0)
	for _, key := range [][2]string{{"ws", "a/b"}, {"ws/a", "b"}, {"other", "a/b"}} {
		checkpoint := manager.Begin(key[0], key[1], "run")
		checkpoint.MarkExtracted(key[0]+"|"+key[1], 1)
		if err := manager.Save(checkpoint); err != nil {
			t.Fatalf("Save %v: %v", key, err)
		}
	}
	loaded, err := manager.Load("ws", "a/b")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.IsExtracted("ws|a/b") || len(loaded.Extracted) != 1 {
		t.Errorf("checkpoint for (ws, a/b) holds %v", loaded.Extracted)
	}
}

func TestShouldWriteIntervals(t *testing.T) {
	manager, _ := newTestManager(t, 3, 1000)
	checkpoint := manager.Begin("ws", "a.zip", "run")

	checkpoint.MarkExtracted("1", 10)
	checkpoint.MarkExtracted("2", 10)
	if manager.ShouldWrite(checkpoint) {
		t.Fatal("ShouldWrite after 2 files and 20 bytes")
	}
	checkpoint.MarkExtracted("3", 10)
	if !manager.ShouldWrite(checkpoint) {
		t.Fatal("ShouldWrite false after crossing the file interval")
	}
	saved, err := manager.SaveIfDue(checkpoint)
	if err != nil || !saved {
		t.Fatalf("SaveIfDue = (%v, %v), want a save", saved, err)
	}
	if manager.ShouldWrite(checkpoint) {
		t.Fatal("ShouldWrite still true right after saving")
	}

	// One large file crosses the byte interval on its own.
	checkpoint.MarkExtracted("4", 1000)
	if !manager.ShouldWrite(checkpoint) {
		t.Fatal("ShouldWrite false after crossing the byte interval")
	}
}

func TestMarkExtractedIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t, 0, 0)
	checkpoint := manager.Begin("ws", "a.zip", "run")
	checkpoint.MarkExtracted("x", 100)
	checkpoint.MarkExtracted("x", 100)
	if checkpoint.ExtractedFiles != 1 || checkpoint.ExtractedBytes != 100 {
		t.Errorf("totals = (%d, %d), want (1, 100)", checkpoint.ExtractedFiles, checkpoint.ExtractedBytes)
	}
}

func TestResumeSkipsExactlyTheMarkedFiles(t *testing.T) {
	manager, _ := newTestManager(t, 0, 0)

	const total, done = 10, 4
	var targets []string
	for i := range total {
		targets = append(targets, fmt.Sprintf("/ws/target/file-%02d.log", i))
	}

	first := manager.Begin("ws", "logs.tar.gz", "run-1")
	for _, target := range targets[:done] {
		first.MarkExtracted(target, 100)
	}
	if err := manager.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resumed, wasResumed, err := manager.Resume("ws", "logs.tar.gz", "run-2")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !wasResumed {
		t.Fatal("Resume did not find the checkpoint")
	}
	if resumed.RunID != "run-2" {
		t.Errorf("RunID = %q, want the new run", resumed.RunID)
	}

	skipped, processed := 0, 0
	for _, target := range targets {
		if resumed.IsExtracted(target) {
			skipped++
			continue
		}
		processed++
		resumed.MarkExtracted(target, 100)
	}
	if skipped != done || processed != total-done {
		t.Errorf("skipped %d and processed %d, want %d and %d", skipped, processed, done, total-done)
	}
	if resumed.ExtractedFiles != total || resumed.ExtractedBytes != total*100 {
		t.Errorf("totals = (%d, %d), want (%d, %d)", resumed.ExtractedFiles, resumed.ExtractedBytes, total, total*100)
	}
}

func TestResumeWithoutCheckpointBegins(t *testing.T) {
	manager, _ := newTestManager(t, 0, 0)
	checkpoint, resumed, err := manager.Resume("ws", "new.zip", "run")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed || checkpoint.ExtractedFiles != 0 {
		t.Errorf("Resume on a fresh key = (%+v, %v)", checkpoint, resumed)
	}
}

func TestResumeReplacesCorruptCheckpoint(t *testing.T) {
	manager, _ := newTestManager(t, 0, 0)
	if err := os.WriteFile(manager.path("ws", "a.zip"), []byte("not cbor"), 0o644); err != nil {
		t.Fatal(err)
	}
	checkpoint, resumed, err := manager.Resume("ws", "a.zip", "run")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed || checkpoint == nil {
		t.Errorf("corrupt checkpoint was resumed")
	}
}

func TestListIncomplete(t *testing.T) {
	manager, fakeClock := newTestManager(t, 0, 0)

	for _, archive := range []string{"second.zip", "first.zip"} {
		checkpoint := manager.Begin("ws", archive, "run")
		if err := manager.Save(checkpoint); err != nil {
			t.Fatalf("Save: %v", err)
		}
		fakeClock.Advance(time.Minute)
	}
	// Noise the listing must ignore.
	if err := os.WriteFile(filepath.Join(manager.dir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(manager.dir, "broken"+fileSuffix), []byte{0xff}, 0o644); err != nil {
		t.Fatal(err)
	}

	incomplete, err := manager.ListIncomplete()
	if err != nil {
		t.Fatalf("ListIncomplete: %v", err)
	}
	if len(incomplete) != 2 {
		t.Fatalf("ListIncomplete returned %d, want 2", len(incomplete))
	}
	if incomplete[0].ArchivePath != "second.zip" || incomplete[1].ArchivePath != "first.zip" {
		t.Errorf("order = [%s, %s], want oldest update first", incomplete[0].ArchivePath, incomplete[1].ArchivePath)
	}
}

func TestDisabledManagerIsNoOp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	manager, err := NewManager(Config{Dir: dir, Clock: clock.Fake(testEpoch)})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if manager.Enabled() {
		t.Fatal("Enabled = true")
	}

	checkpoint := manager.Begin("ws", "a.zip", "run")
	for i := range 1000 {
		checkpoint.MarkExtracted(fmt.Sprint(i), 1<<20)
	}
	if manager.ShouldWrite(checkpoint) {
		t.Error("disabled manager wants to write")
	}
	if err := manager.Save(checkpoint); err != nil {
		t.Errorf("Save: %v", err)
	}
	if _, err := manager.Load("ws", "a.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("disabled manager touched %s", dir)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Enabled: true, Dir: t.TempDir()}); err == nil {
		t.Error("missing Clock accepted")
	}
	if _, err := NewManager(Config{Enabled: true, Clock: clock.Fake(testEpoch)}); err == nil {
		t.Error("enabled without Dir accepted")
	}
	if _, err := NewManager(Config{Clock: clock.Fake(testEpoch), FileInterval: -1}); err == nil {
		t.Error("negative interval accepted")
	}
}
