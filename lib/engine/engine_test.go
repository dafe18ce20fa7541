// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/archivist/lib/cas"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/extraction"
	"github.com/bureau-foundation/archivist/lib/metadata"
	"github.com/bureau-foundation/archivist/lib/security"
	"github.com/bureau-foundation/archivist/lib/testutil"
	"github.com/bureau-foundation/archivist/lib/workspace"
)

type fixture struct {
	id        string
	workspace *workspace.Workspace
	engine    *Engine
	inputs    string
}

func newFixture(t *testing.T, modify func(*Config)) *fixture {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.DiscardHandler)
	id := testutil.UniqueID("case")
	ws, err := workspace.Open(workspace.Config{
		Dir:         filepath.Join(t.TempDir(), id),
		ID:          id,
		Clock:       fakeClock,
		Logger:      logger,
		Checkpoints: workspace.CheckpointConfig{Enabled: true},
	})
	if err != nil {
		t.Fatalf("workspace.Open: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	cfg := Config{
		Workspace:  ws,
		Policy:     DefaultPolicy(),
		Clock:      fakeClock,
		Logger:     logger,
		SpaceCheck: func(string, int64) error { return nil },
	}
	if modify != nil {
		modify(&cfg)
	}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{id: id, workspace: ws, engine: engine, inputs: t.TempDir()}
}

func (f *fixture) write(t *testing.T, name string, content []byte) string {
	t.Helper()
	return testutil.WriteFixture(t, f.inputs, name, content)
}

func (f *fixture) importOK(t *testing.T, path string) *Result {
	t.Helper()
	result, err := f.engine.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import(%s): %v", filepath.Base(path), err)
	}
	return result
}

func (f *fixture) archive(t *testing.T, virtualPath string) metadata.Archive {
	t.Helper()
	record, err := f.workspace.Metadata.ArchiveByPath(context.Background(), virtualPath)
	if err != nil {
		t.Fatalf("ArchiveByPath(%s): %v", virtualPath, err)
	}
	return record
}

func categories(result *Result) map[WarningCategory]int {
	counts := make(map[WarningCategory]int)
	for _, warning := range result.Warnings {
		counts[warning.Category]++
	}
	return counts
}

func TestImportZip(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "logs.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "app/", Dir: true},
		{Name: "app/server.log", Content: []byte("GET /health 200\n")},
		{Name: "app/worker.log", Content: []byte("job 17 done\n")},
		{Name: "copy/server.log", Content: []byte("GET /health 200\n")},
		{Name: "app/current", Symlink: "server.log"},
	}))

	result := f.importOK(t, path)

	if result.FilesExtracted != 3 {
		t.Errorf("FilesExtracted = %d, want 3", result.FilesExtracted)
	}
	if result.BytesExtracted != 16+12+16 {
		t.Errorf("BytesExtracted = %d, want 44", result.BytesExtracted)
	}
	if result.ArchivesProcessed != 1 || result.MaxDepth != 0 {
		t.Errorf("ArchivesProcessed = %d, MaxDepth = %d", result.ArchivesProcessed, result.MaxDepth)
	}
	if result.RunID == "" {
		t.Error("RunID not set")
	}
	if got := categories(result)[FileSkipped]; got != 1 {
		t.Errorf("FileSkipped warnings = %d, want 1 for the symlink", got)
	}
	if result.DirectoriesCreated == 0 || result.DirectoriesCreated > 3 {
		t.Errorf("DirectoriesCreated = %d, want between 1 and 3", result.DirectoriesCreated)
	}

	ctx := context.Background()
	count, err := f.workspace.Metadata.FileCount(ctx)
	if err != nil {
		t.Fatalf("FileCount: %v", err)
	}
	if count != 2 {
		t.Errorf("FileCount = %d, want 2 distinct contents", count)
	}

	root := f.archive(t, "logs.zip")
	if root.Status != metadata.StatusCompleted {
		t.Errorf("archive status = %s, want completed", root.Status)
	}
	if root.Type != "zip" || root.Depth != 0 || root.Hash != result.ArchiveHash {
		t.Errorf("archive record = %+v", root)
	}

	file, err := f.workspace.Metadata.FileByPath(ctx, "logs.zip/app/worker.log")
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if file.ParentArchiveID != root.ID || file.OriginalName != "worker.log" || file.MIMEType != "text/plain" {
		t.Errorf("file record = %+v", file)
	}
	content, err := f.workspace.Objects.Read(file.Hash)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(content) != "job 17 done\n" {
		t.Errorf("stored content = %q", content)
	}

	target := filepath.Join(f.workspace.ExtractDir(), "logs-"+result.ArchiveHash[:12], "app", "worker.log")
	if _, err := os.Stat(target); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(filepath.Dir(target), "current")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("symlink was materialized: %v", err)
	}

	if result.Integrity == nil || !result.Integrity.IsValid() {
		t.Fatalf("post-import integrity = %+v", result.Integrity)
	}
	if result.Integrity.Total != 3 {
		t.Errorf("integrity total = %d, want 2 files + 1 archive", result.Integrity.Total)
	}
	if f.workspace.Checkpoints.Exists(f.id, path) {
		t.Error("checkpoint left behind after a successful import")
	}
}

func TestImportSingleStream(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "service.log.gz", testutil.GzipBytes(t, []byte("line one\nline two\n")))

	result := f.importOK(t, path)
	if result.FilesExtracted != 1 {
		t.Fatalf("FilesExtracted = %d, want 1", result.FilesExtracted)
	}
	file, err := f.workspace.Metadata.FileByPath(context.Background(), "service.log.gz/service.log")
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if file.Size != 18 {
		t.Errorf("size = %d, want 18", file.Size)
	}
	if f.archive(t, "service.log.gz").Type != "gz" {
		t.Errorf("archive type = %s", f.archive(t, "service.log.gz").Type)
	}
}

func TestImportSevenZipAndRar(t *testing.T) {
	for _, test := range []struct {
		fixture  string
		format   string
		wantText string
	}{
		{"sample.7z", "7z", "quarterly report body\n"},
		{"sample.rar", "rar", "rar report body\n"},
	} {
		t.Run(test.format, func(t *testing.T) {
			f := newFixture(t, nil)
			content, err := os.ReadFile(filepath.Join("..", "archive", "testdata", test.fixture))
			if err != nil {
				t.Fatalf("reading fixture: %v", err)
			}
			path := f.write(t, test.fixture, content)

			result := f.importOK(t, path)
			if result.FilesExtracted != 2 || len(result.Violations) != 0 {
				t.Fatalf("files = %d, violations = %v, warnings = %v",
					result.FilesExtracted, result.Violations, result.Warnings)
			}
			record := f.archive(t, test.fixture)
			if record.Type != test.format || record.Status != metadata.StatusCompleted {
				t.Errorf("archive = %+v", record)
			}
			file, err := f.workspace.Metadata.FileByPath(context.Background(), test.fixture+"/docs/report.txt")
			if err != nil {
				t.Fatalf("FileByPath: %v", err)
			}
			if want := cas.ComputeHash([]byte(test.wantText)); file.Hash != want {
				t.Errorf("report hash = %s, want %s", file.Hash, want)
			}
		})
	}
}

func TestImportNestedArchives(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.MaxDepth = 2 })
	deep := testutil.ZipBytes(t, []testutil.File{{Name: "leaf.txt", Content: []byte("leaf")}})
	inner := testutil.TarGzBytes(t, []testutil.File{
		{Name: "data.txt", Content: []byte("inner data")},
		{Name: "deep.zip", Content: deep},
	})
	path := f.write(t, "outer.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "top.txt", Content: []byte("top")},
		{Name: "inner.tar.gz", Content: inner},
	}))

	result := f.importOK(t, path)

	if result.FilesExtracted != 2 {
		t.Errorf("FilesExtracted = %d, want top.txt and data.txt", result.FilesExtracted)
	}
	if result.MaxDepth != 1 {
		t.Errorf("MaxDepth = %d, want 1", result.MaxDepth)
	}
	if result.DepthSkips != 1 || categories(result)[DepthLimitReached] != 1 {
		t.Errorf("DepthSkips = %d, warnings = %v", result.DepthSkips, result.Warnings)
	}

	outer := f.archive(t, "outer.zip")
	innerRecord := f.archive(t, "outer.zip/inner.tar.gz")
	deepRecord := f.archive(t, "outer.zip/inner.tar.gz/deep.zip")

	if innerRecord.ParentArchiveID != outer.ID || innerRecord.Depth != 1 || innerRecord.Type != "tar.gz" {
		t.Errorf("inner record = %+v", innerRecord)
	}
	if innerRecord.Status != metadata.StatusCompleted {
		t.Errorf("inner status = %s, want completed", innerRecord.Status)
	}
	if deepRecord.ParentArchiveID != innerRecord.ID || deepRecord.Depth != 2 {
		t.Errorf("deep record = %+v", deepRecord)
	}
	if deepRecord.Status != metadata.StatusPending {
		t.Errorf("depth-limited archive status = %s, want pending", deepRecord.Status)
	}

	ctx := context.Background()
	files, err := f.workspace.Metadata.FilesByArchive(ctx, innerRecord.ID)
	if err != nil {
		t.Fatalf("FilesByArchive: %v", err)
	}
	if len(files) != 1 || files[0].VirtualPath != "outer.zip/inner.tar.gz/data.txt" || files[0].Depth != 1 {
		t.Errorf("inner files = %+v", files)
	}
	children, err := f.workspace.Metadata.ArchiveChildren(ctx, outer.ID)
	if err != nil {
		t.Fatalf("ArchiveChildren: %v", err)
	}
	if len(children) != 1 || children[0].ID != innerRecord.ID {
		t.Errorf("outer children = %+v", children)
	}

	target := filepath.Join(f.workspace.ExtractDir(), "outer-"+result.ArchiveHash[:12], "inner", "data.txt")
	if content, err := os.ReadFile(target); err != nil || string(content) != "inner data" {
		t.Errorf("nested file on disk = %q, %v", content, err)
	}
	if !f.workspace.Objects.Exists(deepRecord.Hash) {
		t.Error("depth-limited archive bytes not stored")
	}
	if !result.Integrity.IsValid() || result.Integrity.Total != 5 {
		t.Errorf("integrity = %+v, want 2 files + 3 archives valid", result.Integrity)
	}
}

func TestDepthLimitDoesNotBlockSiblings(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.MaxDepth = 2 })
	tooDeep := testutil.ZipBytes(t, []testutil.File{{Name: "never.txt", Content: []byte("never")}})
	branchA := testutil.ZipBytes(t, []testutil.File{{Name: "b.zip", Content: tooDeep}})
	branchC := testutil.ZipBytes(t, []testutil.File{{Name: "c.txt", Content: []byte("sibling branch")}})
	path := f.write(t, "root.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "a.zip", Content: branchA},
		{Name: "c.zip", Content: branchC},
		{Name: "sibling.txt", Content: []byte("top level")},
	}))

	result := f.importOK(t, path)

	ctx := context.Background()
	for _, virtualPath := range []string{"root.zip/sibling.txt", "root.zip/c.zip/c.txt"} {
		if _, err := f.workspace.Metadata.FileByPath(ctx, virtualPath); err != nil {
			t.Errorf("%s not recorded: %v", virtualPath, err)
		}
	}
	if _, err := f.workspace.Metadata.FileByPath(ctx, "root.zip/a.zip/b.zip/never.txt"); !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("content below the depth limit was extracted: %v", err)
	}
	if result.DepthSkips != 1 {
		t.Errorf("DepthSkips = %d, want 1", result.DepthSkips)
	}
}

func TestCompressionBombHaltsOnlyItsArchive(t *testing.T) {
	f := newFixture(t, nil)
	bomb := testutil.ZipBytes(t, []testutil.File{
		{Name: "zeros.bin", Content: bytes.Repeat([]byte{0}, 1<<20)},
	})
	path := f.write(t, "upload.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "bomb.zip", Content: bomb},
		{Name: "notes.txt", Content: []byte("unrelated")},
	}))

	result := f.importOK(t, path)

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %v, want 1", result.Violations)
	}
	if result.Violations[0].Kind != security.ExcessiveCompressionRatio {
		t.Errorf("violation kind = %s", result.Violations[0].Kind)
	}
	if categories(result)[SecurityEvent] != 1 {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if categories(result)[HighCompressionRatio] == 0 {
		t.Error("listing scan did not flag the bomb")
	}
	if status := f.archive(t, "upload.zip/bomb.zip").Status; status != metadata.StatusFailed {
		t.Errorf("bomb status = %s, want failed", status)
	}
	if status := f.archive(t, "upload.zip").Status; status != metadata.StatusCompleted {
		t.Errorf("parent status = %s, want completed", status)
	}
	if _, err := f.workspace.Metadata.FileByPath(context.Background(), "upload.zip/notes.txt"); err != nil {
		t.Errorf("sibling file not recorded: %v", err)
	}
	target := filepath.Join(f.workspace.ExtractDir(), "upload-"+result.ArchiveHash[:12], "bomb", "zeros.bin")
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("bomb content left on disk: %v", err)
	}
}

func TestStreamBombHalted(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "dump.gz", testutil.GzipBytes(t, bytes.Repeat([]byte{0}, 2<<20)))

	result := f.importOK(t, path)

	if len(result.Violations) != 1 || result.Violations[0].Kind != security.ExcessiveCompressionRatio {
		t.Fatalf("violations = %v", result.Violations)
	}
	if result.FilesExtracted != 0 {
		t.Errorf("FilesExtracted = %d, want 0", result.FilesExtracted)
	}
	if status := f.archive(t, "dump.gz").Status; status != metadata.StatusFailed {
		t.Errorf("status = %s, want failed", status)
	}
}

func TestStreamBombAboveMaxFileSizeHalted(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.MaxFileSize = 1 << 20 })
	path := f.write(t, "dump.gz", testutil.GzipBytes(t, bytes.Repeat([]byte{0}, 2<<20)))

	result := f.importOK(t, path)

	if len(result.Violations) != 1 || result.Violations[0].Kind != security.ExcessiveCompressionRatio {
		t.Fatalf("violations = %v, warnings = %v", result.Violations, result.Warnings)
	}
	if got := categories(result)[FileSkipped]; got != 0 {
		t.Errorf("bomb reported as %d skipped files: %v", got, result.Warnings)
	}
	if status := f.archive(t, "dump.gz").Status; status != metadata.StatusFailed {
		t.Errorf("status = %s, want failed", status)
	}
}

func TestDuplicateEntryNames(t *testing.T) {
	f := newFixture(t, nil)
	first := []byte("first version of the report")
	path := f.write(t, "dup.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "a.txt", Content: first},
		{Name: "a.txt", Content: []byte("second, different content")},
		{Name: "b.txt", Content: []byte("unrelated")},
	}))

	result := f.importOK(t, path)

	if result.FilesExtracted != 2 {
		t.Errorf("FilesExtracted = %d, want 2", result.FilesExtracted)
	}
	skipped := result.WarningsIn(FileSkipped)
	if len(skipped) != 1 || skipped[0].Path != "dup.zip/a.txt" {
		t.Fatalf("FileSkipped warnings = %v", skipped)
	}
	file, err := f.workspace.Metadata.FileByPath(context.Background(), "dup.zip/a.txt")
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if want := cas.ComputeHash(first); file.Hash != want {
		t.Errorf("recorded hash = %s, want hash of the first entry %s", file.Hash, want)
	}
	if parent := f.archive(t, "dup.zip"); file.ParentArchiveID != parent.ID {
		t.Errorf("ParentArchiveID = %d, want %d", file.ParentArchiveID, parent.ID)
	}
	target := filepath.Join(f.workspace.ExtractDir(), "dup-"+result.ArchiveHash[:12], "a.txt")
	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if !bytes.Equal(content, first) {
		t.Errorf("extracted content = %q, want %q", content, first)
	}
	if result.Integrity == nil || !result.Integrity.IsValid() {
		t.Errorf("integrity = %+v", result.Integrity)
	}
}

func TestMaxFileSizeSkips(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.MaxFileSize = 10 })
	zipPath := f.write(t, "mixed.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "small.txt", Content: []byte("tiny")},
		{Name: "large.txt", Content: []byte("twenty bytes of text")},
	}))
	streamPath := f.write(t, "large.txt.zst", testutil.ZstdBytes(t, []byte("twenty bytes of text")))

	result := f.importOK(t, zipPath)
	if result.FilesExtracted != 1 || categories(result)[FileSkipped] != 1 {
		t.Errorf("zip: files = %d, warnings = %v", result.FilesExtracted, result.Warnings)
	}

	result = f.importOK(t, streamPath)
	if result.FilesExtracted != 0 || categories(result)[FileSkipped] != 1 {
		t.Errorf("stream: files = %d, warnings = %v", result.FilesExtracted, result.Warnings)
	}
	target := filepath.Join(f.workspace.ExtractDir(), "large.txt-"+result.ArchiveHash[:12], "large.txt")
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("oversized stream output left on disk: %v", err)
	}
}

func TestUnsafeEntryNames(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "names.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "CON.txt", Content: []byte("device")},
		{Name: "bad\x01name.txt", Content: []byte("control")},
		{Name: "ok.txt", Content: []byte("fine")},
	}))

	result := f.importOK(t, path)
	if got := categories(result)[PathResolutionError]; got != 2 {
		t.Errorf("PathResolutionError warnings = %d, want 2: %v", got, result.Warnings)
	}
	if result.FilesExtracted != 1 {
		t.Errorf("FilesExtracted = %d, want 1", result.FilesExtracted)
	}
}

func TestLongNamesShortened(t *testing.T) {
	f := newFixture(t, nil)
	long := strings.Repeat("n", 300) + ".log"
	path := f.write(t, "long.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: long, Content: []byte("long name")},
	}))

	result := f.importOK(t, path)
	if categories(result)[PathShortened] != 1 {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if result.FilesExtracted != 1 {
		t.Errorf("FilesExtracted = %d, want 1", result.FilesExtracted)
	}
}

func TestResumeSkipsExtractedEntries(t *testing.T) {
	f := newFixture(t, nil)
	var files []testutil.File
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		files = append(files, testutil.File{Name: name, Content: []byte("content of " + name)})
	}
	path := f.write(t, "batch.zip", testutil.ZipBytes(t, files))

	hash, err := cas.ComputeHashFile(path)
	if err != nil {
		t.Fatalf("ComputeHashFile: %v", err)
	}
	targetDir := filepath.Join(f.workspace.ExtractDir(), "batch-"+hash[:12])
	earlier := f.workspace.Checkpoints.Begin(f.id, path, "earlier-run")
	for _, name := range []string{"a.txt", "c.txt"} {
		earlier.MarkExtracted(filepath.Join(targetDir, name), 14)
	}
	if err := f.workspace.Checkpoints.Save(earlier); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result := f.importOK(t, path)
	if result.Resumed != 2 {
		t.Errorf("Resumed = %d, want 2", result.Resumed)
	}
	if result.FilesExtracted != 3 {
		t.Errorf("FilesExtracted = %d, want 3", result.FilesExtracted)
	}
	if f.workspace.Checkpoints.Exists(f.id, path) {
		t.Error("checkpoint not removed after completion")
	}
}

func TestStackExhaustionIsFatalAndResumable(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.StackSize = 1 })
	nested := testutil.ZipBytes(t, []testutil.File{{Name: "x.txt", Content: []byte("x")}})
	path := f.write(t, "wide.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "first.txt", Content: []byte("first")},
		{Name: "one.zip", Content: nested},
		{Name: "two.zip", Content: nested},
	}))

	result, err := f.engine.Import(context.Background(), path)
	if !errors.Is(err, extraction.ErrStackFull) {
		t.Fatalf("Import error = %v, want ErrStackFull", err)
	}
	if result == nil || result.FilesExtracted != 1 {
		t.Fatalf("partial result = %+v", result)
	}
	if status := f.archive(t, "wide.zip").Status; status != metadata.StatusFailed {
		t.Errorf("status = %s, want failed", status)
	}
	if !f.workspace.Checkpoints.Exists(f.id, path) {
		t.Fatal("checkpoint not saved after a fatal error")
	}

	policy := f.engine.Policy()
	policy.StackSize = 10
	if err := f.engine.SetPolicy(policy); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	result = f.importOK(t, path)
	if result.Resumed != 1 {
		t.Errorf("Resumed = %d, want 1 (first.txt)", result.Resumed)
	}
	if status := f.archive(t, "wide.zip").Status; status != metadata.StatusCompleted {
		t.Errorf("status after resume = %s, want completed", status)
	}
}

func TestCriticalViolation(t *testing.T) {
	archiveFiles := []testutil.File{
		{Name: "one.txt", Content: []byte("8 bytes.")},
		{Name: "two.txt", Content: []byte("8 bytes!")},
	}
	limit := func(cfg *Config) {
		cfg.Policy.MaxFileSize = 10
		cfg.Policy.MaxTotalSize = 10
	}

	t.Run("isolated", func(t *testing.T) {
		f := newFixture(t, limit)
		result := f.importOK(t, f.write(t, "pair.zip", testutil.ZipBytes(t, archiveFiles)))
		if len(result.Violations) != 1 || result.Violations[0].Kind != security.CumulativeSizeExceeded {
			t.Fatalf("violations = %v", result.Violations)
		}
		if result.FilesExtracted != 1 {
			t.Errorf("FilesExtracted = %d, want 1", result.FilesExtracted)
		}
	})

	t.Run("abort", func(t *testing.T) {
		f := newFixture(t, func(cfg *Config) {
			limit(cfg)
			cfg.AbortOnCritical = true
		})
		_, err := f.engine.Import(context.Background(), f.write(t, "pair.zip", testutil.ZipBytes(t, archiveFiles)))
		var violation *security.Violation
		if !errors.As(err, &violation) || !violation.IsCritical() {
			t.Fatalf("Import error = %v, want a critical *security.Violation", err)
		}
	})
}

func TestWorkspaceSizeLimit(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Policy.Security.MaxWorkspaceSize = 1 })
	first := f.write(t, "first.gz", testutil.GzipBytes(t, []byte("first")))
	second := f.write(t, "second.gz", testutil.GzipBytes(t, []byte("second")))

	f.importOK(t, first)
	if _, err := f.engine.Import(context.Background(), second); !errors.Is(err, ErrWorkspaceFull) {
		t.Fatalf("second Import error = %v, want ErrWorkspaceFull", err)
	}
}

func TestPreflightFailure(t *testing.T) {
	noSpace := errors.New("no space")
	f := newFixture(t, func(cfg *Config) {
		cfg.SpaceCheck = func(string, int64) error { return noSpace }
	})
	path := f.write(t, "any.gz", testutil.GzipBytes(t, []byte("content")))

	if _, err := f.engine.Import(context.Background(), path); !errors.Is(err, noSpace) {
		t.Fatalf("Import error = %v, want the preflight error", err)
	}
	count, err := f.workspace.Metadata.ArchiveCount(context.Background())
	if err != nil {
		t.Fatalf("ArchiveCount: %v", err)
	}
	if count != 0 {
		t.Errorf("ArchiveCount = %d after a failed preflight", count)
	}
}

func TestImportRejectsUnsupportedInput(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "notes.txt", []byte("just text"))
	if _, err := f.engine.Import(context.Background(), path); err == nil {
		t.Fatal("expected error for a non-archive")
	}
	if _, err := f.engine.Import(context.Background(), f.inputs); err == nil {
		t.Fatal("expected error for a directory")
	}
}

func TestCorruptNestedArchiveIsIsolated(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "outer.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "broken.zip", Content: []byte("this is not a zip file")},
		{Name: "fine.txt", Content: []byte("fine")},
	}))

	result := f.importOK(t, path)
	if categories(result)[ArchiveError] != 1 {
		t.Errorf("warnings = %v, want one archive error", result.Warnings)
	}
	if status := f.archive(t, "outer.zip/broken.zip").Status; status != metadata.StatusFailed {
		t.Errorf("broken status = %s, want failed", status)
	}
	if result.FilesExtracted != 1 {
		t.Errorf("FilesExtracted = %d, want 1", result.FilesExtracted)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	f := newFixture(t, nil)
	bad := DefaultPolicy()
	bad.MaxParallelFiles = 0
	_, err := New(Config{
		Workspace: f.workspace,
		Policy:    bad,
		Clock:     clock.Fake(time.Unix(0, 0)),
		Logger:    slog.New(slog.DiscardHandler),
	})
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Field != "max_parallel_files" {
		t.Fatalf("New error = %v, want PolicyError for max_parallel_files", err)
	}
	if err := f.engine.SetPolicy(bad); err == nil {
		t.Error("SetPolicy accepted an invalid policy")
	}
}

func TestImportCancelled(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "slow.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "a.txt", Content: []byte("a")},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Import(ctx, path)
		done <- err
	}()
	err := testutil.RequireReceive(t, done, 10*time.Second, "waiting for the cancelled import")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Import error = %v, want context.Canceled", err)
	}

	// The workspace lock was released.
	result := f.importOK(t, path)
	if result.FilesExtracted != 1 {
		t.Errorf("FilesExtracted = %d after a cancelled run", result.FilesExtracted)
	}
}
