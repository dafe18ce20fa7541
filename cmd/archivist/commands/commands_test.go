// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/archivist/cmd/archivist/cli"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/config"
	"github.com/bureau-foundation/archivist/lib/testutil"
)

type harness struct {
	app    *App
	stdout *bytes.Buffer
	root   string
	inputs string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	stdout := &bytes.Buffer{}
	plain := cli.PlainStyles()
	return &harness{
		app: &App{
			Stdout:    stdout,
			Clock:     clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
			NewLogger: func(slog.Level) *slog.Logger { return slog.New(slog.DiscardHandler) },
			Styles:    &plain,
		},
		stdout: stdout,
		root:   t.TempDir(),
		inputs: t.TempDir(),
	}
}

// run executes one command line against the harness workspace root
// and returns what it printed.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.stdout.Reset()
	command := h.app.Root()
	command.HelpOutput = &bytes.Buffer{}
	withRoot := append([]string{args[0], "--root", h.root}, args[1:]...)
	err := command.Execute(context.Background(), withRoot)
	return h.stdout.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("archivist %s: %v", strings.Join(args, " "), err)
	}
	return output
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

func TestImportThenQuery(t *testing.T) {
	h := newHarness(t)
	inner := testutil.TarGzBytes(t, []testutil.File{
		{Name: "logs/access-2026.log", Content: []byte("GET / 200\n")},
	})
	archive := testutil.WriteFixture(t, h.inputs, "evidence.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "readme.txt", Content: []byte("case notes")},
		{Name: "bundle.tar.gz", Content: inner},
	}))

	output := h.mustRun(t, "import", archive)
	for _, want := range []string{"evidence.zip  ok", "2 files"} {
		if !strings.Contains(output, want) {
			t.Errorf("import output missing %q:\n%s", want, output)
		}
	}

	files := decode[[]fileView](t, h.mustRun(t, "files", "--json"))
	if len(files) != 2 {
		t.Fatalf("files = %+v, want 2", files)
	}

	matches := decode[[]fileView](t, h.mustRun(t, "search", "--json", "access"))
	if len(matches) != 1 || matches[0].VirtualPath != "evidence.zip/bundle.tar.gz/logs/access-2026.log" {
		t.Errorf("search matches = %+v", matches)
	}
	if matches[0].Rank == nil {
		t.Error("search result has no rank")
	}
	if output := h.mustRun(t, "search", "nonexistentterm"); !strings.Contains(output, "no matches") {
		t.Errorf("empty search output = %q", output)
	}

	status := decode[statusView](t, h.mustRun(t, "status", "--json"))
	if status.Files != 2 || status.Archives != 2 || status.MaxDepth != 1 || status.WorkspaceID != "default" {
		t.Errorf("status = %+v", status)
	}
	if status.Objects != 4 {
		t.Errorf("stored objects = %d, want 2 files + 2 archives", status.Objects)
	}

	if output := h.mustRun(t, "verify"); !strings.Contains(output, "valid: 4 of 4") {
		t.Errorf("verify output = %q", output)
	}
}

func TestImportJSONAndWorkspaceSelection(t *testing.T) {
	h := newHarness(t)
	archive := testutil.WriteFixture(t, h.inputs, "app.log.gz", testutil.GzipBytes(t, []byte("started\n")))

	reports := decode[[]importReport](t, h.mustRun(t, "import", "--json", "-w", "case-9", archive))
	if len(reports) != 1 || reports[0].Error != "" || reports[0].Result == nil {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].Result.FilesExtracted != 1 {
		t.Errorf("files extracted = %d", reports[0].Result.FilesExtracted)
	}
	if _, err := os.Stat(filepath.Join(h.root, "case-9", "metadata.db")); err != nil {
		t.Errorf("workspace case-9 not created: %v", err)
	}

	status := decode[statusView](t, h.mustRun(t, "status", "--json"))
	if status.Files != 0 {
		t.Errorf("default workspace has %d files, want 0", status.Files)
	}
}

func TestImportErrors(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "import"); err == nil {
		t.Error("import without arguments succeeded")
	}
	missing := filepath.Join(h.inputs, "missing.zip")
	output, err := h.run(t, "import", missing)
	if err == nil || !strings.Contains(err.Error(), "missing.zip") {
		t.Errorf("import of a missing file: %v", err)
	}
	if !strings.Contains(output, "failed") {
		t.Errorf("output = %q", output)
	}
	if _, err := h.run(t, "import", "-w", "bad id!", missing); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("invalid workspace id: %v", err)
	}
}

func TestImportPolicyOverlay(t *testing.T) {
	h := newHarness(t)
	policy := testutil.WriteFixture(t, h.inputs, "strict.jsonc", []byte(`{
		// keep nothing nested
		"max_depth": 1
	}`))
	inner := testutil.ZipBytes(t, []testutil.File{{Name: "x.txt", Content: []byte("x")}})
	archive := testutil.WriteFixture(t, h.inputs, "outer.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "inner.zip", Content: inner},
	}))

	reports := decode[[]importReport](t, h.mustRun(t, "import", "--json", "--policy", policy, archive))
	result := reports[0].Result
	if result.DepthSkips != 1 || result.FilesExtracted != 0 {
		t.Errorf("result = %+v, want the nested archive skipped at depth 1", result)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	h := newHarness(t)
	archive := testutil.WriteFixture(t, h.inputs, "one.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "a.txt", Content: []byte("original content")},
	}))
	h.mustRun(t, "import", archive)

	files := decode[[]fileView](t, h.mustRun(t, "files", "--json"))
	hash := files[0].Hash
	object := filepath.Join(h.root, "default", "objects", hash[:2], hash[2:])
	if err := os.Chmod(object, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(object, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := h.run(t, "verify")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("verify error = %v, want exit code 1", err)
	}
	if !strings.Contains(output, "INVALID") || !strings.Contains(output, "corrupted") {
		t.Errorf("verify output = %q", output)
	}
}

func TestFilesByArchive(t *testing.T) {
	h := newHarness(t)
	inner := testutil.ZipBytes(t, []testutil.File{{Name: "deep.txt", Content: []byte("deep")}})
	archive := testutil.WriteFixture(t, h.inputs, "outer.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "top.txt", Content: []byte("top")},
		{Name: "inner.zip", Content: inner},
	}))
	outerHash := decode[[]importReport](t, h.mustRun(t, "import", "--json", archive))[0].Result.ArchiveHash

	top := decode[[]fileView](t, h.mustRun(t, "files", "--json", "--archive", strings.ToUpper(outerHash)))
	if len(top) != 1 || top[0].OriginalName != "top.txt" {
		t.Errorf("files in outer.zip = %+v", top)
	}

	output := h.mustRun(t, "files")
	if !strings.Contains(output, "outer.zip/inner.zip/deep.txt") || !strings.Contains(output, "SHA256") {
		t.Errorf("files table = %q", output)
	}
}

func TestScan(t *testing.T) {
	h := newHarness(t)
	logPath := filepath.Join(h.inputs, "service.log")
	if err := os.WriteFile(logPath, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	first := decode[[]scanView](t, h.mustRun(t, "scan", "--json", "--print", logPath))
	if first[0].Lines != 2 || first[0].EndOffset != 8 || strings.Join(first[0].Text, ",") != "one,two" {
		t.Errorf("first scan = %+v", first)
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	file.WriteString("three\n")
	file.Close()

	output := h.mustRun(t, "scan", "-p", logPath)
	if !strings.Contains(output, "1 new lines, bytes 8-14") || !strings.Contains(output, "three") {
		t.Errorf("second scan output = %q", output)
	}

	status := decode[statusView](t, h.mustRun(t, "status", "--json"))
	if status.LastIndexed.IsZero() {
		t.Error("status does not report the last index commit")
	}
}

func TestCheckpointsEmpty(t *testing.T) {
	h := newHarness(t)
	if output := h.mustRun(t, "checkpoints"); !strings.Contains(output, "no interrupted imports") {
		t.Errorf("output = %q", output)
	}
	if views := decode[[]checkpointView](t, h.mustRun(t, "checkpoints", "--json")); len(views) != 0 {
		t.Errorf("views = %+v", views)
	}
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	archive := testutil.WriteFixture(t, h.inputs, "notes.zip", testutil.ZipBytes(t, []testutil.File{
		{Name: "a.txt", Content: []byte("alpha")},
		{Name: "b.txt", Content: []byte("beta")},
	}))
	h.mustRun(t, "import", archive)

	if _, err := h.run(t, "clear"); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("clear without --yes: err = %v", err)
	}
	if status := decode[statusView](t, h.mustRun(t, "status", "--json")); status.Files != 2 {
		t.Fatalf("records removed without confirmation: %+v", status)
	}

	cleared := decode[clearView](t, h.mustRun(t, "clear", "--yes", "--json"))
	if cleared.Files != 2 || cleared.Archives != 1 {
		t.Errorf("cleared = %+v", cleared)
	}
	if status := decode[statusView](t, h.mustRun(t, "status", "--json")); status.Files != 0 || status.Archives != 0 {
		t.Errorf("status after clear = %+v", status)
	}

	h.mustRun(t, "import", archive)
	if status := decode[statusView](t, h.mustRun(t, "status", "--json")); status.Files != 2 || status.Archives != 1 {
		t.Errorf("status after reimport = %+v", status)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	command := h.app.Root()
	if err := command.Execute(context.Background(), []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(h.stdout.String(), "archivist ") {
		t.Errorf("version output = %q", h.stdout.String())
	}
}
