// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/bureau-foundation/archivist/lib/cas"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/metadata"
)

// Records is the read side of the metadata store the verifier needs.
type Records interface {
	AllFiles(ctx context.Context) ([]metadata.File, error)
	AllArchives(ctx context.Context) ([]metadata.Archive, error)
}

// Objects is the read side of the content store the verifier needs.
type Objects interface {
	VerifyIntegrity(hash string) (bool, error)
}

// Config configures a Verifier.
type Config struct {
	Records Records
	Objects Objects

	// Workers bounds concurrent re-hashing. Defaults to NumCPU.
	Workers int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Verifier checks metadata rows against stored objects.
type Verifier struct {
	records Records
	objects Objects
	workers int
	clock   clock.Clock
	logger  *slog.Logger
}

// NewVerifier validates cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Records == nil || cfg.Objects == nil {
		return nil, fmt.Errorf("integrity: Records and Objects are required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("integrity: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Verifier{
		records: cfg.Records,
		objects: cfg.Objects,
		workers: workers,
		clock:   cfg.Clock,
		logger:  logger,
	}, nil
}

type record struct {
	kind        RecordKind
	id          int64
	hash        string
	virtualPath string
}

type verdict int

const (
	verdictValid verdict = iota
	verdictMissing
	verdictCorrupted
)

// Verify checks every file and archive row. It returns an error only
// when the rows themselves cannot be read or ctx is cancelled; failed
// rows are reported, not returned.
func (v *Verifier) Verify(ctx context.Context) (*Report, error) {
	started := v.clock.Now()

	records, err := v.collect(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Total:     len(records),
		Missing:   []Problem{},
		Corrupted: []Problem{},
		CheckedAt: started,
	}

	var (
		mutex     sync.Mutex
		waitGroup sync.WaitGroup
	)
	semaphore := make(chan struct{}, v.workers)
	for _, current := range records {
		if ctx.Err() != nil {
			break
		}
		waitGroup.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer waitGroup.Done()
			defer func() { <-semaphore }()

			result, detail, warning := v.check(current)

			mutex.Lock()
			defer mutex.Unlock()
			problem := Problem{
				Kind:        current.kind,
				ID:          current.id,
				Hash:        current.hash,
				VirtualPath: current.virtualPath,
				Detail:      detail,
			}
			switch result {
			case verdictValid:
				report.Valid++
			case verdictMissing:
				report.Missing = append(report.Missing, problem)
			case verdictCorrupted:
				report.Corrupted = append(report.Corrupted, problem)
			}
			if warning != "" {
				report.Warnings = append(report.Warnings, warning)
			}
		}()
	}
	waitGroup.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("integrity: verification interrupted: %w", err)
	}

	sortProblems(report.Missing)
	sortProblems(report.Corrupted)
	sort.Strings(report.Warnings)
	report.Duration = v.clock.Since(started)

	logLevel := slog.LevelInfo
	if !report.IsValid() {
		logLevel = slog.LevelWarn
	}
	v.logger.Log(ctx, logLevel, "integrity verification finished",
		"total", report.Total,
		"valid", report.Valid,
		"missing", len(report.Missing),
		"corrupted", len(report.Corrupted),
		"duration", report.Duration,
	)
	return report, nil
}

func (v *Verifier) collect(ctx context.Context) ([]record, error) {
	files, err := v.records.AllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("integrity: listing files: %w", err)
	}
	archives, err := v.records.AllArchives(ctx)
	if err != nil {
		return nil, fmt.Errorf("integrity: listing archives: %w", err)
	}

	records := make([]record, 0, len(files)+len(archives))
	for _, file := range files {
		records = append(records, record{KindFile, file.ID, file.Hash, file.VirtualPath})
	}
	for _, archive := range archives {
		records = append(records, record{KindArchive, archive.ID, archive.Hash, archive.VirtualPath})
	}
	return records, nil
}

// check classifies one row. A read error other than not-found is a
// warning and counts the row as corrupted, since its content cannot be
// vouched for.
func (v *Verifier) check(current record) (result verdict, detail, warning string) {
	if !cas.ValidHash(current.hash) {
		return verdictCorrupted, "malformed hash", ""
	}
	matches, err := v.objects.VerifyIntegrity(current.hash)
	switch {
	case errors.Is(err, cas.ErrNotFound):
		return verdictMissing, "object not found", ""
	case err != nil:
		return verdictCorrupted, "unreadable object",
			fmt.Sprintf("%s %s: %v", current.kind, current.virtualPath, err)
	case !matches:
		return verdictCorrupted, "content hash mismatch", ""
	}
	return verdictValid, "", ""
}

func sortProblems(problems []Problem) {
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Kind != problems[j].Kind {
			return problems[i].Kind == KindArchive
		}
		return problems[i].ID < problems[j].ID
	})
}
