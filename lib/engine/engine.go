// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/archivist/lib/archive"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/extraction"
	"github.com/bureau-foundation/archivist/lib/integrity"
	"github.com/bureau-foundation/archivist/lib/security"
	"github.com/bureau-foundation/archivist/lib/workspace"
)

// ErrWorkspaceFull is returned by Import when the object store already
// holds the policy's max_workspace_size.
var ErrWorkspaceFull = errors.New("engine: workspace size limit reached")

// Config holds the parameters for an Engine.
type Config struct {
	// Workspace receives extracted content. Required.
	Workspace *workspace.Workspace

	// Policy is validated by New.
	Policy Policy

	// Clock is required.
	Clock clock.Clock

	// Logger is required. Audit events (extraction started, completed,
	// failed, security violation) are logged at Info and Warn.
	Logger *slog.Logger

	// SpaceCheck is the free-space preflight. Defaults to
	// workspace.CheckFreeSpace.
	SpaceCheck func(path string, estimate int64) error

	// AbortOnCritical stops the whole import at the first critical
	// security violation instead of only the archive that raised it.
	AbortOnCritical bool

	// SkipVerify disables the integrity check after each import.
	SkipVerify bool
}

// Engine imports archives into one workspace. Imports on the same
// workspace are serialized by the workspace lock.
type Engine struct {
	workspace       *workspace.Workspace
	verifier        *integrity.Verifier
	clock           clock.Clock
	logger          *slog.Logger
	spaceCheck      func(path string, estimate int64) error
	abortOnCritical bool
	skipVerify      bool

	mu     sync.RWMutex
	policy Policy
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("engine: Workspace is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("engine: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("engine: Logger is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	spaceCheck := cfg.SpaceCheck
	if spaceCheck == nil {
		spaceCheck = workspace.CheckFreeSpace
	}
	verifier, err := integrity.NewVerifier(integrity.Config{
		Records: cfg.Workspace.Metadata,
		Objects: cfg.Workspace.Objects,
		Workers: cfg.Policy.MaxParallelFiles,
		Clock:   cfg.Clock,
		Logger:  cfg.Logger.With("component", "integrity"),
	})
	if err != nil {
		return nil, err
	}
	return &Engine{
		workspace:       cfg.Workspace,
		verifier:        verifier,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
		spaceCheck:      spaceCheck,
		abortOnCritical: cfg.AbortOnCritical,
		skipVerify:      cfg.SkipVerify,
		policy:          cfg.Policy,
	}, nil
}

// Policy returns the policy new imports will use.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy validates and installs policy for imports that start after
// it returns. Running imports keep the policy they started with.
func (e *Engine) SetPolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
	return nil
}

// Verify runs an integrity check of the whole workspace.
func (e *Engine) Verify(ctx context.Context) (*integrity.Report, error) {
	return e.verifier.Verify(ctx)
}

// Import extracts the archive at archivePath, and every archive nested
// inside it down to the policy's max_depth, into the workspace.
//
// Per-entry and per-archive failures, including security violations,
// become warnings on the Result and do not fail the import. The
// returned error is non-nil only for failures that make the run's
// records untrustworthy: database errors, stack exhaustion,
// cancellation, or a critical violation under AbortOnCritical. In that
// case the checkpoint is saved so a later Import of the same path
// resumes, and the partial Result is still returned.
func (e *Engine) Import(ctx context.Context, archivePath string) (*Result, error) {
	policy := e.Policy()
	absolute, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("engine: resolving %s: %w", archivePath, err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("engine: %s is not a regular file", absolute)
	}
	format, err := archive.Detect(absolute)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	lock, err := e.workspace.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	used, err := e.workspace.Objects.StorageSize()
	if err != nil {
		return nil, fmt.Errorf("engine: measuring workspace: %w", err)
	}
	if used >= policy.Security.MaxWorkspaceSize {
		return nil, fmt.Errorf("%w: %d bytes stored, limit %d", ErrWorkspaceFull, used, policy.Security.MaxWorkspaceSize)
	}

	estimate, err := estimateSize(absolute, format, info.Size(), policy.MaxTotalSize)
	if err != nil {
		return nil, err
	}
	if err := e.spaceCheck(e.workspace.Dir(), estimate); err != nil {
		return nil, fmt.Errorf("engine: preflight for %s: %w", absolute, err)
	}

	runID := uuid.NewString()
	startedAt := e.clock.Now()
	logger := e.logger.With("run_id", runID, "archive_path", absolute)

	checkpoint, resumed, err := e.workspace.Checkpoints.Resume(e.workspace.ID(), absolute, runID)
	if err != nil {
		return nil, fmt.Errorf("engine: loading checkpoint: %w", err)
	}

	rootHash, err := e.workspace.Objects.StoreFile(ctx, absolute)
	if err != nil {
		return nil, fmt.Errorf("engine: storing %s: %w", absolute, err)
	}

	result := &Result{
		RunID:       runID,
		ArchivePath: absolute,
		ArchiveHash: rootHash,
	}
	current := &run{
		engine:     e,
		policy:     policy,
		detector:   security.NewDetector(policy.Security),
		result:     result,
		checkpoint: checkpoint,
		logger:     logger,
		stack:      extraction.NewStack(policy.StackSize),
		dirs:       newDirBatcher(policy.DirBatchSize),
		totalBytes: checkpoint.ExtractedBytes,
		totalFiles: checkpoint.ExtractedFiles,
		rootHash:   rootHash,
	}

	logger.Info("extraction started",
		"workspace_id", e.workspace.ID(),
		"format", format.String(),
		"size", info.Size(),
		"resumed", resumed,
		"max_depth", policy.MaxDepth,
	)

	base := filepath.Base(absolute)
	root := extraction.Item{
		ArchivePath: absolute,
		TargetDir:   filepath.Join(e.workspace.ExtractDir(), rootDirName(base, rootHash)),
		VirtualPath: base,
		Context:     extraction.NewContext(e.workspace.ID(), startedAt).WithProgress(checkpoint.ExtractedBytes, checkpoint.ExtractedFiles),
	}
	if err := current.stack.Push(root); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	runErr := current.drain(ctx)
	result.DirectoriesCreated = current.dirs.Created()
	result.Duration = e.clock.Since(startedAt)

	if runErr != nil {
		if err := e.workspace.Checkpoints.Save(checkpoint); err != nil {
			logger.Error("saving checkpoint after failure", "error", err)
		}
		logger.Warn("extraction failed",
			"error", runErr,
			"files", result.FilesExtracted,
			"bytes", result.BytesExtracted,
			"duration", result.Duration,
		)
		return result, runErr
	}

	if err := e.workspace.Checkpoints.Delete(e.workspace.ID(), absolute); err != nil {
		logger.Warn("removing completed checkpoint", "error", err)
	}

	logger.Info("extraction completed",
		"files", result.FilesExtracted,
		"bytes", result.BytesExtracted,
		"archives", result.ArchivesProcessed,
		"max_depth", result.MaxDepth,
		"depth_skips", result.DepthSkips,
		"warnings", len(result.Warnings),
		"resumed_entries", result.Resumed,
		"duration", result.Duration,
		"speed", result.SpeedString(),
	)

	if !e.skipVerify {
		report, err := e.verifier.Verify(ctx)
		if err != nil {
			return result, fmt.Errorf("engine: verifying after import: %w", err)
		}
		result.Integrity = report
	}
	return result, nil
}

// estimateSize predicts the bytes an archive will expand to for the
// free-space preflight. Zip declares sizes up front; other formats
// fall back to the archive's own size. The estimate never exceeds
// limit, since extraction halts there.
func estimateSize(path string, format archive.Format, fileSize, limit int64) (int64, error) {
	if format != archive.FormatZip {
		return min(fileSize, limit), nil
	}
	reader, err := archive.Open(path, format)
	if err != nil {
		return 0, fmt.Errorf("engine: %w", err)
	}
	defer reader.Close()
	lister, ok := reader.(archive.Lister)
	if !ok {
		return min(fileSize, limit), nil
	}
	var total int64
	for _, entry := range lister.Entries() {
		if entry.Size <= 0 {
			continue
		}
		if entry.Size >= limit-total {
			return limit, nil
		}
		total += entry.Size
	}
	return min(max(total, fileSize), limit), nil
}

// rootDirName names the extraction directory of a top-level archive.
// The hash prefix keeps same-named archives with different content
// apart.
func rootDirName(base, hash string) string {
	stem := archive.TrimSuffix(base)
	if stem == "" {
		stem = base
	}
	return stem + "-" + hash[:12]
}
