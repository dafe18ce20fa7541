// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/codec"
)

const (
	// DefaultFileInterval is the number of files between saves.
	DefaultFileInterval = 100

	// DefaultByteInterval is the number of bytes between saves.
	DefaultByteInterval = 1 << 30

	fileSuffix = ".ckpt"
)

// ErrNotFound is returned by Load when no checkpoint exists.
var ErrNotFound = errors.New("checkpoint: not found")

// Config configures a Manager.
type Config struct {
	// Dir holds the checkpoint files. Required when Enabled; created
	// if missing.
	Dir string

	Enabled bool

	// FileInterval and ByteInterval default to DefaultFileInterval
	// and DefaultByteInterval when zero.
	FileInterval int64
	ByteInterval int64

	// Clock is required.
	Clock clock.Clock

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Manager loads and saves checkpoints for one workspace directory.
type Manager struct {
	dir          string
	enabled      bool
	fileInterval int64
	byteInterval int64
	clock        clock.Clock
	logger       *slog.Logger
}

// NewManager validates cfg and prepares the checkpoint directory.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("checkpoint: Clock is required")
	}
	if cfg.FileInterval < 0 || cfg.ByteInterval < 0 {
		return nil, fmt.Errorf("checkpoint: intervals must not be negative")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	manager := &Manager{
		dir:          cfg.Dir,
		enabled:      cfg.Enabled,
		fileInterval: cfg.FileInterval,
		byteInterval: cfg.ByteInterval,
		clock:        cfg.Clock,
		logger:       logger,
	}
	if manager.fileInterval == 0 {
		manager.fileInterval = DefaultFileInterval
	}
	if manager.byteInterval == 0 {
		manager.byteInterval = DefaultByteInterval
	}

	if cfg.Enabled {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("checkpoint: Dir is required when enabled")
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: creating %s: %w", cfg.Dir, err)
		}
	}
	return manager, nil
}

// Enabled reports whether checkpoints are persisted.
func (m *Manager) Enabled() bool { return m.enabled }

// Begin returns a fresh checkpoint. Nothing is written until Save.
func (m *Manager) Begin(workspaceID, archivePath, runID string) *Checkpoint {
	return newCheckpoint(workspaceID, archivePath, runID, m.clock.Now())
}

// Resume loads the existing checkpoint for the key, or begins a new
// one. resumed reports which happened. A checkpoint that cannot be
// decoded is logged and replaced.
func (m *Manager) Resume(workspaceID, archivePath, runID string) (checkpoint *Checkpoint, resumed bool, err error) {
	checkpoint, err = m.Load(workspaceID, archivePath)
	switch {
	case err == nil:
		m.logger.Info("resuming from checkpoint",
			"archive_path", archivePath,
			"previous_run_id", checkpoint.RunID,
			"files", checkpoint.ExtractedFiles,
			"bytes", checkpoint.ExtractedBytes,
		)
		checkpoint.RunID = runID
		return checkpoint, true, nil
	case errors.Is(err, ErrNotFound):
		return m.Begin(workspaceID, archivePath, runID), false, nil
	default:
		m.logger.Warn("discarding unreadable checkpoint", "archive_path", archivePath, "error", err)
		return m.Begin(workspaceID, archivePath, runID), false, nil
	}
}

// Load reads the checkpoint for the key. It returns ErrNotFound when
// none exists or the manager is disabled.
func (m *Manager) Load(workspaceID, archivePath string) (*Checkpoint, error) {
	if !m.enabled {
		return nil, ErrNotFound
	}
	return m.readFile(m.path(workspaceID, archivePath))
}

// ShouldWrite reports whether either interval has been crossed since
// the checkpoint was last saved.
func (m *Manager) ShouldWrite(checkpoint *Checkpoint) bool {
	if !m.enabled {
		return false
	}
	return checkpoint.ExtractedFiles-checkpoint.savedFiles >= m.fileInterval ||
		checkpoint.ExtractedBytes-checkpoint.savedBytes >= m.byteInterval
}

// Save writes the checkpoint atomically and resets the interval
// counters.
func (m *Manager) Save(checkpoint *Checkpoint) error {
	if !m.enabled {
		return nil
	}
	checkpoint.Version = FormatVersion
	checkpoint.UpdatedAt = m.clock.Now()
	path := m.path(checkpoint.WorkspaceID, checkpoint.ArchivePath)
	if err := codec.WriteFile(path, checkpoint, 0o644); err != nil {
		return fmt.Errorf("checkpoint: saving %s: %w", checkpoint.ArchivePath, err)
	}
	checkpoint.markSaved()
	m.logger.Debug("checkpoint saved",
		"archive_path", checkpoint.ArchivePath,
		"files", checkpoint.ExtractedFiles,
		"bytes", checkpoint.ExtractedBytes,
	)
	return nil
}

// SaveIfDue saves when ShouldWrite is true and reports whether it did.
func (m *Manager) SaveIfDue(checkpoint *Checkpoint) (bool, error) {
	if !m.ShouldWrite(checkpoint) {
		return false, nil
	}
	return true, m.Save(checkpoint)
}

// Delete removes the checkpoint for the key. A missing file is not an
// error.
func (m *Manager) Delete(workspaceID, archivePath string) error {
	if !m.enabled {
		return nil
	}
	err := os.Remove(m.path(workspaceID, archivePath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: deleting %s: %w", archivePath, err)
	}
	return nil
}

// Exists reports whether a checkpoint file exists for the key.
func (m *Manager) Exists(workspaceID, archivePath string) bool {
	if !m.enabled {
		return false
	}
	_, err := os.Stat(m.path(workspaceID, archivePath))
	return err == nil
}

// ListIncomplete returns every checkpoint left in the directory,
// oldest update first. Unreadable files are logged and skipped.
func (m *Manager) ListIncomplete() ([]*Checkpoint, error) {
	if !m.enabled {
		return nil, nil
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: listing %s: %w", m.dir, err)
	}

	var checkpoints []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		checkpoint, err := m.readFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			m.logger.Warn("skipping unreadable checkpoint", "file", entry.Name(), "error", err)
			continue
		}
		checkpoints = append(checkpoints, checkpoint)
	}
	slices.SortFunc(checkpoints, func(a, b *Checkpoint) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return checkpoints, nil
}

func (m *Manager) readFile(path string) (*Checkpoint, error) {
	var checkpoint Checkpoint
	if err := codec.ReadFile(path, &checkpoint); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	if checkpoint.Version != FormatVersion {
		return nil, fmt.Errorf("checkpoint: %s has format version %d, want %d", path, checkpoint.Version, FormatVersion)
	}
	if checkpoint.Extracted == nil {
		checkpoint.Extracted = make(map[string]bool)
	}
	checkpoint.markSaved()
	return &checkpoint, nil
}

// path names the checkpoint file for a key. The NUL separator keeps
// ("a", "b/c") and ("a/b", "c") apart.
func (m *Manager) path(workspaceID, archivePath string) string {
	digest := blake3.Sum256([]byte(workspaceID + "\x00" + archivePath))
	return filepath.Join(m.dir, hex.EncodeToString(digest[:16])+fileSuffix)
}
