// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/archivist/lib/cas"
	"github.com/bureau-foundation/archivist/lib/checkpoint"
	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/metadata"
)

const (
	metadataFile  = "metadata.db"
	checkpointDir = "checkpoints"
	extractedDir  = "extracted"
	lockFile      = "lock"
)

// Config holds the parameters for opening a Workspace.
type Config struct {
	// Dir is the workspace directory. Created if missing.
	Dir string

	// ID names the workspace in checkpoints and index state.
	ID string

	Clock  clock.Clock
	Logger *slog.Logger

	// CopyTimeout and BufferSize are passed to the object store.
	CopyTimeout time.Duration
	BufferSize  int

	// PoolSize and Durable are passed to the metadata store.
	PoolSize int
	Durable  bool

	Checkpoints CheckpointConfig
}

// CheckpointConfig is passed to the checkpoint manager.
type CheckpointConfig struct {
	Enabled      bool
	FileInterval int64
	ByteInterval int64
}

// Workspace is an opened workspace directory and its stores.
type Workspace struct {
	dir string
	id  string

	Objects     *cas.Store
	Metadata    *metadata.Store
	Checkpoints *checkpoint.Manager
}

// Open creates the workspace layout under cfg.Dir and opens its
// stores. The caller must Close the returned Workspace.
func Open(cfg Config) (*Workspace, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("workspace: Dir is required")
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("workspace: ID is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("workspace: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("workspace: Logger is required")
	}
	for _, dir := range []string{cfg.Dir, filepath.Join(cfg.Dir, extractedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("workspace: creating %s: %w", dir, err)
		}
	}

	objects, err := cas.Open(cas.Config{
		Root:        cfg.Dir,
		Clock:       cfg.Clock,
		Logger:      cfg.Logger.With("component", "cas"),
		CopyTimeout: cfg.CopyTimeout,
		BufferSize:  cfg.BufferSize,
	})
	if err != nil {
		return nil, err
	}

	records, err := metadata.Open(metadata.Config{
		Path:     filepath.Join(cfg.Dir, metadataFile),
		PoolSize: cfg.PoolSize,
		Durable:  cfg.Durable,
		Clock:    cfg.Clock,
		Logger:   cfg.Logger.With("component", "metadata"),
	})
	if err != nil {
		return nil, err
	}

	checkpoints, err := checkpoint.NewManager(checkpoint.Config{
		Dir:          filepath.Join(cfg.Dir, checkpointDir),
		Enabled:      cfg.Checkpoints.Enabled,
		FileInterval: cfg.Checkpoints.FileInterval,
		ByteInterval: cfg.Checkpoints.ByteInterval,
		Clock:        cfg.Clock,
		Logger:       cfg.Logger.With("component", "checkpoint"),
	})
	if err != nil {
		records.Close()
		return nil, err
	}

	return &Workspace{
		dir:         cfg.Dir,
		id:          cfg.ID,
		Objects:     objects,
		Metadata:    records,
		Checkpoints: checkpoints,
	}, nil
}

// Dir is the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// ID is the workspace identifier.
func (w *Workspace) ID() string { return w.id }

// ExtractDir is where imported archives are materialized.
func (w *Workspace) ExtractDir() string { return w.path(extractedDir) }

// MetadataPath is the metadata database file.
func (w *Workspace) MetadataPath() string { return w.path(metadataFile) }

func (w *Workspace) path(name string) string { return filepath.Join(w.dir, name) }

// Close closes the metadata store.
func (w *Workspace) Close() error {
	if err := w.Metadata.Close(); err != nil {
		return fmt.Errorf("workspace: closing metadata: %w", err)
	}
	return nil
}
