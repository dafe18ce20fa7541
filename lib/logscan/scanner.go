// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logscan

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/archivist/lib/metadata"
)

const (
	// FingerprintSize is how many leading bytes identify a file.
	FingerprintSize = 4096

	// DefaultMaxLineLength caps the text handed to the callback.
	// Longer lines are consumed whole and truncated.
	DefaultMaxLineLength = 1 << 20
)

// Progress persists per-file scan offsets. *metadata.Store implements
// it.
type Progress interface {
	IndexedFile(ctx context.Context, workspaceID, path string) (metadata.IndexedFile, error)
	CommitIndexedFile(ctx context.Context, record metadata.IndexedFile) error
}

// Config holds the parameters for a Scanner.
type Config struct {
	Progress    Progress
	WorkspaceID string

	// MaxLineLength defaults to DefaultMaxLineLength.
	MaxLineLength int

	// Logger is required.
	Logger *slog.Logger
}

// Line is one complete line, without its terminator.
type Line struct {
	// Offset is the byte position of the line's first byte.
	Offset    int64
	Text      string
	Truncated bool
}

// Restart explains why a scan began at offset zero for a file that
// had been scanned before.
type Restart string

const (
	RestartNone      Restart = ""
	RestartTruncated Restart = "truncated"
	RestartRotated   Restart = "rotated"
)

// Result summarizes one Scan.
type Result struct {
	Path        string
	StartOffset int64
	EndOffset   int64
	Lines       int
	Restart     Restart
}

// Scanner reads new lines from log files.
type Scanner struct {
	progress      Progress
	workspaceID   string
	maxLineLength int
	logger        *slog.Logger
}

// NewScanner validates cfg.
func NewScanner(cfg Config) (*Scanner, error) {
	if cfg.Progress == nil {
		return nil, fmt.Errorf("logscan: Progress is required")
	}
	if cfg.WorkspaceID == "" {
		return nil, fmt.Errorf("logscan: WorkspaceID is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logscan: Logger is required")
	}
	maxLineLength := cfg.MaxLineLength
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Scanner{
		progress:      cfg.Progress,
		workspaceID:   cfg.WorkspaceID,
		maxLineLength: maxLineLength,
		logger:        cfg.Logger,
	}, nil
}

// Scan calls fn for each complete line past the recorded offset of
// path, then records the new offset. A trailing line without a newline
// is left for the next scan. If fn returns an error, progress up to
// the preceding line is still recorded and the error is returned.
func (s *Scanner) Scan(ctx context.Context, path string, fn func(Line) error) (*Result, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("logscan: resolving %s: %w", path, err)
	}
	file, err := os.Open(absolute)
	if err != nil {
		return nil, fmt.Errorf("logscan: opening %s: %w", absolute, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("logscan: stat %s: %w", absolute, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("logscan: %s is not a regular file", absolute)
	}
	size := info.Size()

	previous, err := s.progress.IndexedFile(ctx, s.workspaceID, absolute)
	known := true
	if errors.Is(err, metadata.ErrNotFound) {
		known = false
	} else if err != nil {
		return nil, fmt.Errorf("logscan: loading progress for %s: %w", absolute, err)
	}

	result := &Result{Path: absolute}
	if known {
		result.StartOffset = previous.LastOffset
		switch {
		case size < previous.Size:
			result.Restart = RestartTruncated
		default:
			prefix, err := fingerprint(file, min(previous.Size, FingerprintSize))
			if err != nil {
				return nil, err
			}
			if prefix != previous.Hash {
				result.Restart = RestartRotated
			}
		}
		if result.Restart != RestartNone {
			s.logger.Info("log file replaced, rescanning from start",
				"path", absolute,
				"reason", string(result.Restart),
				"previous_size", previous.Size,
				"size", size,
			)
			result.StartOffset = 0
		}
	}

	offset, lines, scanErr := s.readLines(ctx, file, result.StartOffset, size, fn)
	result.EndOffset = offset
	result.Lines = lines

	currentPrint, err := fingerprint(file, min(size, FingerprintSize))
	if err != nil {
		return nil, errors.Join(scanErr, err)
	}
	// Commit even when fn failed so delivered lines are not repeated.
	commitErr := s.progress.CommitIndexedFile(ctx, metadata.IndexedFile{
		WorkspaceID:  s.workspaceID,
		Path:         absolute,
		LastOffset:   offset,
		Size:         size,
		ModifiedTime: info.ModTime(),
		Hash:         currentPrint,
	})
	if commitErr != nil {
		commitErr = fmt.Errorf("logscan: recording progress for %s: %w", absolute, commitErr)
	}
	if err := errors.Join(scanErr, commitErr); err != nil {
		return result, err
	}

	s.logger.Debug("log file scanned",
		"path", absolute,
		"start_offset", result.StartOffset,
		"end_offset", result.EndOffset,
		"lines", result.Lines,
	)
	return result, nil
}

// readLines delivers complete lines in [start, end) and returns the
// offset just past the last line delivered.
func (s *Scanner) readLines(ctx context.Context, file *os.File, start, end int64, fn func(Line) error) (int64, int, error) {
	reader := bufio.NewReader(io.NewSectionReader(file, start, end-start))
	offset := start
	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return offset, lines, err
		}
		raw, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return offset, lines, nil
		}
		if err != nil {
			return offset, lines, fmt.Errorf("logscan: reading at offset %d: %w", offset, err)
		}

		text := bytes.TrimRight(raw, "\r\n")
		line := Line{Offset: offset}
		if len(text) > s.maxLineLength {
			text = text[:s.maxLineLength]
			line.Truncated = true
		}
		line.Text = string(text)
		if err := fn(line); err != nil {
			return offset, lines, err
		}
		offset += int64(len(raw))
		lines++
	}
}

// fingerprint hashes the first n bytes of file.
func fingerprint(file *os.File, n int64) (string, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(file, 0, n)); err != nil {
		return "", fmt.Errorf("logscan: fingerprinting %s: %w", file.Name(), err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
