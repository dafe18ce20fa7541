// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// CurrentIndexVersion is written to index_state on every commit.
const CurrentIndexVersion = 1

// IndexState returns the workspace's indexing marker, or ErrNotFound
// if nothing has been committed yet.
func (s *Store) IndexState(ctx context.Context, workspaceID string) (IndexState, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return IndexState{}, fmt.Errorf("metadata: index state: %w", err)
	}
	defer s.pool.Put(conn)

	var state IndexState
	found := false
	err = sqlitex.Execute(conn,
		"SELECT last_commit_time, index_version FROM index_state WHERE workspace_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{workspaceID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				state = IndexState{
					WorkspaceID:    workspaceID,
					LastCommitTime: timeFromNanos(stmt.ColumnInt64(0)),
					IndexVersion:   stmt.ColumnInt(1),
				}
				return nil
			},
		})
	if err != nil {
		return IndexState{}, fmt.Errorf("metadata: reading index state for %s: %w", workspaceID, err)
	}
	if !found {
		return IndexState{}, fmt.Errorf("%w: index state for %s", ErrNotFound, workspaceID)
	}
	return state, nil
}

// IndexedFile returns the recorded progress for path in a workspace,
// or ErrNotFound if the file was never indexed.
func (s *Store) IndexedFile(ctx context.Context, workspaceID, path string) (IndexedFile, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return IndexedFile{}, fmt.Errorf("metadata: indexed file: %w", err)
	}
	defer s.pool.Put(conn)

	var record IndexedFile
	found := false
	err = sqlitex.Execute(conn, `
		SELECT last_offset, file_size, modified_time, hash, updated_at
		FROM indexed_files WHERE workspace_id = ? AND file_path = ?`,
		&sqlitex.ExecOptions{
			Args: []any{workspaceID, path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				record = IndexedFile{
					WorkspaceID: workspaceID,
					Path:        path,
					LastOffset:  stmt.ColumnInt64(0),
					Size:        stmt.ColumnInt64(1),
					Hash:        stmt.ColumnText(3),
					UpdatedAt:   timeFromNanos(stmt.ColumnInt64(4)),
				}
				if !stmt.ColumnIsNull(2) {
					record.ModifiedTime = timeFromNanos(stmt.ColumnInt64(2))
				}
				return nil
			},
		})
	if err != nil {
		return IndexedFile{}, fmt.Errorf("metadata: reading indexed file %s: %w", path, err)
	}
	if !found {
		return IndexedFile{}, fmt.Errorf("%w: indexed file %s", ErrNotFound, path)
	}
	return record, nil
}

// CommitIndexedFile records new progress for a file and stamps the
// workspace's last commit time, atomically.
func (s *Store) CommitIndexedFile(ctx context.Context, record IndexedFile) (err error) {
	if record.WorkspaceID == "" || record.Path == "" {
		return fmt.Errorf("metadata: indexed file needs a workspace and a path")
	}
	if record.LastOffset < 0 || record.LastOffset > record.Size {
		return fmt.Errorf("metadata: indexed file %s offset %d outside size %d", record.Path, record.LastOffset, record.Size)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("metadata: commit indexed file: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("metadata: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	now := s.clock.Now().UnixNano()
	err = sqlitex.Execute(conn, `
		INSERT INTO indexed_files (workspace_id, file_path, last_offset, file_size, modified_time, hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, file_path) DO UPDATE SET
			last_offset = excluded.last_offset,
			file_size = excluded.file_size,
			modified_time = excluded.modified_time,
			hash = excluded.hash,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{
			record.WorkspaceID,
			record.Path,
			record.LastOffset,
			record.Size,
			nullableTime(record.ModifiedTime),
			record.Hash,
			now,
		}})
	if err != nil {
		return fmt.Errorf("metadata: recording indexed file %s: %w", record.Path, err)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO index_state (workspace_id, last_commit_time, index_version)
		VALUES (?, ?, ?)
		ON CONFLICT (workspace_id) DO UPDATE SET
			last_commit_time = excluded.last_commit_time,
			index_version = excluded.index_version`,
		&sqlitex.ExecOptions{Args: []any{record.WorkspaceID, now, CurrentIndexVersion}})
	if err != nil {
		return fmt.Errorf("metadata: updating index state for %s: %w", record.WorkspaceID, err)
	}
	return nil
}
