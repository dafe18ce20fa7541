// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/archivist/lib/clock"
	"github.com/bureau-foundation/archivist/lib/sqlitepool"
)

// Config holds the parameters for opening a metadata store.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize defaults to 4.
	PoolSize int

	// Durable selects synchronous=FULL.
	Durable bool

	// Clock stamps created/updated times. Required.
	Clock clock.Clock

	// Logger is required.
	Logger *slog.Logger
}

// Store is the metadata database. It is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens or creates the database and brings its schema current.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("metadata: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("metadata: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       cfg.Path,
		PoolSize:   poolSize,
		Durable:    cfg.Durable,
		Migrations: migrations,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close waits for in-flight operations and closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// InsertFile records file, or returns the id of the existing row with
// the same hash.
func (s *Store) InsertFile(ctx context.Context, file File) (int64, error) {
	if err := validateFile(&file); err != nil {
		return 0, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("metadata: insert file: %w", err)
	}
	defer s.pool.Put(conn)

	return s.insertFile(conn, &file)
}

// InsertArchive records archive, or returns the id of the existing
// row with the same hash. An empty Status is stored as pending.
func (s *Store) InsertArchive(ctx context.Context, archive Archive) (int64, error) {
	if err := validateArchive(&archive); err != nil {
		return 0, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("metadata: insert archive: %w", err)
	}
	defer s.pool.Put(conn)

	return s.insertArchive(conn, &archive)
}

// InsertFiles records every file in one transaction and returns the
// row ids in input order. Either all rows are visible afterwards or
// none are.
func (s *Store) InsertFiles(ctx context.Context, files []File) (ids []int64, err error) {
	if len(files) == 0 {
		return nil, nil
	}
	for i := range files {
		if err := validateFile(&files[i]); err != nil {
			return nil, err
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata: insert files: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("metadata: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	ids = make([]int64, len(files))
	for i := range files {
		if ids[i], err = s.insertFile(conn, &files[i]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// InsertArchiveWithFiles records an archive and its files in one
// transaction. Each file's ParentArchiveID is set to the archive's
// id, whether the archive row is new or already existed.
func (s *Store) InsertArchiveWithFiles(ctx context.Context, archive Archive, files []File) (archiveID int64, fileIDs []int64, err error) {
	if err := validateArchive(&archive); err != nil {
		return 0, nil, err
	}
	for i := range files {
		if err := validateFile(&files[i]); err != nil {
			return 0, nil, err
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("metadata: insert archive with files: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, nil, fmt.Errorf("metadata: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	archiveID, err = s.insertArchive(conn, &archive)
	if err != nil {
		return 0, nil, err
	}
	fileIDs = make([]int64, len(files))
	for i := range files {
		files[i].ParentArchiveID = archiveID
		if fileIDs[i], err = s.insertFile(conn, &files[i]); err != nil {
			return 0, nil, err
		}
	}
	return archiveID, fileIDs, nil
}

// UpdateArchiveStatus moves an archive through its lifecycle.
func (s *Store) UpdateArchiveStatus(ctx context.Context, id int64, status ArchiveStatus) error {
	if !status.Valid() {
		return fmt.Errorf("metadata: unknown archive status %q", status)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("metadata: update archive status: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE archives SET extraction_status = ?, updated_at = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{string(status), s.clock.Now().UnixNano(), id}})
	if err != nil {
		return fmt.Errorf("metadata: updating archive %d status: %w", id, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: archive %d", ErrNotFound, id)
	}
	return nil
}

// ClearAll removes every file and archive row. Incremental indexing
// state is kept.
func (s *Store) ClearAll(ctx context.Context) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("metadata: clear: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("metadata: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err = sqlitex.Execute(conn, "DELETE FROM files", nil); err != nil {
		return fmt.Errorf("metadata: clearing files: %w", err)
	}
	if err = sqlitex.Execute(conn, "DELETE FROM archives", nil); err != nil {
		return fmt.Errorf("metadata: clearing archives: %w", err)
	}
	s.logger.Info("metadata cleared", "path", s.pool.Path())
	return nil
}

// insertFile inserts or finds the row for file.Hash. The caller holds
// conn and decides the transaction scope.
func (s *Store) insertFile(conn *sqlite.Conn, file *File) (int64, error) {
	err := sqlitex.Execute(conn, `
		INSERT INTO files (
			sha256_hash, virtual_path, original_name, size, modified_time,
			mime_type, parent_archive_id, depth_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sha256_hash) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{
			file.Hash,
			file.VirtualPath,
			file.OriginalName,
			file.Size,
			nullableTime(file.ModifiedTime),
			nullableText(file.MIMEType),
			nullableID(file.ParentArchiveID),
			file.Depth,
			s.clock.Now().UnixNano(),
		}})
	if err != nil {
		return 0, fmt.Errorf("metadata: inserting file %s (%s): %w", file.VirtualPath, file.Hash, err)
	}
	if conn.Changes() > 0 {
		return conn.LastInsertRowID(), nil
	}
	return lookupID(conn, "SELECT id FROM files WHERE sha256_hash = ?", file.Hash)
}

func (s *Store) insertArchive(conn *sqlite.Conn, archive *Archive) (int64, error) {
	status := archive.Status
	if status == "" {
		status = StatusPending
	}
	now := s.clock.Now().UnixNano()
	err := sqlitex.Execute(conn, `
		INSERT INTO archives (
			sha256_hash, virtual_path, original_name, archive_type, size,
			parent_archive_id, depth_level, extraction_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sha256_hash) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{
			archive.Hash,
			archive.VirtualPath,
			archive.OriginalName,
			archive.Type,
			archive.Size,
			nullableID(archive.ParentArchiveID),
			archive.Depth,
			string(status),
			now,
			now,
		}})
	if err != nil {
		return 0, fmt.Errorf("metadata: inserting archive %s (%s): %w", archive.VirtualPath, archive.Hash, err)
	}
	if conn.Changes() > 0 {
		return conn.LastInsertRowID(), nil
	}
	return lookupID(conn, "SELECT id FROM archives WHERE sha256_hash = ?", archive.Hash)
}

func lookupID(conn *sqlite.Conn, query, hash string) (int64, error) {
	var id int64
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{hash},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("metadata: looking up %s: %w", hash, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	return id, nil
}
