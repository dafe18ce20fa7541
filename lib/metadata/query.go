// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const fileColumns = `id, sha256_hash, virtual_path, original_name, size, modified_time,
	mime_type, parent_archive_id, depth_level, created_at`

const archiveColumns = `id, sha256_hash, virtual_path, original_name, archive_type, size,
	parent_archive_id, depth_level, extraction_status, created_at, updated_at`

// DefaultSearchLimit caps SearchFiles when the caller passes no limit.
const DefaultSearchLimit = 100

// FileByHash returns the file with the given content hash.
func (s *Store) FileByHash(ctx context.Context, hash string) (File, error) {
	return s.queryOneFile(ctx, "SELECT "+fileColumns+" FROM files WHERE sha256_hash = ?", hash)
}

// FileByPath returns the earliest-recorded file at virtualPath.
func (s *Store) FileByPath(ctx context.Context, virtualPath string) (File, error) {
	return s.queryOneFile(ctx,
		"SELECT "+fileColumns+" FROM files WHERE virtual_path = ? ORDER BY id LIMIT 1", virtualPath)
}

// ArchiveByHash returns the archive with the given content hash.
func (s *Store) ArchiveByHash(ctx context.Context, hash string) (Archive, error) {
	return s.queryOneArchive(ctx, "SELECT "+archiveColumns+" FROM archives WHERE sha256_hash = ?", hash)
}

// ArchiveByPath returns the earliest-recorded archive at virtualPath.
func (s *Store) ArchiveByPath(ctx context.Context, virtualPath string) (Archive, error) {
	return s.queryOneArchive(ctx,
		"SELECT "+archiveColumns+" FROM archives WHERE virtual_path = ? ORDER BY id LIMIT 1", virtualPath)
}

// ArchiveByID returns the archive with row id id.
func (s *Store) ArchiveByID(ctx context.Context, id int64) (Archive, error) {
	return s.queryOneArchive(ctx, "SELECT "+archiveColumns+" FROM archives WHERE id = ?", id)
}

// FilesByArchive lists the files whose parent is archiveID.
func (s *Store) FilesByArchive(ctx context.Context, archiveID int64) ([]File, error) {
	return s.queryFiles(ctx,
		"SELECT "+fileColumns+" FROM files WHERE parent_archive_id = ? ORDER BY id", archiveID)
}

// ArchiveChildren lists the archives nested directly in archiveID.
func (s *Store) ArchiveChildren(ctx context.Context, archiveID int64) ([]Archive, error) {
	return s.queryArchives(ctx,
		"SELECT "+archiveColumns+" FROM archives WHERE parent_archive_id = ? ORDER BY id", archiveID)
}

// AllFiles lists every file row in insertion order.
func (s *Store) AllFiles(ctx context.Context) ([]File, error) {
	return s.queryFiles(ctx, "SELECT "+fileColumns+" FROM files ORDER BY id")
}

// AllArchives lists every archive row in insertion order.
func (s *Store) AllArchives(ctx context.Context) ([]Archive, error) {
	return s.queryArchives(ctx, "SELECT "+archiveColumns+" FROM archives ORDER BY id")
}

// FileCount returns the number of distinct files.
func (s *Store) FileCount(ctx context.Context) (int64, error) {
	return s.queryInt(ctx, "SELECT count(*) FROM files")
}

// ArchiveCount returns the number of distinct archives.
func (s *Store) ArchiveCount(ctx context.Context) (int64, error) {
	return s.queryInt(ctx, "SELECT count(*) FROM archives")
}

// TotalSize returns the summed size of all distinct files.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	return s.queryInt(ctx, "SELECT coalesce(sum(size), 0) FROM files")
}

// MaxDepth returns the deepest depth level of any file or archive.
func (s *Store) MaxDepth(ctx context.Context) (int64, error) {
	return s.queryInt(ctx, `SELECT max(
		coalesce((SELECT max(depth_level) FROM files), 0),
		coalesce((SELECT max(depth_level) FROM archives), 0))`)
}

// SearchFiles runs a full-text search over virtual paths and original
// names. Each whitespace-separated term must match a token prefix;
// results are ordered best match first.
func (s *Store) SearchFiles(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata: search: %w", err)
	}
	defer s.pool.Put(conn)

	var results []SearchResult
	err = sqlitex.Execute(conn, `
		SELECT f.id, f.sha256_hash, f.virtual_path, f.original_name, f.size, f.modified_time,
			f.mime_type, f.parent_archive_id, f.depth_level, f.created_at, bm25(files_fts)
		FROM files_fts
		JOIN files AS f ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?
		ORDER BY bm25(files_fts)
		LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{match, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				results = append(results, SearchResult{
					File: scanFile(stmt),
					Rank: stmt.ColumnFloat(10),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("metadata: searching %q: %w", query, err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 expression in which every
// term is a quoted prefix query, so user input can never be parsed as
// FTS5 syntax.
func ftsQuery(query string) string {
	var terms []string
	for _, term := range strings.Fields(query) {
		terms = append(terms, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

func (s *Store) queryOneFile(ctx context.Context, query string, args ...any) (File, error) {
	files, err := s.queryFiles(ctx, query, args...)
	if err != nil {
		return File{}, err
	}
	if len(files) == 0 {
		return File{}, fmt.Errorf("%w: file %v", ErrNotFound, args[0])
	}
	return files[0], nil
}

func (s *Store) queryOneArchive(ctx context.Context, query string, args ...any) (Archive, error) {
	archives, err := s.queryArchives(ctx, query, args...)
	if err != nil {
		return Archive{}, err
	}
	if len(archives) == 0 {
		return Archive{}, fmt.Errorf("%w: archive %v", ErrNotFound, args[0])
	}
	return archives[0], nil
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]File, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata: query files: %w", err)
	}
	defer s.pool.Put(conn)

	var files []File
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			files = append(files, scanFile(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: query files: %w", err)
	}
	return files, nil
}

func (s *Store) queryArchives(ctx context.Context, query string, args ...any) ([]Archive, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata: query archives: %w", err)
	}
	defer s.pool.Put(conn)

	var archives []Archive
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			archives = append(archives, scanArchive(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: query archives: %w", err)
	}
	return archives, nil
}

func (s *Store) queryInt(ctx context.Context, query string) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("metadata: query: %w", err)
	}
	defer s.pool.Put(conn)

	var value int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("metadata: %s: %w", query, err)
	}
	return value, nil
}

// scanFile reads the fileColumns projection.
func scanFile(stmt *sqlite.Stmt) File {
	file := File{
		ID:              stmt.ColumnInt64(0),
		Hash:            stmt.ColumnText(1),
		VirtualPath:     stmt.ColumnText(2),
		OriginalName:    stmt.ColumnText(3),
		Size:            stmt.ColumnInt64(4),
		MIMEType:        stmt.ColumnText(6),
		ParentArchiveID: stmt.ColumnInt64(7),
		Depth:           stmt.ColumnInt(8),
		CreatedAt:       timeFromNanos(stmt.ColumnInt64(9)),
	}
	if !stmt.ColumnIsNull(5) {
		file.ModifiedTime = timeFromNanos(stmt.ColumnInt64(5))
	}
	return file
}

// scanArchive reads the archiveColumns projection.
func scanArchive(stmt *sqlite.Stmt) Archive {
	return Archive{
		ID:              stmt.ColumnInt64(0),
		Hash:            stmt.ColumnText(1),
		VirtualPath:     stmt.ColumnText(2),
		OriginalName:    stmt.ColumnText(3),
		Type:            stmt.ColumnText(4),
		Size:            stmt.ColumnInt64(5),
		ParentArchiveID: stmt.ColumnInt64(6),
		Depth:           stmt.ColumnInt(7),
		Status:          ArchiveStatus(stmt.ColumnText(8)),
		CreatedAt:       timeFromNanos(stmt.ColumnInt64(9)),
		UpdatedAt:       timeFromNanos(stmt.ColumnInt64(10)),
	}
}
