// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

// migrations are applied by sqlitepool in order; append only.
var migrations = []string{schemaV1}

const schemaV1 = `
CREATE TABLE archives (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	sha256_hash       TEXT    NOT NULL UNIQUE,
	virtual_path      TEXT    NOT NULL,
	original_name     TEXT    NOT NULL,
	archive_type      TEXT    NOT NULL,
	size              INTEGER NOT NULL DEFAULT 0,
	parent_archive_id INTEGER REFERENCES archives(id) ON DELETE SET NULL,
	depth_level       INTEGER NOT NULL DEFAULT 0,
	extraction_status TEXT    NOT NULL DEFAULT 'pending'
		CHECK (extraction_status IN ('pending', 'completed', 'failed')),
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX archives_parent ON archives(parent_archive_id);
CREATE INDEX archives_virtual_path ON archives(virtual_path);

CREATE TABLE files (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	sha256_hash       TEXT    NOT NULL UNIQUE,
	virtual_path      TEXT    NOT NULL,
	original_name     TEXT    NOT NULL,
	size              INTEGER NOT NULL,
	modified_time     INTEGER,
	mime_type         TEXT,
	parent_archive_id INTEGER REFERENCES archives(id) ON DELETE SET NULL,
	depth_level       INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX files_parent ON files(parent_archive_id);
CREATE INDEX files_virtual_path ON files(virtual_path);

CREATE VIRTUAL TABLE files_fts USING fts5(
	virtual_path,
	original_name,
	content = 'files',
	content_rowid = 'id'
);

CREATE TRIGGER files_fts_insert AFTER INSERT ON files BEGIN
	INSERT INTO files_fts (rowid, virtual_path, original_name)
	VALUES (new.id, new.virtual_path, new.original_name);
END;

CREATE TRIGGER files_fts_delete AFTER DELETE ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, virtual_path, original_name)
	VALUES ('delete', old.id, old.virtual_path, old.original_name);
END;

CREATE TRIGGER files_fts_update AFTER UPDATE OF virtual_path, original_name ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, virtual_path, original_name)
	VALUES ('delete', old.id, old.virtual_path, old.original_name);
	INSERT INTO files_fts (rowid, virtual_path, original_name)
	VALUES (new.id, new.virtual_path, new.original_name);
END;

CREATE TABLE index_state (
	workspace_id     TEXT    PRIMARY KEY,
	last_commit_time INTEGER NOT NULL,
	index_version    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE indexed_files (
	workspace_id  TEXT    NOT NULL,
	file_path     TEXT    NOT NULL,
	last_offset   INTEGER NOT NULL,
	file_size     INTEGER NOT NULL,
	modified_time INTEGER,
	hash          TEXT    NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (workspace_id, file_path)
);
`
