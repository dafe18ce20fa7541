// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the SQLite connection pool behind the
// archivist metadata database.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool: every connection
// gets the same pragmas, an optional per-connection hook, and the
// schema is brought up to date through numbered migrations tracked in
// PRAGMA user_version. Connections are not safe for concurrent use;
// each goroutine takes its own and puts it back.
//
// # Pragmas
//
//   - journal_mode=WAL so hashing workers can read while the engine
//     writes a batch.
//   - synchronous=NORMAL by default, FULL when Config.Durable is set.
//     NORMAL survives a process crash; FULL also survives power loss.
//   - busy_timeout=5000 so concurrent writers queue instead of failing
//     with SQLITE_BUSY.
//   - foreign_keys=ON. Files reference their archive and archives
//     reference their parent.
//   - temp_store=MEMORY and an 8 MB page cache.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:       filepath.Join(workspace, "metadata.db"),
//	    Logger:     logger,
//	    Migrations: []string{schemaV1},
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.With(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "SELECT count(*) FROM files", &sqlitex.ExecOptions{...})
//	})
//
// Callers write SQL directly and manage transactions with
// sqlitex.ImmediateTransaction. There is no query builder.
package sqlitepool
