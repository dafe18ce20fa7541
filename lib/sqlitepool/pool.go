// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the database file. The parent directory must exist.
	// ":memory:" works only with PoolSize 1, since each in-memory
	// connection is a separate database.
	Path string

	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	// Durable selects synchronous=FULL instead of NORMAL.
	Durable bool

	// Migrations are SQL scripts applied in order. Migration i brings
	// the database to user_version i+1; scripts already applied are
	// skipped. Appending a script is the only supported schema change.
	Migrations []string

	// Logger receives pool lifecycle messages. Nil discards them.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas, for
	// function registration or connection-local settings.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size set of prepared SQLite connections. It is safe
// for concurrent use.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool and applies migrations on one connection
// before returning, so a schema error surfaces here rather than on
// the first query.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pragmas := connectionPragmas(cfg.Durable)
	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, pragmas, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	pool := &Pool{inner: inner, logger: logger, path: cfg.Path}

	if len(cfg.Migrations) > 0 {
		version, err := pool.migrate(cfg.Migrations)
		if err != nil {
			inner.Close()
			return nil, err
		}
		logger.Debug("sqlite schema ready", "path", cfg.Path, "version", version)
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)
	return pool, nil
}

// Path returns the database file path.
func (p *Pool) Path() string { return p.path }

// Take borrows a connection, blocking until one is free or ctx is
// done. Every successful Take must be paired with Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// With takes a connection, runs fn, and puts the connection back.
func (p *Pool) With(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close waits for borrowed connections to be returned and closes
// them all.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

func connectionPragmas(durable bool) []string {
	synchronous := "PRAGMA synchronous=NORMAL"
	if durable {
		synchronous = "PRAGMA synchronous=FULL"
	}
	return []string{
		"PRAGMA journal_mode=WAL",
		synchronous,
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
}

func prepareConnection(conn *sqlite.Conn, pragmas []string, onConnect func(*sqlite.Conn) error) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}

// migrate applies the scripts past the stored user_version, each in
// its own transaction together with the version bump.
func (p *Pool) migrate(migrations []string) (version int, err error) {
	conn, err := p.Take(context.Background())
	if err != nil {
		return 0, err
	}
	defer p.Put(conn)

	version, err = UserVersion(conn)
	if err != nil {
		return 0, err
	}
	if version > len(migrations) {
		return version, fmt.Errorf("sqlitepool: %s has schema version %d, newer than this binary's %d",
			p.path, version, len(migrations))
	}

	for index := version; index < len(migrations); index++ {
		if err := applyMigration(conn, index+1, migrations[index]); err != nil {
			return index, fmt.Errorf("sqlitepool: migration %d on %s: %w", index+1, p.path, err)
		}
		p.logger.Info("sqlite migration applied", "path", p.path, "version", index+1)
	}
	return len(migrations), nil
}

func applyMigration(conn *sqlite.Conn, version int, script string) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	if err = sqlitex.ExecuteScript(conn, script, nil); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version=%d", version), nil)
}

// UserVersion reads PRAGMA user_version.
func UserVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlitepool: reading user_version: %w", err)
	}
	return version, nil
}
