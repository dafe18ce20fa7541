// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/archivist/lib/clock"
)

const (
	// DefaultCopyTimeout bounds a single file or stream copy.
	DefaultCopyTimeout = 300 * time.Second

	// DefaultBufferSize is the copy buffer used when Config.BufferSize
	// is zero.
	DefaultBufferSize = 64 * 1024

	objectsDir    = "objects"
	tmpDir        = "tmp"
	fallbackShard = "00"
)

// Config holds the parameters for opening a Store.
type Config struct {
	// Root is the workspace directory. Objects live under
	// Root/objects; in-flight copies under Root/tmp. Both are created
	// if missing.
	Root string

	// Clock measures copy timeouts. Required.
	Clock clock.Clock

	// Logger receives write and timeout events. If nil, a no-op
	// logger is used.
	Logger *slog.Logger

	// CopyTimeout bounds each copy. Defaults to DefaultCopyTimeout.
	CopyTimeout time.Duration

	// BufferSize is the copy buffer size. Defaults to
	// DefaultBufferSize.
	BufferSize int
}

// Store is a sharded SHA-256 object store rooted in one workspace. It
// is safe for concurrent use.
type Store struct {
	root        string
	objects     string
	tmp         string
	clock       clock.Clock
	logger      *slog.Logger
	copyTimeout time.Duration
	bufferSize  int

	// known holds hashes confirmed present on disk.
	known sync.Map
}

// Open creates the workspace directories and returns a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("cas: Root is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("cas: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	copyTimeout := cfg.CopyTimeout
	if copyTimeout <= 0 {
		copyTimeout = DefaultCopyTimeout
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	store := &Store{
		root:        cfg.Root,
		objects:     filepath.Join(cfg.Root, objectsDir),
		tmp:         filepath.Join(cfg.Root, tmpDir),
		clock:       cfg.Clock,
		logger:      logger,
		copyTimeout: copyTimeout,
		bufferSize:  bufferSize,
	}
	for _, dir := range []string{store.objects, store.tmp} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cas: creating %s: %w", dir, err)
		}
	}
	return store, nil
}

// Root returns the workspace directory.
func (s *Store) Root() string { return s.root }

// ObjectPath returns where the object for hash lives. The first two
// hex characters name the shard and the rest name the file. Invalid
// hashes go to the "00" shard: short hex strings under their own
// value, anything else under the SHA-256 of the string, so the result
// never leaves the objects directory or aliases a valid object.
func (s *Store) ObjectPath(hash string) string {
	switch {
	case ValidHash(hash):
		return filepath.Join(s.objects, hash[:2], hash[2:])
	case hash != "" && len(hash) <= 2 && isHex(hash):
		return filepath.Join(s.objects, fallbackShard, hash)
	default:
		return filepath.Join(s.objects, fallbackShard, ComputeHash([]byte(hash)))
	}
}

// StoreContent stores an in-memory buffer and returns its hash.
// Storing content that is already present is a no-op.
func (s *Store) StoreContent(ctx context.Context, content []byte) (string, error) {
	hash := ComputeHash(content)
	if s.isKnown(hash) {
		return hash, nil
	}
	stored, _, err := s.ingest(ctx, "content", bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	return stored, nil
}

// StoreFile stores the file at path and returns its hash. The file is
// hashed first so already-present content is never copied.
func (s *Store) StoreFile(ctx context.Context, path string) (string, error) {
	hash, err := ComputeHashFile(path)
	if err != nil {
		return "", err
	}
	if s.Exists(hash) {
		return hash, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cas: opening %s: %w", path, err)
	}
	defer file.Close()

	stored, _, err := s.ingest(ctx, path, file)
	if err != nil {
		return "", err
	}
	if stored != hash {
		return "", &IntegrityError{Path: path, Expected: hash, Actual: stored}
	}
	return stored, nil
}

// StoreReader stores everything read from r and returns the hash and
// byte count. Use it for archive entries that exist only as a stream.
func (s *Store) StoreReader(ctx context.Context, r io.Reader) (string, int64, error) {
	return s.ingest(ctx, "stream", r)
}

// ingest copies r into a temp file while hashing it, then publishes
// the temp file under its hash. The temp file is removed on every
// path, including timeout.
func (s *Store) ingest(ctx context.Context, source string, r io.Reader) (string, int64, error) {
	tmpFile, err := os.CreateTemp(s.tmp, "object-*")
	if err != nil {
		return "", 0, fmt.Errorf("cas: creating temp object: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	copyCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := s.clock.AfterFunc(s.copyTimeout, func() { cancel(ErrCopyTimeout) })
	defer timer.Stop()

	hasher := sha256.New()
	buffer := make([]byte, s.bufferSize)
	size, err := copyWithContext(copyCtx, io.MultiWriter(tmpFile, hasher), r, buffer)
	if err != nil {
		tmpFile.Close()
		if errors.Is(err, ErrCopyTimeout) {
			s.logger.Warn("object copy timed out",
				"source", source,
				"bytes_copied", size,
				"timeout", s.copyTimeout,
			)
		}
		return "", size, fmt.Errorf("cas: copying %s: %w", source, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return "", size, fmt.Errorf("cas: syncing temp object for %s: %w", source, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", size, fmt.Errorf("cas: closing temp object for %s: %w", source, err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	created, err := s.publish(tmpPath, hash)
	if err != nil {
		return "", size, err
	}
	if created {
		s.logger.Debug("object stored", "sha256", hash, "size", size, "source", source)
	}
	return hash, size, nil
}

// publish links tmpPath to the object path for hash. link(2) fails
// with EEXIST instead of replacing an existing object, which makes
// concurrent stores of identical content safe without a lock. Reports
// whether this call created the object.
func (s *Store) publish(tmpPath, hash string) (bool, error) {
	finalPath := s.ObjectPath(hash)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return false, fmt.Errorf("cas: creating shard for %s: %w", hash, err)
	}
	err := os.Link(tmpPath, finalPath)
	switch {
	case err == nil:
		s.known.Store(hash, struct{}{})
		return true, nil
	case errors.Is(err, fs.ErrExist):
		s.known.Store(hash, struct{}{})
		return false, nil
	default:
		return false, fmt.Errorf("cas: publishing %s: %w", hash, err)
	}
}

// copyWithContext copies src to dst through buffer, checking ctx
// between reads. On cancellation it returns context.Cause(ctx).
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buffer []byte) (int64, error) {
	var written int64
	for {
		if ctx.Err() != nil {
			return written, context.Cause(ctx)
		}
		n, readErr := src.Read(buffer)
		if n > 0 {
			if ctx.Err() != nil {
				return written, context.Cause(ctx)
			}
			wrote, writeErr := dst.Write(buffer[:n])
			written += int64(wrote)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (s *Store) isKnown(hash string) bool {
	_, ok := s.known.Load(hash)
	return ok
}

// Exists reports whether an object is stored under hash. The cache is
// consulted before the filesystem.
func (s *Store) Exists(hash string) bool {
	if s.isKnown(hash) {
		return true
	}
	info, err := os.Stat(s.ObjectPath(hash))
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	s.known.Store(hash, struct{}{})
	return true
}

// Read returns the full content of the object. Errors wrap ErrNotFound
// when the object does not exist.
func (s *Store) Read(hash string) ([]byte, error) {
	content, err := os.ReadFile(s.ObjectPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("cas: reading %s: %w", hash, err)
	}
	return content, nil
}

// Open returns the object for streaming reads. The caller closes it.
func (s *Store) Open(hash string) (*os.File, error) {
	file, err := os.Open(s.ObjectPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("cas: opening %s: %w", hash, err)
	}
	return file, nil
}

// VerifyIntegrity re-hashes the stored object and reports whether the
// digest still matches its name. A missing object returns an error
// wrapping ErrNotFound.
func (s *Store) VerifyIntegrity(hash string) (bool, error) {
	file, err := s.Open(hash)
	if err != nil {
		return false, err
	}
	defer file.Close()

	actual, _, err := ComputeHashReader(file)
	if err != nil {
		return false, fmt.Errorf("cas: hashing %s: %w", hash, err)
	}
	return actual == hash, nil
}

// Usage summarizes the object tree.
type Usage struct {
	Objects int64
	Bytes   int64
}

// Usage walks the object tree and totals regular files.
func (s *Store) Usage() (Usage, error) {
	var usage Usage
	err := filepath.WalkDir(s.objects, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		usage.Objects++
		usage.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("cas: walking %s: %w", s.objects, err)
	}
	return usage, nil
}

// StorageSize returns the total bytes held in objects.
func (s *Store) StorageSize() (int64, error) {
	usage, err := s.Usage()
	if err != nil {
		return 0, err
	}
	return usage.Bytes, nil
}
