// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package workspace

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by [Workspace.Lock] when another process holds
// the workspace lock.
var ErrLocked = errors.New("workspace: locked by another import")

// Lock is an exclusive advisory lock on a workspace. The kernel drops
// it if the holding process dies.
type Lock struct {
	file *os.File
}

// Lock takes the workspace lock without blocking.
func (w *Workspace) Lock() (*Lock, error) {
	file, err := os.OpenFile(w.path(lockFile), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("workspace: opening lock: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("workspace: locking %s: %w", w.dir, err)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock. Calling it more than once is harmless.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("workspace: unlocking: %w", err)
	}
	return closeErr
}
