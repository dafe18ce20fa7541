// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile encodes v and atomically replaces path with the result.
// The parent directory must exist.
func WriteFile(path string, v any, perm os.FileMode) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("codec: encoding %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("codec: creating temporary file for %s: %w", path, err)
	}
	tempPath := temp.Name()
	success := false
	defer func() {
		if !success {
			temp.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := temp.Write(data); err != nil {
		return fmt.Errorf("codec: writing %s: %w", tempPath, err)
	}
	if err := temp.Chmod(perm); err != nil {
		return fmt.Errorf("codec: setting mode on %s: %w", tempPath, err)
	}
	if err := temp.Sync(); err != nil {
		return fmt.Errorf("codec: syncing %s: %w", tempPath, err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("codec: closing %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("codec: renaming %s to %s: %w", tempPath, path, err)
	}
	success = true
	return nil
}

// ReadFile decodes the CBOR file at path into v. A missing file
// returns an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("codec: reading %s: %w", path, err)
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decoding %s: %w", path, err)
	}
	return nil
}
