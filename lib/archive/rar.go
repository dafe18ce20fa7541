// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarReader walks a RAR archive (versions 1.5 through 5) sequentially.
// There is no up-front listing, so it does not implement Lister.
type rarReader struct {
	archive    *rardecode.ReadCloser
	hasCurrent bool
}

func openRar(path string) (*rarReader, error) {
	archive, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening rar %s: %w", path, err)
	}
	return &rarReader{archive: archive}, nil
}

func (r *rarReader) Format() Format { return FormatRar }

func (r *rarReader) Next() (*Entry, error) {
	header, err := r.archive.Next()
	if err != nil {
		r.hasCurrent = false
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("archive: reading rar header: %w", err)
	}
	r.hasCurrent = true

	entry := Entry{
		Name:           header.Name,
		Type:           entryTypeFromMode(header.Mode()),
		ModTime:        header.ModificationTime,
		Size:           header.UnPackedSize,
		CompressedSize: header.PackedSize,
	}
	if header.IsDir {
		entry.Type = EntryDir
	}
	if header.UnKnownSize {
		entry.Size = -1
	}
	// Solid members continue the previous member's compressed stream.
	if header.Solid {
		entry.CompressedSize = -1
	}
	return &entry, nil
}

func (r *rarReader) Read(p []byte) (int, error) {
	if !r.hasCurrent {
		return 0, io.EOF
	}
	return r.archive.Read(p)
}

func (r *rarReader) Close() error {
	return r.archive.Close()
}
