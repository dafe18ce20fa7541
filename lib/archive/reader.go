// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"
)

// EntryType classifies an archive member.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDir
	EntrySymlink
	EntryOther
)

func (t EntryType) String() string {
	switch t {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	case EntrySymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry describes one archive member. Name is exactly as stored in
// the archive and must be resolved with PathRules before use.
type Entry struct {
	Name    string
	Type    EntryType
	ModTime time.Time

	// Size is the declared uncompressed size, or -1 when the format
	// does not declare it up front.
	Size int64

	// CompressedSize is the stored size of this entry alone, or -1
	// when the entry is part of a single compressed stream.
	CompressedSize int64
}

// Reader iterates an archive sequentially, in the manner of
// archive/tar: Next advances to the next entry and Read returns the
// current entry's content.
type Reader interface {
	// Next advances to the next entry. It returns io.EOF after the
	// last entry.
	Next() (*Entry, error)

	// Read reads the content of the current entry.
	Read(p []byte) (int, error)

	// Format reports the archive's format.
	Format() Format

	// Close releases the archive and any decoder state.
	Close() error
}

// Lister is implemented by readers whose format carries a directory
// up front (zip, 7z). Entries returns the full listing without
// decompressing anything.
type Lister interface {
	Entries() []Entry
}

// Open opens the archive at path in the given format. Pass
// FormatUnknown to detect it.
func Open(path string, format Format) (Reader, error) {
	if format == FormatUnknown {
		detected, err := Detect(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case FormatZip:
		return openZip(path)
	case FormatTar, FormatTarGz, FormatTarZst, FormatTarLz4:
		return openTar(path, format)
	case FormatGzip, FormatZstd, FormatLz4:
		return openStream(path, format)
	case FormatSevenZip:
		return openSevenZip(path)
	case FormatRar:
		return openRar(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

func openFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	return file, nil
}

func entryTypeFromMode(mode fs.FileMode) EntryType {
	switch {
	case mode.IsDir():
		return EntryDir
	case mode&fs.ModeSymlink != 0:
		return EntrySymlink
	case mode.IsRegular():
		return EntryFile
	default:
		return EntryOther
	}
}

func clampSize(size uint64) int64 {
	if size > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(size)
}

// streamEntryName derives the single entry name of a compressed
// stream from the archive file name.
func streamEntryName(path string) string {
	name := TrimSuffix(filepath.Base(path))
	if name == "" || name == "." {
		return "content"
	}
	return name
}
