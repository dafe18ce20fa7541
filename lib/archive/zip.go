// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

type zipReader struct {
	archive *zip.ReadCloser
	index   int
	file    *zip.File
	content io.ReadCloser
}

func openZip(path string) (*zipReader, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening zip %s: %w", path, err)
	}
	return &zipReader{archive: archive}, nil
}

func (r *zipReader) Format() Format { return FormatZip }

func (r *zipReader) Next() (*Entry, error) {
	r.closeContent()
	if r.index >= len(r.archive.File) {
		r.file = nil
		return nil, io.EOF
	}
	r.file = r.archive.File[r.index]
	r.index++
	entry := zipEntry(r.file)
	return &entry, nil
}

// Read opens the current member lazily so entries that are skipped
// never touch the decompressor.
func (r *zipReader) Read(p []byte) (int, error) {
	if r.file == nil {
		return 0, io.EOF
	}
	if r.content == nil {
		content, err := r.file.Open()
		if err != nil {
			return 0, fmt.Errorf("archive: opening zip member %s: %w", r.file.Name, err)
		}
		r.content = content
	}
	return r.content.Read(p)
}

func (r *zipReader) Entries() []Entry {
	entries := make([]Entry, 0, len(r.archive.File))
	for _, file := range r.archive.File {
		entries = append(entries, zipEntry(file))
	}
	return entries
}

func (r *zipReader) Close() error {
	r.closeContent()
	return r.archive.Close()
}

func (r *zipReader) closeContent() {
	if r.content != nil {
		r.content.Close()
		r.content = nil
	}
}

func zipEntry(file *zip.File) Entry {
	entryType := entryTypeFromMode(file.Mode())
	if strings.HasSuffix(file.Name, "/") {
		entryType = EntryDir
	}
	return Entry{
		Name:           file.Name,
		Type:           entryType,
		ModTime:        file.Modified,
		Size:           clampSize(file.UncompressedSize64),
		CompressedSize: clampSize(file.CompressedSize64),
	}
}
