// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/bodgit/sevenzip"
)

// sevenZipReader walks a 7z archive. Members of one folder share a
// compressed stream, so no entry has a compressed size of its own.
type sevenZipReader struct {
	archive *sevenzip.ReadCloser
	index   int
	file    *sevenzip.File
	content io.ReadCloser
}

func openSevenZip(path string) (*sevenZipReader, error) {
	archive, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening 7z %s: %w", path, err)
	}
	return &sevenZipReader{archive: archive}, nil
}

func (r *sevenZipReader) Format() Format { return FormatSevenZip }

func (r *sevenZipReader) Next() (*Entry, error) {
	r.closeContent()
	if r.index >= len(r.archive.File) {
		r.file = nil
		return nil, io.EOF
	}
	r.file = r.archive.File[r.index]
	r.index++
	entry := sevenZipEntry(r.file)
	return &entry, nil
}

func (r *sevenZipReader) Read(p []byte) (int, error) {
	if r.file == nil {
		return 0, io.EOF
	}
	if r.content == nil {
		content, err := r.file.Open()
		if err != nil {
			return 0, fmt.Errorf("archive: opening 7z member %s: %w", r.file.Name, err)
		}
		r.content = content
	}
	return r.content.Read(p)
}

func (r *sevenZipReader) Entries() []Entry {
	entries := make([]Entry, 0, len(r.archive.File))
	for _, file := range r.archive.File {
		entries = append(entries, sevenZipEntry(file))
	}
	return entries
}

func (r *sevenZipReader) Close() error {
	r.closeContent()
	return r.archive.Close()
}

func (r *sevenZipReader) closeContent() {
	if r.content != nil {
		r.content.Close()
		r.content = nil
	}
}

func sevenZipEntry(file *sevenzip.File) Entry {
	entryType := entryTypeFromMode(file.Mode())
	if strings.HasSuffix(file.Name, "/") {
		entryType = EntryDir
	}
	return Entry{
		Name:           file.Name,
		Type:           entryType,
		ModTime:        file.Modified,
		Size:           clampSize(file.UncompressedSize),
		CompressedSize: -1,
	}
}
