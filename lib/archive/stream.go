// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// streamReader presents a single compressed file as an archive with
// one entry.
type streamReader struct {
	format  Format
	file    *os.File
	content io.Reader
	release func()
	name    string
	modTime time.Time
	state   int // 0 before the entry, 1 on it, 2 after
}

func openStream(path string, format Format) (*streamReader, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, err
	}
	content, release, err := decompressor(format, file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}

	reader := &streamReader{
		format:  format,
		file:    file,
		content: content,
		release: release,
		name:    streamEntryName(path),
	}
	// gzip may record the original file name in its header.
	if gz, ok := content.(*gzip.Reader); ok && gz.Header.Name != "" {
		reader.modTime = gz.Header.ModTime
		if base := filepath.Base(filepath.Clean("/" + gz.Header.Name)); base != "/" && base != "." {
			reader.name = base
		}
	}
	return reader, nil
}

func (r *streamReader) Format() Format { return r.format }

func (r *streamReader) Next() (*Entry, error) {
	if r.state > 0 {
		r.state = 2
		return nil, io.EOF
	}
	r.state = 1
	return &Entry{
		Name:           r.name,
		Type:           EntryFile,
		ModTime:        r.modTime,
		Size:           -1,
		CompressedSize: -1,
	}, nil
}

func (r *streamReader) Read(p []byte) (int, error) {
	if r.state != 1 {
		return 0, io.EOF
	}
	return r.content.Read(p)
}

func (r *streamReader) Close() error {
	r.release()
	return r.file.Close()
}
