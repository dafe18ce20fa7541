// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
)

type tarReader struct {
	format     Format
	file       *os.File
	release    func()
	tar        *tar.Reader
	hasCurrent bool
}

func openTar(path string, format Format) (*tarReader, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, err
	}
	decompressed, release, err := decompressor(format, file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	return &tarReader{
		format:  format,
		file:    file,
		release: release,
		tar:     tar.NewReader(decompressed),
	}, nil
}

func (r *tarReader) Format() Format { return r.format }

func (r *tarReader) Next() (*Entry, error) {
	header, err := r.tar.Next()
	if err != nil {
		r.hasCurrent = false
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("archive: reading %s header: %w", r.format, err)
	}
	r.hasCurrent = true

	entry := Entry{
		Name:           header.Name,
		Type:           tarEntryType(header.Typeflag),
		ModTime:        header.ModTime,
		Size:           header.Size,
		CompressedSize: -1,
	}
	if r.format == FormatTar {
		entry.CompressedSize = header.Size
	}
	return &entry, nil
}

func (r *tarReader) Read(p []byte) (int, error) {
	if !r.hasCurrent {
		return 0, io.EOF
	}
	return r.tar.Read(p)
}

func (r *tarReader) Close() error {
	r.release()
	return r.file.Close()
}

func tarEntryType(flag byte) EntryType {
	switch flag {
	case tar.TypeReg:
		return EntryFile
	case tar.TypeDir:
		return EntryDir
	case tar.TypeSymlink, tar.TypeLink:
		return EntrySymlink
	default:
		return EntryOther
	}
}
