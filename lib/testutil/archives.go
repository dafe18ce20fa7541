// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// fixtureTime is stamped on every fixture entry so archives are
// byte-for-byte reproducible.
var fixtureTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// File is one fixture archive member. Exactly one of Content, Dir, or
// Symlink applies.
type File struct {
	Name    string
	Content []byte
	Dir     bool
	Symlink string
}

// ZipBytes returns a zip archive holding files, deflate-compressed.
func ZipBytes(t TestingT, files []File) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for _, file := range files {
		header := &zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: fixtureTime,
		}
		switch {
		case file.Dir:
			header.Method = zip.Store
			header.SetMode(os.ModeDir | 0o755)
		case file.Symlink != "":
			header.SetMode(os.ModeSymlink | 0o777)
		default:
			header.SetMode(0o644)
		}
		w, err := writer.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip header %s: %v", file.Name, err)
		}
		content := file.Content
		if file.Symlink != "" {
			content = []byte(file.Symlink)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("zip write %s: %v", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buffer.Bytes()
}

// TarBytes returns an uncompressed tar archive holding files.
func TarBytes(t TestingT, files []File) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := tar.NewWriter(&buffer)
	for _, file := range files {
		header := &tar.Header{
			Name:    file.Name,
			Mode:    0o644,
			ModTime: fixtureTime,
			Size:    int64(len(file.Content)),
		}
		switch {
		case file.Dir:
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			header.Size = 0
		case file.Symlink != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = file.Symlink
			header.Size = 0
		default:
			header.Typeflag = tar.TypeReg
		}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("tar header %s: %v", file.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := writer.Write(file.Content); err != nil {
				t.Fatalf("tar write %s: %v", file.Name, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buffer.Bytes()
}

// GzipBytes compresses content as a single gzip member.
func GzipBytes(t TestingT, content []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)
	writeAndClose(t, "gzip", writer, content)
	return buffer.Bytes()
}

// ZstdBytes compresses content as a zstd frame.
func ZstdBytes(t TestingT, content []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer, err := zstd.NewWriter(&buffer)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	writeAndClose(t, "zstd", writer, content)
	return buffer.Bytes()
}

// Lz4Bytes compresses content as an LZ4 frame.
func Lz4Bytes(t TestingT, content []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	writeAndClose(t, "lz4", writer, content)
	return buffer.Bytes()
}

// TarGzBytes returns a gzip-compressed tar archive holding files.
func TarGzBytes(t TestingT, files []File) []byte {
	t.Helper()
	return GzipBytes(t, TarBytes(t, files))
}

// WriteFixture writes content to dir/name and returns the path.
func WriteFixture(t TestingT, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

func writeAndClose(t TestingT, codec string, writer io.WriteCloser, content []byte) {
	t.Helper()
	if _, err := writer.Write(content); err != nil {
		t.Fatalf("%s write: %v", codec, err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("%s close: %v", codec, err)
	}
}
