// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies a container or compression format.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGz
	FormatTarZst
	FormatTarLz4
	FormatGzip
	FormatZstd
	FormatLz4
	FormatSevenZip
	FormatRar
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTarLz4:
		return "tar.lz4"
	case FormatGzip:
		return "gz"
	case FormatZstd:
		return "zst"
	case FormatLz4:
		return "lz4"
	case FormatSevenZip:
		return "7z"
	case FormatRar:
		return "rar"
	default:
		return "unknown"
	}
}

// IsStream reports whether the format is a single compressed stream
// rather than a container of named entries.
func (f Format) IsStream() bool {
	return f == FormatGzip || f == FormatZstd || f == FormatLz4
}

// ErrUnsupported is returned for files in no supported format.
var ErrUnsupported = errors.New("archive: unsupported format")

// suffixes is ordered longest match first.
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tar.zst", FormatTarZst},
	{".tar.lz4", FormatTarLz4},
	{".tgz", FormatTarGz},
	{".tzst", FormatTarZst},
	{".zip", FormatZip},
	{".tar", FormatTar},
	{".gz", FormatGzip},
	{".zst", FormatZstd},
	{".lz4", FormatLz4},
	{".7z", FormatSevenZip},
	{".rar", FormatRar},
}

// DetectName returns the format implied by name's extension, or
// FormatUnknown.
func DetectName(name string) Format {
	lower := strings.ToLower(name)
	for _, candidate := range suffixes {
		if strings.HasSuffix(lower, candidate.suffix) {
			return candidate.format
		}
	}
	return FormatUnknown
}

// TrimSuffix returns name without its archive extension.
func TrimSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, candidate := range suffixes {
		if strings.HasSuffix(lower, candidate.suffix) {
			return name[:len(name)-len(candidate.suffix)]
		}
	}
	return name
}

// sniffSize covers every magic number filetype inspects, including
// the tar "ustar" marker at offset 257.
const sniffSize = 512

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect returns the format of the file at path, trying the name and
// then the content. It returns ErrUnsupported when neither matches.
func Detect(path string) (Format, error) {
	if format := DetectName(path); format != FormatUnknown {
		return format, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	defer file.Close()

	head, err := readHead(file)
	if err != nil {
		return FormatUnknown, fmt.Errorf("archive: reading %s: %w", path, err)
	}
	format, err := detectContent(head, file)
	if err != nil {
		return FormatUnknown, fmt.Errorf("archive: sniffing %s: %w", path, err)
	}
	if format == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return format, nil
}

// detectContent classifies head. For compressed streams it rewinds
// file and peeks at the decompressed prefix to tell a compressed tar
// from a single compressed file.
func detectContent(head []byte, file io.ReadSeeker) (Format, error) {
	var streamFormat, tarFormat Format
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		streamFormat, tarFormat = FormatZstd, FormatTarZst
	case bytes.HasPrefix(head, lz4Magic):
		streamFormat, tarFormat = FormatLz4, FormatTarLz4
	case filetype.Is(head, "gz"):
		streamFormat, tarFormat = FormatGzip, FormatTarGz
	case filetype.Is(head, "zip"):
		return FormatZip, nil
	case filetype.Is(head, "tar"):
		return FormatTar, nil
	case filetype.Is(head, "7z"):
		return FormatSevenZip, nil
	case filetype.Is(head, "rar"):
		return FormatRar, nil
	default:
		return FormatUnknown, nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	decompressed, closer, err := decompressor(streamFormat, file)
	if err != nil {
		return FormatUnknown, err
	}
	defer closer()

	inner, err := readHead(decompressed)
	if err != nil {
		// A corrupt stream is still that kind of stream; extraction
		// will report the corruption with better context.
		return streamFormat, nil
	}
	if filetype.Is(inner, "tar") {
		return tarFormat, nil
	}
	return streamFormat, nil
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, sniffSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

// maxZstdWindow bounds decoder memory so a crafted frame header cannot
// demand gigabytes of window.
const maxZstdWindow = 256 << 20

// decompressor wraps r in the codec for a stream format. The returned
// close function releases decoder resources and never fails.
func decompressor(format Format, r io.Reader) (io.Reader, func(), error) {
	switch format {
	case FormatGzip, FormatTarGz:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return reader, func() { reader.Close() }, nil
	case FormatZstd, FormatTarZst:
		reader, err := zstd.NewReader(r,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(maxZstdWindow),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return reader, reader.Close, nil
	case FormatLz4, FormatTarLz4:
		return lz4.NewReader(r), func() {}, nil
	case FormatTar:
		return r, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}
