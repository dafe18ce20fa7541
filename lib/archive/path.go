// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PathRules bounds how untrusted entry names map onto the filesystem.
type PathRules struct {
	// MaxComponentLength is the longest single path component kept
	// verbatim. Longer components are shortened.
	MaxComponentLength int `yaml:"max_component_length" json:"max_component_length"`

	// MaxComponents is the deepest directory nesting accepted inside
	// one archive.
	MaxComponents int `yaml:"max_components" json:"max_components"`

	// MaxPathLength is the longest resolved path kept verbatim. When
	// exceeded the final component is shortened.
	MaxPathLength int `yaml:"max_path_length" json:"max_path_length"`

	// ReservedNames are rejected as a component base name, compared
	// case-insensitively and ignoring any extension.
	ReservedNames []string `yaml:"reserved_names" json:"reserved_names"`
}

// DefaultPathRules returns limits that are safe on every platform the
// workspace might be copied to, including Windows device names.
func DefaultPathRules() PathRules {
	return PathRules{
		MaxComponentLength: 255,
		MaxComponents:      100,
		MaxPathLength:      4096,
		ReservedNames: []string{
			"CON", "PRN", "AUX", "NUL",
			"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
			"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
		},
	}
}

// PathError rejects an entry name.
type PathError struct {
	Name   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("archive: unsafe entry name %q: %s", e.Name, e.Reason)
}

// Resolved is a safe on-disk location for an entry.
type Resolved struct {
	// Path is the absolute target path under the base directory.
	Path string

	// Relative is the cleaned slash-separated name inside the archive,
	// after any shortening.
	Relative string

	// Shortened is set when a component was replaced by a shortened
	// form.
	Shortened bool
}

// Resolve maps name onto baseDir. It rejects empty names, control
// characters, absolute paths, parent references, reserved names, and
// excessive nesting. The result is always inside baseDir.
func (r PathRules) Resolve(baseDir, name string) (Resolved, error) {
	if name == "" {
		return Resolved{}, &PathError{Name: name, Reason: "empty name"}
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f {
			return Resolved{}, &PathError{Name: name, Reason: "control character"}
		}
	}

	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") || hasDrivePrefix(normalized) {
		return Resolved{}, &PathError{Name: name, Reason: "absolute path"}
	}

	var components []string
	shortened := false
	for _, component := range strings.Split(normalized, "/") {
		switch component {
		case "", ".":
			continue
		case "..":
			return Resolved{}, &PathError{Name: name, Reason: "parent directory reference"}
		}
		if r.isReserved(component) {
			return Resolved{}, &PathError{Name: name, Reason: "reserved device name " + component}
		}
		if r.MaxComponentLength > 0 && len(component) > r.MaxComponentLength {
			component = ShortenName(component)
			shortened = true
		}
		components = append(components, component)
	}
	if len(components) == 0 {
		return Resolved{}, &PathError{Name: name, Reason: "no path components"}
	}
	if r.MaxComponents > 0 && len(components) > r.MaxComponents {
		return Resolved{}, &PathError{Name: name, Reason: fmt.Sprintf("nesting depth %d exceeds %d", len(components), r.MaxComponents)}
	}

	target := filepath.Join(append([]string{baseDir}, components...)...)
	if r.MaxPathLength > 0 && len(target) > r.MaxPathLength {
		last := len(components) - 1
		components[last] = ShortenName(components[last])
		shortened = true
		target = filepath.Join(append([]string{baseDir}, components...)...)
		if len(target) > r.MaxPathLength {
			return Resolved{}, &PathError{Name: name, Reason: fmt.Sprintf("path length %d exceeds %d", len(target), r.MaxPathLength)}
		}
	}

	relative, err := filepath.Rel(baseDir, target)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return Resolved{}, &PathError{Name: name, Reason: "escapes extraction directory"}
	}

	return Resolved{
		Path:      target,
		Relative:  filepath.ToSlash(relative),
		Shortened: shortened,
	}, nil
}

func (r PathRules) isReserved(component string) bool {
	base := component
	if index := strings.IndexByte(base, '.'); index >= 0 {
		base = base[:index]
	}
	for _, reserved := range r.ReservedNames {
		if strings.EqualFold(base, reserved) {
			return true
		}
	}
	return false
}

func hasDrivePrefix(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		('a' <= name[0] && name[0] <= 'z' || 'A' <= name[0] && name[0] <= 'Z')
}

const (
	shortPrefixLength = 16
	shortHashLength   = 16
	maxKeptExtension  = 16
)

// ShortenName replaces a long component with its first 16 bytes, an
// underscore, 16 hex characters of its SHA-256, and its extension.
// Distinct inputs stay distinct with overwhelming probability.
func ShortenName(component string) string {
	extension := filepath.Ext(component)
	if len(extension) > maxKeptExtension {
		extension = ""
	}
	stem := strings.TrimSuffix(component, extension)

	prefix := stem
	if len(prefix) > shortPrefixLength {
		prefix = prefix[:shortPrefixLength]
		for len(prefix) > 0 && !utf8.ValidString(prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	digest := sha256.Sum256([]byte(component))
	return prefix + "_" + hex.EncodeToString(digest[:])[:shortHashLength] + extension
}
