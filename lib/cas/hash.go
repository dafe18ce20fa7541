// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashBufferSize is the fixed read buffer used for streaming hashes.
const HashBufferSize = 64 * 1024

// EmptyHash is the SHA-256 of zero bytes.
const EmptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// ComputeHash returns the hex SHA-256 of content.
func ComputeHash(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// ComputeHashFile streams the file at path through SHA-256 using a
// fixed buffer, so memory use does not depend on file size. The digest
// equals ComputeHash of the file's contents.
func ComputeHashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cas: opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hash, _, err := ComputeHashReader(file)
	if err != nil {
		return "", fmt.Errorf("cas: hashing %s: %w", path, err)
	}
	return hash, nil
}

// ComputeHashReader consumes r and returns its hex SHA-256 and length.
func ComputeHashReader(r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	buffer := make([]byte, HashBufferSize)
	size, err := io.CopyBuffer(hasher, r, buffer)
	if err != nil {
		return "", size, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// ValidHash reports whether hash is 64 lowercase hex characters.
func ValidHash(hash string) bool {
	return len(hash) == 2*sha256.Size && isHex(hash)
}

func isHex(hash string) bool {
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
