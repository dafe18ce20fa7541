// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cas is the workspace's content-addressable object store.
//
// Every object is named by the lowercase hex SHA-256 of its bytes and
// stored raw, with no header, at
//
//	<workspace>/objects/<first 2 hex>/<remaining 62 hex>
//
// The two-character shard bounds directory fan-out at 256 entries per
// level regardless of corpus size. A malformed or short hash maps to
// the "00" shard so path derivation never fails.
//
// # Write path
//
// Content is streamed into a temp file under <workspace>/tmp while
// being hashed, then published with link(2). Linking fails with EEXIST
// when the object already exists, so two writers racing on identical
// content cannot corrupt each other and no reader ever sees a partial
// object under a final name. The temp file is always removed.
//
// Copies from files and readers are bounded by Config.CopyTimeout,
// measured on the injected clock. On timeout the temp file is removed
// and the error wraps [ErrCopyTimeout].
//
// # Existence cache
//
// Hashes known to be stored are kept in an in-memory set so repeated
// stores of the same content skip the filesystem. The set is a cache
// of facts that are never invalidated by this process: objects are
// never deleted through the Store.
package cas
