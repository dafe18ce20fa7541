// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrity cross-checks the metadata record against the
// content-addressed store.
//
// For every file and archive row the [Verifier] confirms that an
// object exists under the recorded hash and that re-hashing it yields
// that hash. The result is a [Report]; verification never modifies
// either store.
package integrity
