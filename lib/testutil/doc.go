// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers: channel assertions
// with hang protection, unique identifiers, and builders for fixture
// archives in every format the ingestion engine reads.
//
// Fixture archives are produced with the same codec libraries the
// readers use, so a round trip through a builder and lib/archive
// exercises real encoder output rather than hand-assembled bytes.
package testutil
