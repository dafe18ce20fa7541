// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads archivist's YAML configuration.
//
// Configuration comes from a single file named by the ARCHIVIST_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no automatic discovery. When neither is given
// the CLI runs on [Default].
//
// After loading, ${HOME}, ${ARCHIVIST_ROOT}, and ${VAR:-default}
// patterns are expanded in workspace paths. No other environment
// variables override config values.
//
// The extraction section is an [engine.Policy]. A policy alone can
// also be overlaid per run from a YAML or JSONC file with
// [LoadPolicyFile].
package config
