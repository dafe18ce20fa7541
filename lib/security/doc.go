// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package security decides whether archive content is a decompression
// bomb. Every function here is pure arithmetic over sizes, ratios, and
// nesting depth; nothing touches the filesystem.
//
// Two kinds of output exist. A [Violation] halts extraction of the
// current archive and carries the metrics that triggered it. A
// [Warning] from [Detector.DetectSuspiciousPatterns] is advisory and
// never halts anything.
//
// # Halt order
//
// [Detector.ShouldHalt] evaluates three checks in a fixed order and
// reports the first one that fires:
//
//  1. compression ratio above Policy.MaxCompressionRatio (High)
//  2. risk score above Policy.RiskThreshold (Critical)
//  3. cumulative extracted size plus this entry above
//     Policy.MaxCumulativeSize (Critical)
//
// The risk score grows exponentially with depth: a ratio r at depth d
// scores r^d, so a modest 50x ratio repeated four levels deep scores
// 6.25 million. [RiskCompound] replaces r^d with the product of the
// actual ancestor ratios when the caller tracks them.
package security
