// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"fmt"
	"math"
	"sync"
)

// SuspiciousEntryCount is the entry count above which an archive is
// flagged as a likely bomb.
const SuspiciousEntryCount = 10_000

// CompressionRatio returns uncompressed/compressed. No data carries no
// risk (0/0 = 0); data from nothing is maximal risk (+Inf); an empty
// output is 0 regardless of input size. Negative sizes count as zero.
func CompressionRatio(compressed, uncompressed int64) float64 {
	compressed = max(compressed, 0)
	uncompressed = max(uncompressed, 0)
	switch {
	case uncompressed == 0:
		return 0
	case compressed == 0:
		return math.Inf(1)
	default:
		return float64(uncompressed) / float64(compressed)
	}
}

// RiskScore returns ratio at depth 0 and ratio^depth below it.
// Non-finite ratios score +Inf; non-positive ratios score 0.
func RiskScore(ratio float64, depth int) float64 {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return math.Inf(1)
	}
	if ratio <= 0 {
		return 0
	}
	if depth <= 0 {
		return ratio
	}
	return math.Pow(ratio, float64(depth))
}

// CompoundRiskScore multiplies ratio by every ancestor ratio. An empty
// chain scores the same as RiskScore at depth 0.
func CompoundRiskScore(ratio float64, ancestors []float64) float64 {
	score := RiskScore(ratio, 0)
	for _, ancestor := range ancestors {
		if math.IsNaN(ancestor) || math.IsInf(ancestor, 0) {
			return math.Inf(1)
		}
		if ancestor <= 0 {
			return 0
		}
		score *= ancestor
	}
	return score
}

// Check is the input to [Detector.Evaluate].
type Check struct {
	CompressedSize   int64
	UncompressedSize int64
	Depth            int
	CumulativeSize   int64

	// AncestorRatios is consulted only under RiskCompound.
	AncestorRatios []float64
}

// Entry describes one archive member for pattern scanning.
type Entry struct {
	Name             string
	CompressedSize   int64
	UncompressedSize int64
	IsDir            bool
}

// Detector applies a Policy. It is safe for concurrent use; SetPolicy
// affects checks that start after it returns.
type Detector struct {
	mu     sync.RWMutex
	policy Policy
}

// NewDetector returns a detector enforcing policy.
func NewDetector(policy Policy) *Detector {
	return &Detector{policy: policy}
}

// Policy returns the policy currently in force.
func (d *Detector) Policy() Policy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.policy
}

// SetPolicy installs a new policy for subsequent checks.
func (d *Detector) SetPolicy(policy Policy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy = policy
}

// ShouldHalt is Evaluate under the power risk model with no ancestor
// chain.
func (d *Detector) ShouldHalt(compressed, uncompressed int64, depth int, cumulative int64) (bool, *Violation) {
	return d.Evaluate(Check{
		CompressedSize:   compressed,
		UncompressedSize: uncompressed,
		Depth:            depth,
		CumulativeSize:   cumulative,
	})
}

// Evaluate runs the three halt checks in order and returns the first
// violation found. A nil violation means extraction may continue.
func (d *Detector) Evaluate(check Check) (bool, *Violation) {
	policy := d.Policy()

	metrics := NewMetrics(check.CompressedSize, check.UncompressedSize, check.Depth)
	if policy.RiskModel == RiskCompound && len(check.AncestorRatios) > 0 {
		metrics.RiskScore = CompoundRiskScore(metrics.Ratio, check.AncestorRatios)
	}

	if metrics.Ratio > policy.MaxCompressionRatio {
		return true, &Violation{
			Kind:     ExcessiveCompressionRatio,
			Severity: High,
			Message: fmt.Sprintf("compression ratio %.2f exceeds limit %.2f",
				metrics.Ratio, policy.MaxCompressionRatio),
			Metrics:        metrics,
			CumulativeSize: check.CumulativeSize,
		}
	}

	if metrics.RiskScore > policy.RiskThreshold {
		return true, &Violation{
			Kind:     RiskScoreExceeded,
			Severity: Critical,
			Message: fmt.Sprintf("risk score %.2f at depth %d exceeds threshold %.2f",
				metrics.RiskScore, metrics.Depth, policy.RiskThreshold),
			Metrics:        metrics,
			CumulativeSize: check.CumulativeSize,
		}
	}

	total := saturatingAdd(max(check.CumulativeSize, 0), max(check.UncompressedSize, 0))
	if total > policy.MaxCumulativeSize {
		return true, &Violation{
			Kind:     CumulativeSizeExceeded,
			Severity: Critical,
			Message: fmt.Sprintf("cumulative size %d would exceed limit %d",
				total, policy.MaxCumulativeSize),
			Metrics:        metrics,
			CumulativeSize: check.CumulativeSize,
		}
	}

	return false, nil
}

// DetectSuspiciousPatterns scans an archive listing before extraction.
// It warns when the overall ratio passes half the ratio limit, when any
// file entry passes 80% of it, or when the archive has more than
// SuspiciousEntryCount entries. Entries with a negative CompressedSize
// share a solid stream and are left out of the ratio checks; their
// ratio is only known once extracted. The result never halts
// extraction.
func (d *Detector) DetectSuspiciousPatterns(archivePath string, entries []Entry) []Warning {
	if len(entries) == 0 {
		return nil
	}
	policy := d.Policy()

	var totalCompressed, totalUncompressed int64
	for _, entry := range entries {
		if entry.CompressedSize < 0 {
			continue
		}
		totalCompressed = saturatingAdd(totalCompressed, entry.CompressedSize)
		totalUncompressed = saturatingAdd(totalUncompressed, max(entry.UncompressedSize, 0))
	}

	var warnings []Warning

	overall := CompressionRatio(totalCompressed, totalUncompressed)
	if overall > policy.MaxCompressionRatio*0.5 {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("archive has high overall compression ratio %.2f (limit %.2f)",
				overall, policy.MaxCompressionRatio),
			Path: archivePath,
			Metrics: &Metrics{
				CompressedSize:   totalCompressed,
				UncompressedSize: totalUncompressed,
				Ratio:            overall,
				RiskScore:        overall,
			},
		})
	}

	if len(entries) > SuspiciousEntryCount {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("archive contains %d entries, which may indicate a decompression bomb", len(entries)),
			Path:    archivePath,
		})
	}

	for _, entry := range entries {
		if entry.IsDir || entry.CompressedSize < 0 {
			continue
		}
		ratio := CompressionRatio(entry.CompressedSize, entry.UncompressedSize)
		if ratio > policy.MaxCompressionRatio*0.8 {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("entry has very high compression ratio %.2f", ratio),
				Path:    entry.Name,
				Metrics: &Metrics{
					CompressedSize:   entry.CompressedSize,
					UncompressedSize: entry.UncompressedSize,
					Ratio:            ratio,
					RiskScore:        ratio,
				},
			})
		}
	}

	return warnings
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
