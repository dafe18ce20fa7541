// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package security

import "fmt"

// ViolationKind classifies why extraction was halted.
type ViolationKind int

const (
	ExcessiveCompressionRatio ViolationKind = iota + 1
	CumulativeSizeExceeded
	RiskScoreExceeded
	SuspiciousPattern
)

func (k ViolationKind) String() string {
	switch k {
	case ExcessiveCompressionRatio:
		return "excessive_compression_ratio"
	case CumulativeSizeExceeded:
		return "cumulative_size_exceeded"
	case RiskScoreExceeded:
		return "risk_score_exceeded"
	case SuspiciousPattern:
		return "suspicious_pattern"
	default:
		return fmt.Sprintf("violation_kind(%d)", int(k))
	}
}

// Severity ranks a violation. The current archive halts at any
// severity; whether the whole run stops is the caller's decision.
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Metrics are the derived measurements for one entry.
type Metrics struct {
	CompressedSize   int64   `json:"compressed_size"`
	UncompressedSize int64   `json:"uncompressed_size"`
	Ratio            float64 `json:"ratio"`
	Depth            int     `json:"depth"`
	RiskScore        float64 `json:"risk_score"`
}

// NewMetrics computes the ratio and power-model risk score for one
// entry.
func NewMetrics(compressed, uncompressed int64, depth int) Metrics {
	ratio := CompressionRatio(compressed, uncompressed)
	return Metrics{
		CompressedSize:   compressed,
		UncompressedSize: uncompressed,
		Ratio:            ratio,
		Depth:            depth,
		RiskScore:        RiskScore(ratio, depth),
	}
}

// Violation is a halting security finding. It implements error so it
// can travel up through extraction code unchanged.
type Violation struct {
	Kind     ViolationKind
	Severity Severity
	Message  string
	Metrics  Metrics

	// CumulativeSize is the running total at the time of the check.
	CumulativeSize int64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("security: %s (%s): %s", v.Kind, v.Severity, v.Message)
}

// IsCritical reports whether the violation should abort the whole run.
func (v *Violation) IsCritical() bool {
	return v.Severity >= Critical
}

// Warning is an advisory finding from a pre-extraction scan.
type Warning struct {
	Message string
	// Path is the archive for whole-archive warnings, or the entry
	// name for per-entry warnings.
	Path string
	// Metrics is nil for warnings not derived from sizes.
	Metrics *Metrics
}
