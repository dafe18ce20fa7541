// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"errors"
	"fmt"
	"math"
)

const (
	// GiB is 1024^3 bytes.
	GiB int64 = 1 << 30

	DefaultMaxCompressionRatio = 100.0
	DefaultMaxCumulativeSize   = 10 * GiB
	DefaultMaxWorkspaceSize    = 50 * GiB
	DefaultRiskThreshold       = 1_000_000.0
)

// RiskModel selects how nesting depth compounds the risk score.
type RiskModel string

const (
	// RiskPower scores an entry as ratio^depth.
	RiskPower RiskModel = "power"

	// RiskCompound scores an entry as the product of its ancestors'
	// ratios and its own.
	RiskCompound RiskModel = "compound"
)

// Policy holds the numeric thresholds the detector enforces. A Policy
// is a value; changing thresholds means installing a new Policy with
// [Detector.SetPolicy].
type Policy struct {
	// MaxCompressionRatio is the largest uncompressed/compressed ratio
	// accepted for a single entry.
	MaxCompressionRatio float64 `yaml:"max_compression_ratio" json:"max_compression_ratio"`

	// MaxCumulativeSize bounds the total uncompressed bytes extracted
	// from one top-level archive, nested content included.
	MaxCumulativeSize int64 `yaml:"max_cumulative_size" json:"max_cumulative_size"`

	// MaxWorkspaceSize bounds the bytes held in the workspace object
	// store before a new import is refused.
	MaxWorkspaceSize int64 `yaml:"max_workspace_size" json:"max_workspace_size"`

	// RiskThreshold is the largest risk score accepted.
	RiskThreshold float64 `yaml:"risk_threshold" json:"risk_threshold"`

	// RiskModel defaults to RiskPower when empty.
	RiskModel RiskModel `yaml:"risk_model,omitempty" json:"risk_model,omitempty"`
}

// DefaultPolicy returns the standard thresholds: 100x ratio, 10 GiB per
// archive, 50 GiB per workspace, risk threshold one million.
func DefaultPolicy() Policy {
	return Policy{
		MaxCompressionRatio: DefaultMaxCompressionRatio,
		MaxCumulativeSize:   DefaultMaxCumulativeSize,
		MaxWorkspaceSize:    DefaultMaxWorkspaceSize,
		RiskThreshold:       DefaultRiskThreshold,
		RiskModel:           RiskPower,
	}
}

// Validate reports every malformed threshold.
func (p Policy) Validate() error {
	var errs []error
	if !(p.MaxCompressionRatio > 0) || math.IsInf(p.MaxCompressionRatio, 0) {
		errs = append(errs, fmt.Errorf("max_compression_ratio must be a positive finite number, got %v", p.MaxCompressionRatio))
	}
	if p.MaxCumulativeSize <= 0 {
		errs = append(errs, fmt.Errorf("max_cumulative_size must be positive, got %d", p.MaxCumulativeSize))
	}
	if p.MaxWorkspaceSize <= 0 {
		errs = append(errs, fmt.Errorf("max_workspace_size must be positive, got %d", p.MaxWorkspaceSize))
	}
	if !(p.RiskThreshold > 0) {
		errs = append(errs, fmt.Errorf("risk_threshold must be positive, got %v", p.RiskThreshold))
	}
	switch p.RiskModel {
	case "", RiskPower, RiskCompound:
	default:
		errs = append(errs, fmt.Errorf("risk_model must be %q or %q, got %q", RiskPower, RiskCompound, p.RiskModel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("security policy: %w", errors.Join(errs...))
	}
	return nil
}
