// Package policy decides which model proposals may touch the working table.
package policy

import (
	"fmt"

	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
)

const (
	// MinConfidence is the floor below which a proposal is rejected.
	MinConfidence = 0.5

	// DefaultAutoApplyThreshold is the confidence needed for auto-apply.
	DefaultAutoApplyThreshold = 0.9
)

// riskLevels is the canonical risk of each transformation, kept for audit.
// Auto-apply is gated on the risk the model reports.
var riskLevels = map[remediation.TransformationType]remediation.RiskLevel{
	remediation.TransformEncodingFix:      remediation.RiskLow,
	remediation.TransformCountryNormalize: remediation.RiskLow,
	remediation.TransformWebsiteFix:       remediation.RiskLow,
	remediation.TransformDateFix:          remediation.RiskMedium,
	remediation.TransformAddressFix:       remediation.RiskMedium,
}

// Policy holds the guardrails. The zero value forbids nothing and has no
// confidence floor; use Default.
type Policy struct {
	ForbiddenColumns         map[string]bool
	ForbiddenTransformations map[remediation.TransformationType]bool
	MinConfidence            float64
}

// Default forbids edits to the LEI column and requires MinConfidence.
func Default() Policy {
	return Policy{
		ForbiddenColumns:         map[string]bool{schema.ColumnLEI: true},
		ForbiddenTransformations: map[remediation.TransformationType]bool{},
		MinConfidence:            MinConfidence,
	}
}

// Validate checks p against the rules in order: forbidden column,
// forbidden transformation, confidence floor. The first failing rule
// gives the reason. currentValue is the live cell value; no rule reads it
// today.
func (pol Policy) Validate(p remediation.Proposal, currentValue, column string) (bool, string) {
	if pol.ForbiddenColumns[column] {
		return false, fmt.Sprintf("Forbidden column: %s cannot be modified by a model", column)
	}
	if pol.ForbiddenTransformations[p.TransformationType] {
		return false, fmt.Sprintf("Forbidden transformation type: %s", p.TransformationType)
	}
	if p.Confidence < pol.MinConfidence {
		return false, fmt.Sprintf("Confidence too low: %.2f (minimum %.2f)", p.Confidence, pol.MinConfidence)
	}
	return true, ""
}

// RiskFor returns the canonical risk of t. Unknown types are HIGH.
func RiskFor(t remediation.TransformationType) remediation.RiskLevel {
	if r, ok := riskLevels[t]; ok {
		return r
	}
	return remediation.RiskHigh
}

// CanAutoApply reports whether p may be applied without review: the model
// must call it LOW risk and be at least threshold confident.
func CanAutoApply(p remediation.Proposal, threshold float64) bool {
	return p.RiskLevel == remediation.RiskLow && p.Confidence >= threshold
}
