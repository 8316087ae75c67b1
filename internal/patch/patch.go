// Package patch merges model proposals back into a working table under
// the remediation policy, recording an audit entry for every decision.
package patch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/policy"
	"github.com/JonMunkholm/micareg/internal/remediation"
)

// Rejection reasons that are not produced by the policy.
const (
	ReasonTaskNotFound   = "Task not found"
	ReasonRowNotFound    = "Row not found by identifier"
	ReasonManualApproval = "Requires manual approval"
)

// Options control when a valid proposal is written.
type Options struct {
	// RequireApproval holds back every proposal that is not auto-apply
	// eligible.
	RequireApproval bool
	// AutoApplyThreshold is the confidence needed for auto-apply.
	AutoApplyThreshold float64
	// AutoApplyLowRisk enables auto-apply at all.
	AutoApplyLowRisk bool
}

// DefaultOptions require approval for everything.
func DefaultOptions() Options {
	return Options{
		RequireApproval:    true,
		AutoApplyThreshold: policy.DefaultAutoApplyThreshold,
	}
}

// Applicator applies patches.
type Applicator struct {
	policy policy.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewApplicator creates an applicator enforcing pol.
func NewApplicator(pol policy.Policy, logger *slog.Logger) *Applicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applicator{
		policy: pol,
		logger: logger.With("component", "patch"),
		now:    time.Now,
	}
}

// Apply writes the accepted proposals of p into t, which must be a working
// copy. Each proposal is checked against the live cell value, not the value
// captured in its task.
func (a *Applicator) Apply(t *csvio.Table, p *remediation.Patch, tasks []remediation.Task, opts Options) *remediation.ApplyResult {
	byID := make(map[string]remediation.Task, len(tasks))
	for _, task := range tasks {
		byID[task.TaskID] = task
	}

	res := &remediation.ApplyResult{
		PatchID:         p.PatchID,
		AppliedAt:       a.now().UTC(),
		AppliedChanges:  []remediation.AppliedChange{},
		RejectedChanges: []remediation.RejectedChange{},
		Errors:          []string{},
	}

	for _, prop := range p.Proposals {
		task, ok := byID[prop.TaskID]
		if !ok {
			a.reject(res, remediation.RejectedChange{TaskID: prop.TaskID, Reason: ReasonTaskNotFound})
			continue
		}

		col := t.Index(task.Column)
		if col < 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("proposal %s: column %q not in table", prop.TaskID, task.Column))
			continue
		}

		row, ok := remediation.FindRow(t, task.RowIdentifier)
		if !ok {
			a.reject(res, remediation.RejectedChange{
				TaskID: prop.TaskID,
				Column: task.Column,
				Reason: ReasonRowNotFound,
			})
			continue
		}

		current := t.Cell(row, task.Column)
		rejected := remediation.RejectedChange{
			TaskID:        prop.TaskID,
			Column:        task.Column,
			Row:           row + 2,
			CurrentValue:  current,
			ProposedValue: prop.ProposedValue,
		}

		if ok, reason := a.policy.Validate(prop, current, task.Column); !ok {
			rejected.Reason = reason
			a.reject(res, rejected)
			continue
		}

		auto := opts.AutoApplyLowRisk && policy.CanAutoApply(prop, opts.AutoApplyThreshold)
		if opts.RequireApproval && !auto {
			rejected.Reason = ReasonManualApproval
			rejected.Confidence = prop.Confidence
			rejected.RiskLevel = prop.RiskLevel
			rejected.CanonicalRiskLevel = policy.RiskFor(prop.TransformationType)
			a.reject(res, rejected)
			continue
		}

		t.Set(row, col, prop.ProposedValue)
		res.AppliedChanges = append(res.AppliedChanges, remediation.AppliedChange{
			TaskID:             prop.TaskID,
			Column:             task.Column,
			Row:                row + 2,
			OldValue:           current,
			NewValue:           prop.ProposedValue,
			Confidence:         prop.Confidence,
			Reasoning:          prop.Reasoning,
			TransformationType: prop.TransformationType,
			RiskLevel:          prop.RiskLevel,
			CanonicalRiskLevel: policy.RiskFor(prop.TransformationType),
			AppliedAt:          a.now().UTC(),
		})
		a.logger.Info("proposal applied",
			"task_id", prop.TaskID,
			"row", row+2,
			"column", task.Column,
			"auto", auto,
		)
	}

	res.AppliedCount = len(res.AppliedChanges)
	res.RejectedCount = len(res.RejectedChanges)
	return res
}

func (a *Applicator) reject(res *remediation.ApplyResult, rc remediation.RejectedChange) {
	res.RejectedChanges = append(res.RejectedChanges, rc)
	a.logger.Debug("proposal rejected", "task_id", rc.TaskID, "column", rc.Column, "reason", rc.Reason)
}
