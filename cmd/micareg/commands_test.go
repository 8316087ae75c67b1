package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/config"
	"github.com/JonMunkholm/micareg/internal/pipeline"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/validate"
)

func TestSiblingName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"out/CASP20260123_tasks.json", "out/CASP20260123_patch.json"},
		{"out/custom.json", "out/custom_patch.json"},
	}
	for _, tt := range tests {
		if got := siblingName(tt.path, "_tasks.json", "_patch.json"); got != tt.want {
			t.Errorf("siblingName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServiceOptions(t *testing.T) {
	cfg = &config.Config{Remediation: config.RemediationConfig{
		MaxTasks:           50,
		RequireApproval:    true,
		AutoApplyThreshold: 0.9,
	}}

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().Int("max-tasks", 0, "")
	addPolicyFlags(cmd)

	opts := serviceOptions(cmd)
	if opts.MaxTasks != 50 || !opts.Apply.RequireApproval || opts.Apply.AutoApplyThreshold != 0.9 {
		t.Errorf("defaults = %+v", opts)
	}

	if err := cmd.ParseFlags([]string{"--max-tasks=5", "--require-approval=false", "--auto-apply-low-risk"}); err != nil {
		t.Fatal(err)
	}
	opts = serviceOptions(cmd)
	if opts.MaxTasks != 5 || opts.Apply.RequireApproval || !opts.Apply.AutoApplyLowRisk || opts.Apply.AutoApplyThreshold != 0.9 {
		t.Errorf("overrides = %+v", opts)
	}
}

func TestSummarize(t *testing.T) {
	res := &pipeline.RunResult{
		RunID:        "run-1",
		Validation:   &validate.Report{Stats: validate.Stats{Errors: 2, Warnings: 1}},
		Clean:        &clean.Report{Changes: []clean.Change{{Type: clean.DateFixed}, {Type: clean.DateWarning, Warning: true}}},
		Revalidation: &validate.Report{Issues: []validate.Issue{{Code: validate.CodeEncodingSuspect}}},
		Tasks:        []remediation.Task{{TaskID: "t1"}},
	}

	s := summarize(res)
	if s.Errors != 2 || s.Changes != 1 || s.Tasks != 1 || s.Remaining == nil || *s.Remaining != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Applied != nil {
		t.Error("applied should be omitted without a patch")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"validate", "clean", "tasks", "remediate", "apply", "run", "registers", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
