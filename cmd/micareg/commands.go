package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/pipeline"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [register] [file]",
	Short: "Validate a register file",
	Long:  `Check a register CSV against its schema and write the validation report as JSON.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runValidate,
}

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean [register] [file]",
	Short: "Apply deterministic repairs",
	Long:  `Write a cleaned copy of a register CSV and a report of every change. The input file is never modified.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runClean,
}

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks [register] [file]",
	Short: "Generate remediation tasks",
	Long:  `Validate a (usually cleaned) register CSV and turn the remaining issues into remediation tasks.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runTasks,
}

// remediateCmd represents the remediate command
var remediateCmd = &cobra.Command{
	Use:   "remediate [tasks.json]",
	Short: "Ask the model for fixes",
	Long:  `Send remediation tasks to the configured models, falling back in order, and write the resulting patch.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRemediate,
}

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply [register] [file] [patch.json]",
	Short: "Apply a patch under the remediation policy",
	Long:  `Merge accepted proposals into a copy of the file and write an audit report of every applied and rejected change.`,
	Args:  cobra.ExactArgs(3),
	RunE:  runApply,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [register] [file]",
	Short: "Run the whole pipeline",
	Long:  `Validate, clean, optionally re-validate, generate tasks and optionally remediate and apply, writing every artifact.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runPipeline,
}

// registersCmd represents the registers command
var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "List known registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, d := range schema.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-45s required: %s\n",
				d.Type, d.Label, strings.Join(d.RequiredColumns(), ", "))
		}
		return nil
	},
}

func setupCommands() {
	validateCmd.Flags().StringP("out", "o", "", "Report path (default: stdout)")
	validateCmd.Flags().Bool("fail-on-error", false, "Exit non-zero when ERROR issues are found")

	cleanCmd.Flags().StringP("out", "o", "", "Cleaned CSV path (default: <name>_clean.csv next to the input)")
	cleanCmd.Flags().String("report", "", "Clean report path (default: <name>_clean_report.json)")

	tasksCmd.Flags().StringP("out", "o", "", "Tasks path (default: <name>_tasks.json)")
	tasksCmd.Flags().Int("max-tasks", 0, "Maximum tasks (default: REMEDIATION_MAX_TASKS)")

	remediateCmd.Flags().StringP("out", "o", "", "Patch path (default: <name>_patch.json)")
	remediateCmd.Flags().StringSlice("models", nil, "Models to try in order (default: LLM_MODELS)")

	applyCmd.Flags().String("tasks", "", "Tasks file the patch was generated from (required)")
	applyCmd.Flags().StringP("out", "o", "", "Patched CSV path (default: <name>_clean_patched.csv)")
	applyCmd.Flags().String("report", "", "Apply report path (default: <name>_apply.json)")
	_ = applyCmd.MarkFlagRequired("tasks")
	addPolicyFlags(applyCmd)

	runCmd.Flags().String("out-dir", "", "Directory for artifacts (default: next to the input)")
	runCmd.Flags().Bool("revalidate", true, "Validate the cleaned file and derive tasks from that report")
	runCmd.Flags().Bool("remediate", false, "Call the model and apply the patch")
	runCmd.Flags().Int("max-tasks", 0, "Maximum tasks (default: REMEDIATION_MAX_TASKS)")
	addPolicyFlags(runCmd)

	rootCmd.AddCommand(validateCmd, cleanCmd, tasksCmd, remediateCmd, applyCmd, runCmd, registersCmd, serveCmd)
}

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("require-approval", true, "Hold back proposals that are not auto-apply eligible (default: REMEDIATION_REQUIRE_APPROVAL)")
	cmd.Flags().Bool("auto-apply-low-risk", false, "Auto-apply LOW risk proposals above the threshold (default: REMEDIATION_AUTO_APPLY_LOW_RISK)")
	cmd.Flags().Float64("threshold", 0, "Auto-apply confidence threshold (default: REMEDIATION_AUTO_APPLY_THRESHOLD)")
}

// serviceOptions starts from configuration and applies the flags the user
// set explicitly.
func serviceOptions(cmd *cobra.Command) pipeline.Options {
	opts := pipeline.OptionsFromConfig(cfg.Remediation)
	flags := cmd.Flags()
	if flags.Changed("max-tasks") {
		opts.MaxTasks, _ = flags.GetInt("max-tasks")
	}
	if flags.Changed("require-approval") {
		opts.Apply.RequireApproval, _ = flags.GetBool("require-approval")
	}
	if flags.Changed("auto-apply-low-risk") {
		opts.Apply.AutoApplyLowRisk, _ = flags.GetBool("auto-apply-low-risk")
	}
	if flags.Changed("threshold") {
		opts.Apply.AutoApplyThreshold, _ = flags.GetFloat64("threshold")
	}
	return opts
}

// emit writes v as JSON to path, or to stdout when path is empty.
func emit(cmd *cobra.Command, path string, v any) error {
	if path == "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return csvio.WriteJSON(path, v)
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func runValidate(cmd *cobra.Command, args []string) error {
	d, err := schema.Lookup(args[0])
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	t, err := svc.Load(args[1], d)
	if err != nil {
		return err
	}
	report := svc.Validate(t, d, filepath.Base(args[1]))
	if err := emit(cmd, stringFlag(cmd, "out", ""), report); err != nil {
		return err
	}

	if fail, _ := cmd.Flags().GetBool("fail-on-error"); fail && report.HasErrors() {
		return fmt.Errorf("%d validation error(s) in %s", report.Stats.Errors, filepath.Base(args[1]))
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	d, err := schema.Lookup(args[0])
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	t, err := svc.Load(args[1], d)
	if err != nil {
		return err
	}
	arts := pipeline.ArtifactsFor(args[1], "")
	out := stringFlag(cmd, "out", arts.Cleaned)
	reportPath := stringFlag(cmd, "report", arts.CleanReport)

	res := svc.Clean(t, d, filepath.Base(args[1]))
	res.Report.OutputFile = filepath.Base(out)
	if err := csvio.WriteFile(out, res.Table, d.Comma()); err != nil {
		return err
	}
	if err := csvio.WriteJSON(reportPath, res.Report); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d change(s), %d warning(s)\n  cleaned: %s\n  report:  %s\n",
		len(res.Report.Mutations()), len(res.Report.Warnings()), out, reportPath)
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	d, err := schema.Lookup(args[0])
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	t, err := svc.Load(args[1], d)
	if err != nil {
		return err
	}
	out := stringFlag(cmd, "out", pipeline.ArtifactsFor(args[1], "").Tasks)

	report := svc.Validate(t, d, filepath.Base(args[1]))
	tasks := svc.GenerateTasks(report, t)
	if err := csvio.WriteJSON(out, tasks); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) written to %s\n", len(tasks), out)
	return nil
}

func runRemediate(cmd *cobra.Command, args []string) error {
	if models, _ := cmd.Flags().GetStringSlice("models"); len(models) > 0 {
		cfg.LLM.Models = models
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	var tasks []remediation.Task
	if err := csvio.ReadJSON(args[0], &tasks); err != nil {
		return err
	}
	out := stringFlag(cmd, "out", siblingName(args[0], "_tasks.json", "_patch.json"))

	p, err := svc.Remediate(cmd.Context(), tasks)
	if err != nil {
		return err
	}
	if err := csvio.WriteJSON(out, p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d proposal(s) for %d task(s) from %s written to %s\n",
		len(p.Proposals), len(tasks), p.ModelName, out)
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	d, err := schema.Lookup(args[0])
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	t, err := svc.Load(args[1], d)
	if err != nil {
		return err
	}
	var p remediation.Patch
	if err := csvio.ReadJSON(args[2], &p); err != nil {
		return err
	}
	var tasks []remediation.Task
	if err := csvio.ReadJSON(stringFlag(cmd, "tasks", ""), &tasks); err != nil {
		return err
	}

	arts := pipeline.ArtifactsFor(args[1], "")
	out := stringFlag(cmd, "out", arts.Patched)
	reportPath := stringFlag(cmd, "report", arts.ApplyReport)

	patched, res := svc.Apply(t, &p, tasks)
	if err := csvio.WriteJSON(reportPath, res); err != nil {
		return err
	}
	if res.AppliedCount > 0 {
		if err := csvio.WriteFile(out, patched, d.Comma()); err != nil {
			return err
		}
	} else {
		out = "(none, nothing applied)"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d applied, %d rejected, %d error(s)\n  patched: %s\n  report:  %s\n",
		res.AppliedCount, res.RejectedCount, len(res.Errors), out, reportPath)
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	d, err := schema.Lookup(args[0])
	if err != nil {
		return err
	}
	outDir := stringFlag(cmd, "out-dir", "")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	svc, done, err := newService(cmd.Context(), serviceOptions(cmd))
	if err != nil {
		return err
	}
	defer done()

	revalidate, _ := cmd.Flags().GetBool("revalidate")
	remediate, _ := cmd.Flags().GetBool("remediate")

	res, err := svc.Run(cmd.Context(), pipeline.RunOptions{
		Register:   d,
		Input:      args[1],
		OutputDir:  outDir,
		Revalidate: revalidate,
		Remediate:  remediate,
	})
	if err != nil {
		return err
	}
	return emit(cmd, "", summarize(res))
}

// runSummary is what run prints on stdout.
type runSummary struct {
	RunID     string             `json:"runId"`
	Errors    int                `json:"errors"`
	Warnings  int                `json:"warnings"`
	Changes   int                `json:"changes"`
	Remaining *int               `json:"remainingIssues,omitempty"`
	Tasks     int                `json:"tasks"`
	Applied   *int               `json:"applied,omitempty"`
	Rejected  *int               `json:"rejected,omitempty"`
	Artifacts pipeline.Artifacts `json:"artifacts"`
}

func summarize(res *pipeline.RunResult) runSummary {
	s := runSummary{
		RunID:     res.RunID,
		Errors:    res.Validation.Stats.Errors,
		Warnings:  res.Validation.Stats.Warnings,
		Changes:   len(res.Clean.Mutations()),
		Tasks:     len(res.Tasks),
		Artifacts: res.Artifacts,
	}
	if res.Revalidation != nil {
		n := len(res.Revalidation.Issues)
		s.Remaining = &n
	}
	if res.Apply != nil {
		s.Applied = &res.Apply.AppliedCount
		s.Rejected = &res.Apply.RejectedCount
	}
	return s
}

// siblingName swaps suffix for replacement, or appends replacement to the
// stem when path does not end in suffix.
func siblingName(path, suffix, replacement string) string {
	if strings.HasSuffix(path, suffix) {
		return strings.TrimSuffix(path, suffix) + replacement
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + replacement
}
