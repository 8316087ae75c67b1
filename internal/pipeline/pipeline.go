// Package pipeline runs the register stages end to end: validation,
// cleaning, task generation, model remediation and patch application.
// Every stage works on its own copy of the table and the input file is
// never written.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/config"
	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/llm"
	"github.com/JonMunkholm/micareg/internal/logging"
	"github.com/JonMunkholm/micareg/internal/patch"
	"github.com/JonMunkholm/micareg/internal/policy"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/validate"
)

// Remediator produces a patch for a batch of tasks.
type Remediator interface {
	GeneratePatch(ctx context.Context, tasks []remediation.Task) (*remediation.Patch, error)
}

var _ Remediator = (*llm.Client)(nil)

// AuditSink persists run summaries and change records.
type AuditSink interface {
	RecordRun(ctx context.Context, run RunSummary) error
	RecordChanges(ctx context.Context, runID string, changes []clean.Change) error
	RecordApplied(ctx context.Context, runID string, res *remediation.ApplyResult) error
}

// RunSummary is the persisted outline of one pipeline run.
type RunSummary struct {
	RunID      string              `json:"runId"`
	Register   schema.RegisterType `json:"register"`
	InputFile  string              `json:"inputFile"`
	OutputFile string              `json:"outputFile"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Rows       int                 `json:"rows"`
	Errors     int                 `json:"errors"`
	Warnings   int                 `json:"warnings"`
	Changes    int                 `json:"changes"`
	Tasks      int                 `json:"tasks"`
	Proposals  int                 `json:"proposals"`
	Applied    int                 `json:"applied"`
	Rejected   int                 `json:"rejected"`
	Model      string              `json:"model,omitempty"`
}

// Options configure a Service.
type Options struct {
	MaxTasks int
	Apply    patch.Options
}

// OptionsFromConfig maps the remediation settings.
func OptionsFromConfig(cfg config.RemediationConfig) Options {
	return Options{
		MaxTasks: cfg.MaxTasks,
		Apply: patch.Options{
			RequireApproval:    cfg.RequireApproval,
			AutoApplyThreshold: cfg.AutoApplyThreshold,
			AutoApplyLowRisk:   cfg.AutoApplyLowRisk,
		},
	}
}

// Service wires the stages together.
type Service struct {
	remediator Remediator
	applicator *patch.Applicator
	audit      AuditSink
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a service. remediator and audit may be nil; a nil
// remediator makes Remediate fail with ErrNoCredentials.
func NewService(remediator Remediator, audit AuditSink, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		remediator: remediator,
		applicator: patch.NewApplicator(policy.Default(), logger),
		audit:      audit,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Load reads the CSV at path with the descriptor's delimiter.
func (s *Service) Load(path string, d schema.Descriptor) (*csvio.Table, error) {
	t, err := csvio.ReadFile(path, d.Comma())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Validate checks t and stamps the report with name.
func (s *Service) Validate(t *csvio.Table, d schema.Descriptor, name string) *validate.Report {
	r := validate.Validate(t, d)
	r.InputFile = name
	r.GeneratedAt = s.now().UTC()

	s.logger.Info("validation finished",
		"register", d.Type,
		"file", name,
		"rows", len(t.Rows),
		"errors", r.Stats.Errors,
		"warnings", r.Stats.Warnings,
	)
	return r
}

// Clean repairs t and stamps the report with name.
func (s *Service) Clean(t *csvio.Table, d schema.Descriptor, name string) *clean.Result {
	res := clean.Clean(t, d)
	res.Report.InputFile = name
	res.Report.GeneratedAt = s.now().UTC()

	s.logger.Info("cleaning finished",
		"register", d.Type,
		"file", name,
		"changes", len(res.Report.Mutations()),
		"warnings", len(res.Report.Warnings()),
	)
	return res
}

// GenerateTasks builds remediation tasks from report against t.
func (s *Service) GenerateTasks(report *validate.Report, t *csvio.Table) []remediation.Task {
	tasks := remediation.Generate(report, t, s.opts.MaxTasks)
	s.logger.Info("tasks generated", "tasks", len(tasks), "max", s.opts.MaxTasks)
	return tasks
}

// Remediate asks the model for proposals. An empty patch is not an error.
func (s *Service) Remediate(ctx context.Context, tasks []remediation.Task) (*remediation.Patch, error) {
	if s.remediator == nil {
		return nil, ErrNoCredentials
	}
	p, err := s.remediator.GeneratePatch(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("generate patch: %w", err)
	}
	logging.FromContext(ctx).Info("remediation finished",
		"patch_id", p.PatchID,
		"model", p.ModelName,
		"proposals", len(p.Proposals),
		"tasks", len(tasks),
	)
	return p, nil
}

// Apply merges p into a copy of t and returns the copy with the result.
func (s *Service) Apply(t *csvio.Table, p *remediation.Patch, tasks []remediation.Task) (*csvio.Table, *remediation.ApplyResult) {
	work := t.Clone()
	work.Normalize()
	res := s.applicator.Apply(work, p, tasks, s.opts.Apply)

	s.logger.Info("patch applied",
		"patch_id", p.PatchID,
		"applied", res.AppliedCount,
		"rejected", res.RejectedCount,
		"errors", len(res.Errors),
	)
	return work, res
}

// Artifacts are the files a run writes.
type Artifacts struct {
	Validation   string `json:"validation"`
	Cleaned      string `json:"cleaned"`
	CleanReport  string `json:"cleanReport"`
	Revalidation string `json:"revalidation,omitempty"`
	Tasks        string `json:"tasks"`
	Patch        string `json:"patch,omitempty"`
	ApplyReport  string `json:"applyReport,omitempty"`
	Patched      string `json:"patched,omitempty"`
}

// ArtifactsFor names the outputs for input inside dir. Canonical register
// file names (CASP20260123.csv) keep their stem; anything else uses the
// input's base name.
func ArtifactsFor(input, dir string) Artifacts {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	cleaned := stem + "_clean.csv"
	if rt, date, ok := schema.ParseFileName(input); ok {
		cleaned = schema.CleanFileName(rt, date)
		stem = strings.TrimSuffix(cleaned, "_clean.csv")
	}

	join := func(name string) string { return filepath.Join(dir, name) }
	return Artifacts{
		Validation:   join(stem + "_validation.json"),
		Cleaned:      join(cleaned),
		CleanReport:  join(stem + "_clean_report.json"),
		Revalidation: join(stem + "_clean_validation.json"),
		Tasks:        join(stem + "_tasks.json"),
		Patch:        join(stem + "_patch.json"),
		ApplyReport:  join(stem + "_apply.json"),
		Patched:      join(stem + "_clean_patched.csv"),
	}
}

// RunOptions select the stages of Run.
type RunOptions struct {
	Register  schema.Descriptor
	Input     string
	OutputDir string
	// Revalidate checks the cleaned table and feeds that report to task
	// generation instead of the raw one.
	Revalidate bool
	// Remediate calls the model and applies the resulting patch.
	Remediate bool
}

// RunResult carries every report of a run.
type RunResult struct {
	RunID        string                   `json:"runId"`
	Artifacts    Artifacts                `json:"artifacts"`
	Validation   *validate.Report         `json:"validation"`
	Clean        *clean.Report            `json:"clean"`
	Revalidation *validate.Report         `json:"revalidation,omitempty"`
	Tasks        []remediation.Task       `json:"tasks"`
	Patch        *remediation.Patch       `json:"patch,omitempty"`
	Apply        *remediation.ApplyResult `json:"apply,omitempty"`
}

// Run executes the pipeline for one file and writes every artifact. Only
// I/O failures, a missing model configuration, and cancellation are errors;
// findings, changes and rejections are reported in the result.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	started := s.now().UTC()
	d := opts.Register
	arts := ArtifactsFor(opts.Input, opts.OutputDir)
	if !opts.Revalidate {
		arts.Revalidation = ""
	}
	if !opts.Remediate {
		arts.Patch, arts.ApplyReport, arts.Patched = "", "", ""
	}

	res := &RunResult{RunID: uuid.NewString(), Artifacts: arts}
	logger := s.logger.With("run_id", res.RunID, "register", d.Type)
	ctx = logging.NewContext(ctx, logger)

	raw, err := s.Load(opts.Input, d)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(opts.Input)

	res.Validation = s.Validate(raw, d, name)
	if err := csvio.WriteJSON(arts.Validation, res.Validation); err != nil {
		return nil, err
	}

	cleaned := s.Clean(raw, d, name)
	cleaned.Report.OutputFile = filepath.Base(arts.Cleaned)
	res.Clean = cleaned.Report
	if err := csvio.WriteFile(arts.Cleaned, cleaned.Table, d.Comma()); err != nil {
		return nil, err
	}
	if err := csvio.WriteJSON(arts.CleanReport, res.Clean); err != nil {
		return nil, err
	}

	source := res.Validation
	if opts.Revalidate {
		// Validate what was written: UTF-8 with BOM.
		written := cleaned.Table.Clone()
		written.Encoding = csvio.EncodingInfo{Detected: csvio.EncodingUTF8BOM, Confidence: 1.0}
		res.Revalidation = s.Validate(written, d, filepath.Base(arts.Cleaned))
		if err := csvio.WriteJSON(arts.Revalidation, res.Revalidation); err != nil {
			return nil, err
		}
		source = res.Revalidation
	}

	res.Tasks = s.GenerateTasks(source, cleaned.Table)
	if err := csvio.WriteJSON(arts.Tasks, res.Tasks); err != nil {
		return nil, err
	}

	if opts.Remediate && len(res.Tasks) > 0 {
		p, err := s.Remediate(ctx, res.Tasks)
		if err != nil {
			return res, err
		}
		res.Patch = p
		if err := csvio.WriteJSON(arts.Patch, p); err != nil {
			return res, err
		}

		patched, applied := s.Apply(cleaned.Table, p, res.Tasks)
		res.Apply = applied
		if err := csvio.WriteJSON(arts.ApplyReport, applied); err != nil {
			return res, err
		}
		if applied.AppliedCount > 0 {
			if err := csvio.WriteFile(arts.Patched, patched, d.Comma()); err != nil {
				return res, err
			}
		} else {
			res.Artifacts.Patched = ""
		}
	} else if opts.Remediate {
		res.Artifacts.Patch, res.Artifacts.ApplyReport, res.Artifacts.Patched = "", "", ""
		logger.Info("no remediation tasks, skipping model")
	}

	s.record(ctx, logger, res, started)
	return res, nil
}

// record writes the run to the audit sink. Failures are logged, not
// returned: the file artifacts are the primary record.
func (s *Service) record(ctx context.Context, logger *slog.Logger, res *RunResult, started time.Time) {
	if s.audit == nil {
		return
	}

	sum := RunSummary{
		RunID:      res.RunID,
		Register:   res.Validation.Register,
		InputFile:  res.Validation.InputFile,
		OutputFile: res.Clean.OutputFile,
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		Rows:       res.Clean.Stats.RowsAfter,
		Errors:     res.Validation.Stats.Errors,
		Warnings:   res.Validation.Stats.Warnings,
		Changes:    len(res.Clean.Mutations()),
		Tasks:      len(res.Tasks),
	}
	if res.Patch != nil {
		sum.Proposals = len(res.Patch.Proposals)
		sum.Model = res.Patch.ModelName
	}
	if res.Apply != nil {
		sum.Applied = res.Apply.AppliedCount
		sum.Rejected = res.Apply.RejectedCount
	}

	if err := s.audit.RecordRun(ctx, sum); err != nil {
		logger.Error("audit: record run failed", "error", err)
		return
	}
	if err := s.audit.RecordChanges(ctx, res.RunID, res.Clean.Changes); err != nil {
		logger.Error("audit: record changes failed", "error", err)
	}
	if res.Apply != nil {
		if err := s.audit.RecordApplied(ctx, res.RunID, res.Apply); err != nil {
			logger.Error("audit: record applied changes failed", "error", err)
		}
	}
}
