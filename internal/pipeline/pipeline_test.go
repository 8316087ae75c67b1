package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/llm"
	"github.com/JonMunkholm/micareg/internal/patch"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/validate"
)

const caspCSV = `ae_competentAuthority,ae_homeMemberState,ae_lei_name,ae_lei,ae_commercial_name,ae_address,ae_website,ac_authorisationNotificationDate,ac_serviceCode,ac_serviceCode_cou,ac_lastupdate
BaFin,DE,Alpha GmbH,529900T8BM49AURSDO55,Alpha,Hauptstraße 1,https://alpha.example,15/01/.2025,a. custody,DE|FR,20/01/2025
AMF,FR,Beta SA,969500Q2MA9VBQ8BG884,Beta,Caf` + "�" + ` Bar,https://beta.example,20/01/2025,c,EL,20/01/2025
`

// fakeRemediator proposes a fixed value for every task.
type fakeRemediator struct {
	value string
	err   error
	got   []remediation.Task
}

func (f *fakeRemediator) GeneratePatch(ctx context.Context, tasks []remediation.Task) (*remediation.Patch, error) {
	f.got = tasks
	if f.err != nil {
		return nil, f.err
	}
	p := &remediation.Patch{PatchID: "patch-1", ModelName: "fake", Proposals: []remediation.Proposal{}}
	for _, t := range tasks {
		p.Proposals = append(p.Proposals, remediation.Proposal{
			TaskID:             t.TaskID,
			ProposedValue:      f.value,
			Confidence:         0.95,
			Reasoning:          "restored character",
			TransformationType: remediation.TransformEncodingFix,
			RiskLevel:          remediation.RiskLow,
		})
	}
	return p, nil
}

// fakeAudit records what the service sends it.
type fakeAudit struct {
	runs    []RunSummary
	changes int
	applied int
	failRun bool
}

func (f *fakeAudit) RecordRun(ctx context.Context, run RunSummary) error {
	if f.failRun {
		return errors.New("connection refused")
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeAudit) RecordChanges(ctx context.Context, runID string, changes []clean.Change) error {
	f.changes += len(changes)
	return nil
}

func (f *fakeAudit) RecordApplied(ctx context.Context, runID string, res *remediation.ApplyResult) error {
	f.applied += res.AppliedCount
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(caspCSV), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func caspDescriptor(t *testing.T) schema.Descriptor {
	t.Helper()
	d, err := schema.Lookup("casp")
	if err != nil {
		t.Fatalf("Lookup(casp) error = %v", err)
	}
	return d
}

// =============================================================================
// Run
// =============================================================================

func TestRun_FullPipeline(t *testing.T) {
	input := writeInput(t, "CASP20260123.csv")
	before, _ := os.ReadFile(input)
	outDir := t.TempDir()
	rem := &fakeRemediator{value: "Café Bar"}
	audit := &fakeAudit{}
	opts := Options{MaxTasks: 50, Apply: patch.Options{RequireApproval: false}}
	svc := NewService(rem, audit, opts, quietLogger())

	res, err := svc.Run(context.Background(), RunOptions{
		Register:   caspDescriptor(t),
		Input:      input,
		OutputDir:  outDir,
		Revalidate: true,
		Remediate:  true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if filepath.Base(res.Artifacts.Cleaned) != "CASP20260123_clean.csv" {
		t.Errorf("cleaned artifact = %s", res.Artifacts.Cleaned)
	}
	for _, path := range []string{
		res.Artifacts.Validation, res.Artifacts.Cleaned, res.Artifacts.CleanReport,
		res.Artifacts.Revalidation, res.Artifacts.Tasks, res.Artifacts.Patch,
		res.Artifacts.ApplyReport, res.Artifacts.Patched,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s missing: %v", filepath.Base(path), err)
		}
	}

	if res.Validation.Find(validate.CodeDateNeedsNormalization) == nil {
		t.Error("raw validation did not flag the repairable date")
	}
	if res.Revalidation.Find(validate.CodeDateNeedsNormalization) != nil {
		t.Error("cleaned file still has the repairable date")
	}
	if res.Clean.Stats.RowsBefore != 2 || res.Clean.Stats.RowsAfter != 2 {
		t.Errorf("clean stats = %+v", res.Clean.Stats)
	}

	if len(res.Tasks) != 1 || res.Tasks[0].Column != "ae_address" || res.Tasks[0].TaskType != remediation.TaskEncodingFix {
		t.Fatalf("tasks = %+v", res.Tasks)
	}
	if res.Apply.AppliedCount != 1 {
		t.Fatalf("apply = %+v", res.Apply)
	}

	patched, err := csvio.ReadFile(res.Artifacts.Patched, ',')
	if err != nil {
		t.Fatalf("read patched: %v", err)
	}
	if got := patched.Cell(1, "ae_address"); got != "Café Bar" {
		t.Errorf("patched address = %q", got)
	}
	if patched.Encoding.Detected != csvio.EncodingUTF8BOM {
		t.Errorf("patched encoding = %s, want BOM", patched.Encoding.Detected)
	}

	after, _ := os.ReadFile(input)
	if string(before) != string(after) {
		t.Error("input file was modified")
	}

	if len(audit.runs) != 1 || audit.runs[0].Applied != 1 || audit.runs[0].Model != "fake" {
		t.Errorf("audit runs = %+v", audit.runs)
	}
	if audit.changes != len(res.Clean.Changes) || audit.applied != 1 {
		t.Errorf("audit changes = %d applied = %d", audit.changes, audit.applied)
	}
}

func TestRun_DefaultApprovalAppliesNothing(t *testing.T) {
	input := writeInput(t, "register.csv")
	svc := NewService(&fakeRemediator{value: "Café Bar"}, nil, Options{Apply: patch.DefaultOptions()}, quietLogger())

	res, err := svc.Run(context.Background(), RunOptions{
		Register:   caspDescriptor(t),
		Input:      input,
		Revalidate: true,
		Remediate:  true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Apply.AppliedCount != 0 || res.Apply.RejectedCount != 1 {
		t.Errorf("apply = %+v", res.Apply)
	}
	if res.Apply.RejectedChanges[0].Reason != patch.ReasonManualApproval {
		t.Errorf("reason = %q", res.Apply.RejectedChanges[0].Reason)
	}
	if res.Artifacts.Patched != "" {
		t.Errorf("patched artifact = %q, want none", res.Artifacts.Patched)
	}
	if filepath.Base(res.Artifacts.Cleaned) != "register_clean.csv" {
		t.Errorf("cleaned = %s", res.Artifacts.Cleaned)
	}
}

func TestRun_RemediationLogCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(&fakeRemediator{value: "Café Bar"}, nil, Options{Apply: patch.DefaultOptions()}, logger)

	res, err := svc.Run(context.Background(), RunOptions{
		Register:  caspDescriptor(t),
		Input:     writeInput(t, "register.csv"),
		Remediate: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "remediation finished") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no remediation log entry in %q", buf.String())
	}
	if !strings.Contains(line, "run_id="+res.RunID) || !strings.Contains(line, "model=fake") {
		t.Errorf("remediation log = %q", line)
	}
}

func TestRun_WithoutRemediator(t *testing.T) {
	input := writeInput(t, "register.csv")
	svc := NewService(nil, nil, Options{}, quietLogger())

	res, err := svc.Run(context.Background(), RunOptions{Register: caspDescriptor(t), Input: input, Remediate: true})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Run() error = %v, want ErrNoCredentials", err)
	}
	if res == nil || res.Clean == nil {
		t.Fatal("earlier stages should still be reported")
	}
	if _, err := os.Stat(res.Artifacts.Cleaned); err != nil {
		t.Errorf("cleaned file missing: %v", err)
	}

	res, err = svc.Run(context.Background(), RunOptions{Register: caspDescriptor(t), Input: input})
	if err != nil {
		t.Fatalf("Run() without remediation error = %v", err)
	}
	if res.Patch != nil || res.Artifacts.Patch != "" {
		t.Errorf("patch produced without remediation: %+v", res.Artifacts)
	}
}

func TestRun_AuditFailureIsNotFatal(t *testing.T) {
	input := writeInput(t, "register.csv")
	svc := NewService(nil, &fakeAudit{failRun: true}, Options{}, quietLogger())

	if _, err := svc.Run(context.Background(), RunOptions{Register: caspDescriptor(t), Input: input}); err != nil {
		t.Errorf("Run() error = %v, want audit failure logged only", err)
	}
}

func TestRun_MissingInput(t *testing.T) {
	svc := NewService(nil, nil, Options{}, quietLogger())

	_, err := svc.Run(context.Background(), RunOptions{
		Register: caspDescriptor(t),
		Input:    filepath.Join(t.TempDir(), "missing.csv"),
	})
	if !errors.Is(err, ErrUnreadableFile) {
		t.Errorf("Run() error = %v, want ErrUnreadableFile", err)
	}
}

func TestRemediate_PropagatesErrors(t *testing.T) {
	svc := NewService(&fakeRemediator{err: llm.ErrNoModels}, nil, Options{}, quietLogger())

	if _, err := svc.Remediate(context.Background(), nil); !errors.Is(err, llm.ErrNoModels) {
		t.Errorf("Remediate() error = %v, want ErrNoModels", err)
	}
}

func TestValidate_StampsReport(t *testing.T) {
	svc := NewService(nil, nil, Options{}, quietLogger())
	fixed := time.Date(2026, 1, 23, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	tbl, err := csvio.Parse([]byte(caspCSV), ',')
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := svc.Validate(tbl, caspDescriptor(t), "x.csv")

	if r.InputFile != "x.csv" || !r.GeneratedAt.Equal(fixed) {
		t.Errorf("report header = %s %v", r.InputFile, r.GeneratedAt)
	}
}

// =============================================================================
// Artifacts
// =============================================================================

func TestArtifactsFor(t *testing.T) {
	tests := []struct {
		input, dir  string
		wantCleaned string
		wantTasks   string
	}{
		{"/data/CASP20260123.csv", "/out", "/out/CASP20260123_clean.csv", "/out/CASP20260123_tasks.json"},
		{"/data/ncasp20260123.csv", "", "/data/NCASP20260123_clean.csv", "/data/NCASP20260123_tasks.json"},
		{"/data/export.csv", "/out", "/out/export_clean.csv", "/out/export_tasks.json"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a := ArtifactsFor(tt.input, tt.dir)
			if a.Cleaned != filepath.FromSlash(tt.wantCleaned) {
				t.Errorf("Cleaned = %s, want %s", a.Cleaned, tt.wantCleaned)
			}
			if a.Tasks != filepath.FromSlash(tt.wantTasks) {
				t.Errorf("Tasks = %s, want %s", a.Tasks, tt.wantTasks)
			}
		})
	}
}

// =============================================================================
// Error mapping
// =============================================================================

func TestMapError(t *testing.T) {
	parseErr := fmt.Errorf("%w: %w", csvio.ErrUnreadableFile, &csv.ParseError{Line: 3, Err: csv.ErrFieldCount})

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"empty file", fmt.Errorf("load x.csv: %w", csvio.ErrEmptyFile), "FILE005"},
		{"unreadable", fmt.Errorf("load: %w", csvio.ErrUnreadableFile), "FILE001"},
		{"unknown register", fmt.Errorf("%w: foo", schema.ErrUnknownRegister), "REG001"},
		{"no credentials", llm.ErrNoCredentials, "LLM001"},
		{"no models", fmt.Errorf("generate patch: %w", llm.ErrNoModels), "LLM002"},
		{"too large", errors.New("http: request body too large"), "FILE004"},
		{"db down", errors.New("dial tcp: connection refused"), "DB004"},
		{"invalid csv", parseErr, "FILE002"},
		{"other", errors.New("boom"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(csvio.ErrEmptyFile)
	if !strings.Contains(got, "(Code: FILE005)") {
		t.Errorf("FormatUserError() = %q", got)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
	if IsUserFacing(errors.New("boom")) || !IsUserFacing(csvio.ErrEmptyFile) {
		t.Error("IsUserFacing() misclassified")
	}
}
