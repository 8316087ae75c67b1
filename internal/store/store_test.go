package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/pipeline"
	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// fakeDB records statements and drains copy sources.
type fakeDB struct {
	execs   []string
	args    [][]any
	copies  map[string][][]any
	columns map[string][]string
	err     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{copies: map[string][][]any{}, columns: map[string][]string{}}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	name := strings.Join(table, ".")
	f.columns[name] = columns
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copies[name] = append(f.copies[name], vals)
		n++
	}
	return n, src.Err()
}

func newStore(db DB) *Store {
	return New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEnsureSchema(t *testing.T) {
	db := newFakeDB()
	if err := newStore(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	for _, table := range []string{"register_runs", "register_clean_changes", "register_applied_changes"} {
		if !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
}

func TestRecordRun(t *testing.T) {
	db := newFakeDB()
	run := pipeline.RunSummary{
		RunID:     "run-1",
		Register:  schema.CASP,
		InputFile: "CASP20260123.csv",
		StartedAt: time.Date(2026, 1, 23, 9, 0, 0, 0, time.UTC),
		Rows:      12,
		Applied:   2,
		Model:     "deepseek-chat",
	}

	if err := newStore(db).RecordRun(context.Background(), run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	args := db.args[0]
	if len(args) != 15 {
		t.Fatalf("got %d args, want 15", len(args))
	}
	if args[0] != "run-1" || args[1] != "casp" || args[6] != 12 || args[12] != 2 || args[14] != "deepseek-chat" {
		t.Errorf("args = %v", args)
	}
}

func TestRecordRun_WrapsError(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection refused")

	err := newStore(db).RecordRun(context.Background(), pipeline.RunSummary{RunID: "run-1"})
	if err == nil || !strings.Contains(err.Error(), "run-1") || !errors.Is(err, db.err) {
		t.Errorf("RecordRun() error = %v", err)
	}
}

func TestRecordChanges(t *testing.T) {
	db := newFakeDB()
	changes := []clean.Change{
		{Type: clean.DateFixed, Row: 2, Column: "ac_lastupdate", OldValue: "15/01/.2025", NewValue: "15/01/2025"},
		{Type: clean.DateWarning, Row: 3, Column: "ac_lastupdate", OldValue: "soon", NewValue: "soon", Warning: true},
	}

	if err := newStore(db).RecordChanges(context.Background(), "run-1", changes); err != nil {
		t.Fatalf("RecordChanges() error = %v", err)
	}
	rows := db.copies["register_clean_changes"]
	if len(rows) != 2 {
		t.Fatalf("copied %d rows, want 2", len(rows))
	}
	if len(rows[0]) != len(db.columns["register_clean_changes"]) {
		t.Errorf("row width %d != column count %d", len(rows[0]), len(db.columns["register_clean_changes"]))
	}
	if rows[1][0] != "run-1" || rows[1][2] != 3 || rows[1][6] != true {
		t.Errorf("row = %v", rows[1])
	}
}

func TestRecordApplied(t *testing.T) {
	db := newFakeDB()
	at := time.Date(2026, 1, 23, 9, 0, 0, 0, time.UTC)
	res := &remediation.ApplyResult{AppliedChanges: []remediation.AppliedChange{{
		TaskID:             "t1",
		Column:             "ae_address",
		Row:                4,
		OldValue:           "Caf�",
		NewValue:           "Café",
		Confidence:         0.95,
		Reasoning:          "restored",
		TransformationType: remediation.TransformEncodingFix,
		RiskLevel:          remediation.RiskLow,
		CanonicalRiskLevel: remediation.RiskLow,
		AppliedAt:          at,
	}}}

	if err := newStore(db).RecordApplied(context.Background(), "run-1", res); err != nil {
		t.Fatalf("RecordApplied() error = %v", err)
	}
	rows := db.copies["register_applied_changes"]
	if len(rows) != 1 || len(rows[0]) != len(appliedChangeColumns) {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][8] != "ENCODING_FIX" || rows[0][9] != "LOW" || rows[0][10] != "LOW" || rows[0][11] != at {
		t.Errorf("row = %v", rows[0])
	}
}

func TestRecord_NothingToCopy(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("should not be called")
	s := newStore(db)

	if err := s.RecordChanges(context.Background(), "run-1", nil); err != nil {
		t.Errorf("RecordChanges(nil) error = %v", err)
	}
	if err := s.RecordApplied(context.Background(), "run-1", &remediation.ApplyResult{}); err != nil {
		t.Errorf("RecordApplied(empty) error = %v", err)
	}
	if err := s.RecordApplied(context.Background(), "run-1", nil); err != nil {
		t.Errorf("RecordApplied(nil) error = %v", err)
	}
}

func TestDatabaseName(t *testing.T) {
	tests := []struct{ dsn, want string }{
		{"postgres://u:p@localhost:5432/micareg?sslmode=disable", "micareg"},
		{"postgres://localhost", ""},
	}
	for _, tt := range tests {
		if got := databaseName(tt.dsn); got != tt.want {
			t.Errorf("databaseName(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
