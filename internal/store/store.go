// Package store persists pipeline runs to PostgreSQL. It is optional: the
// file artifacts are complete without it.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/micareg/internal/clean"
	"github.com/JonMunkholm/micareg/internal/config"
	"github.com/JonMunkholm/micareg/internal/pipeline"
	"github.com/JonMunkholm/micareg/internal/remediation"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var _ pipeline.AuditSink = (*Store)(nil)

// Store writes run summaries and change records.
type Store struct {
	db     DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an existing connection.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "store")}
	if p, ok := db.(*pgxpool.Pool); ok {
		s.pool = p
	}
	return s
}

// Open connects a pool configured from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool, logger)
	s.logger.Info("connected to database", "name", databaseName(cfg.URL))
	return s, nil
}

func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Path == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Close releases the pool if the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS register_runs (
	run_id      TEXT PRIMARY KEY,
	register    TEXT NOT NULL,
	input_file  TEXT NOT NULL,
	output_file TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	row_count   INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	warnings    INTEGER NOT NULL,
	changes     INTEGER NOT NULL,
	tasks       INTEGER NOT NULL,
	proposals   INTEGER NOT NULL,
	applied     INTEGER NOT NULL,
	rejected    INTEGER NOT NULL,
	model       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS register_clean_changes (
	run_id      TEXT NOT NULL REFERENCES register_runs(run_id) ON DELETE CASCADE,
	change_type TEXT NOT NULL,
	row_number  INTEGER NOT NULL,
	column_name TEXT NOT NULL,
	old_value   TEXT NOT NULL,
	new_value   TEXT NOT NULL,
	warning     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS register_applied_changes (
	run_id              TEXT NOT NULL REFERENCES register_runs(run_id) ON DELETE CASCADE,
	task_id             TEXT NOT NULL,
	row_number          INTEGER NOT NULL,
	column_name         TEXT NOT NULL,
	old_value           TEXT NOT NULL,
	new_value           TEXT NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL,
	reasoning           TEXT NOT NULL,
	transformation_type TEXT NOT NULL,
	risk_level          TEXT NOT NULL,
	canonical_risk      TEXT NOT NULL,
	applied_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_register_runs_register ON register_runs(register, started_at DESC);
`

// EnsureSchema creates the audit tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertRunSQL = `
INSERT INTO register_runs (
	run_id, register, input_file, output_file, started_at, finished_at,
	row_count, errors, warnings, changes, tasks, proposals, applied, rejected, model
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// RecordRun inserts the run summary.
func (s *Store) RecordRun(ctx context.Context, run pipeline.RunSummary) error {
	_, err := s.db.Exec(ctx, insertRunSQL,
		run.RunID, string(run.Register), run.InputFile, run.OutputFile,
		run.StartedAt, run.FinishedAt,
		run.Rows, run.Errors, run.Warnings, run.Changes,
		run.Tasks, run.Proposals, run.Applied, run.Rejected, run.Model,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	s.logger.Debug("run recorded", "run_id", run.RunID, "register", run.Register)
	return nil
}

var cleanChangeColumns = []string{
	"run_id", "change_type", "row_number", "column_name", "old_value", "new_value", "warning",
}

func cleanChangeRows(runID string, changes []clean.Change) [][]any {
	rows := make([][]any, len(changes))
	for i, c := range changes {
		rows[i] = []any{runID, c.Type, c.Row, c.Column, c.OldValue, c.NewValue, c.Warning}
	}
	return rows
}

// RecordChanges bulk-loads the cleaning changes of a run.
func (s *Store) RecordChanges(ctx context.Context, runID string, changes []clean.Change) error {
	if len(changes) == 0 {
		return nil
	}
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"register_clean_changes"},
		cleanChangeColumns,
		pgx.CopyFromRows(cleanChangeRows(runID, changes)),
	)
	if err != nil {
		return fmt.Errorf("copy clean changes: %w", err)
	}
	s.logger.Debug("clean changes recorded", "run_id", runID, "rows", n)
	return nil
}

var appliedChangeColumns = []string{
	"run_id", "task_id", "row_number", "column_name", "old_value", "new_value",
	"confidence", "reasoning", "transformation_type", "risk_level", "canonical_risk",
	"applied_at",
}

func appliedChangeRows(runID string, changes []remediation.AppliedChange) [][]any {
	rows := make([][]any, len(changes))
	for i, c := range changes {
		rows[i] = []any{
			runID, c.TaskID, c.Row, c.Column, c.OldValue, c.NewValue,
			c.Confidence, c.Reasoning, string(c.TransformationType), string(c.RiskLevel),
			string(c.CanonicalRiskLevel), c.AppliedAt,
		}
	}
	return rows
}

// RecordApplied bulk-loads the changes a patch wrote.
func (s *Store) RecordApplied(ctx context.Context, runID string, res *remediation.ApplyResult) error {
	if res == nil || len(res.AppliedChanges) == 0 {
		return nil
	}
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"register_applied_changes"},
		appliedChangeColumns,
		pgx.CopyFromRows(appliedChangeRows(runID, res.AppliedChanges)),
	)
	if err != nil {
		return fmt.Errorf("copy applied changes: %w", err)
	}
	s.logger.Debug("applied changes recorded", "run_id", runID, "rows", n)
	return nil
}
