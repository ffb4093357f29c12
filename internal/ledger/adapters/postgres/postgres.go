// Package postgres stores ingestion runs in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"orangebook/internal/config"
	"orangebook/internal/ledger"
	"orangebook/internal/observability"
)

const table = "ingestion_runs"

const schema = `CREATE TABLE IF NOT EXISTS ingestion_runs (
	id            TEXT PRIMARY KEY,
	source_url    TEXT NOT NULL,
	status        TEXT NOT NULL,
	archive_hash  TEXT,
	file_count    INTEGER NOT NULL DEFAULT 0,
	record_count  INTEGER NOT NULL DEFAULT 0,
	error_kind    TEXT,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
)`

var columns = []string{
	"id", "source_url", "status", "archive_hash", "file_count", "record_count",
	"error_kind", "error_message", "started_at", "finished_at",
}

// Ledger implements ledger.Ledger on PostgreSQL
type Ledger struct {
	db      *sqlx.DB
	qb      squirrel.StatementBuilderType
	logger  observability.Logger
	metrics observability.Metrics
}

// New opens the database, verifies the connection and creates the runs table
func New(ctx context.Context, cfg *config.DatabaseConfig, logger observability.Logger, metrics observability.Metrics) (*Ledger, error) {
	logger.Info("Connecting to PostgreSQL ledger",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)

	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		logger.Error("Failed to open database connection", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := NewWithDB(db, logger, metrics)
	if err := l.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to PostgreSQL ledger")
	metrics.IncrementCounter("database.connection.success", map[string]string{"type": "postgres"})
	return l, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB, logger observability.Logger, metrics observability.Metrics) *Ledger {
	return &Ledger{
		db:      db,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger:  logger,
		metrics: metrics,
	}
}

// EnsureSchema creates the runs table if it does not exist
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := l.db.ExecContext(ctx, schema)
	l.recordMetrics("schema", time.Since(start), err)
	if err != nil {
		l.logger.Error("Failed to create ledger table", "error", err)
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

func (l *Ledger) Start(ctx context.Context, run *ledger.Run) error {
	l.logger.Info("Recording ingestion run start", "run_id", run.ID, "source_url", run.SourceURL)

	query, args, err := l.insertRun(run)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	start := time.Now()
	_, err = l.db.ExecContext(ctx, query, args...)
	l.recordMetrics("start", time.Since(start), err)
	if err != nil {
		l.logger.Error("Failed to record run start", "run_id", run.ID, "error", err)
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (l *Ledger) Complete(ctx context.Context, runID string, c ledger.Completion) error {
	l.logger.Info("Recording ingestion run completion",
		"run_id", runID,
		"archive_hash", c.ArchiveHash,
		"files", c.FileCount,
		"records", c.RecordCount)

	query, args, err := l.completeRun(runID, c)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return l.finish(ctx, "complete", runID, query, args)
}

func (l *Ledger) Fail(ctx context.Context, runID string, f ledger.Failure) error {
	l.logger.Info("Recording ingestion run failure", "run_id", runID, "kind", f.Kind)

	query, args, err := l.failRun(runID, f)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return l.finish(ctx, "fail", runID, query, args)
}

func (l *Ledger) Get(ctx context.Context, runID string) (*ledger.Run, error) {
	query, args, err := l.qb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var run ledger.Run
	start := time.Now()
	err = l.db.GetContext(ctx, &run, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		l.recordMetrics("get", time.Since(start), nil)
		return nil, fmt.Errorf("%w: %s", ledger.ErrRunNotFound, runID)
	}
	l.recordMetrics("get", time.Since(start), err)
	if err != nil {
		l.logger.Error("Failed to get run", "run_id", runID, "error", err)
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}

func (l *Ledger) Close() error {
	l.logger.Info("Closing database connection")
	return l.db.Close()
}

// finish executes a terminal transition; only running rows may transition
func (l *Ledger) finish(ctx context.Context, op, runID, query string, args []interface{}) error {
	start := time.Now()
	result, err := l.db.ExecContext(ctx, query, args...)
	l.recordMetrics(op, time.Since(start), err)
	if err != nil {
		l.logger.Error("Failed to update run", "run_id", runID, "op", op, "error", err)
		return fmt.Errorf("%s run %s: %w", op, runID, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: %s is not running", ledger.ErrRunNotFound, runID)
	}
	return nil
}

func (l *Ledger) insertRun(run *ledger.Run) (string, []interface{}, error) {
	status := run.Status
	if status == "" {
		status = ledger.StatusRunning
	}
	return l.qb.Insert(table).
		Columns("id", "source_url", "status", "started_at").
		Values(run.ID, run.SourceURL, string(status), run.StartedAt).
		ToSql()
}

func (l *Ledger) completeRun(runID string, c ledger.Completion) (string, []interface{}, error) {
	return l.qb.Update(table).
		Set("status", string(ledger.StatusCompleted)).
		Set("archive_hash", c.ArchiveHash).
		Set("file_count", c.FileCount).
		Set("record_count", c.RecordCount).
		Set("finished_at", c.FinishedAt).
		Where(squirrel.Eq{"id": runID, "status": string(ledger.StatusRunning)}).
		ToSql()
}

func (l *Ledger) failRun(runID string, f ledger.Failure) (string, []interface{}, error) {
	return l.qb.Update(table).
		Set("status", string(ledger.StatusFailed)).
		Set("error_kind", f.Kind).
		Set("error_message", f.Message).
		Set("finished_at", f.FinishedAt).
		Where(squirrel.Eq{"id": runID, "status": string(ledger.StatusRunning)}).
		ToSql()
}

func (l *Ledger) recordMetrics(operation string, duration time.Duration, err error) {
	l.metrics.RecordHistogram(
		fmt.Sprintf("ledger.%s.duration_ms", operation),
		float64(duration.Milliseconds()),
		nil,
	)

	if err != nil {
		l.metrics.IncrementCounter(fmt.Sprintf("ledger.%s.errors", operation), nil)
	} else {
		l.metrics.IncrementCounter(fmt.Sprintf("ledger.%s.success", operation), nil)
	}
}
