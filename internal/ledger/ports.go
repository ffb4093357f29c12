// Package ledger records one row per ingestion run so that operators can see
// which archive drops were captured, when, and why a run failed.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an ingestion run
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrRunNotFound is returned when a run id is unknown to the ledger
var ErrRunNotFound = errors.New("ingestion run not found")

// Run is a single ingestion attempt
type Run struct {
	ID           string     `db:"id" json:"id"`
	SourceURL    string     `db:"source_url" json:"source_url"`
	Status       Status     `db:"status" json:"status"`
	ArchiveHash  *string    `db:"archive_hash" json:"archive_hash,omitempty"`
	FileCount    int        `db:"file_count" json:"file_count"`
	RecordCount  int        `db:"record_count" json:"record_count"`
	ErrorKind    *string    `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Completion describes a successful run
type Completion struct {
	ArchiveHash string
	FileCount   int
	RecordCount int
	FinishedAt  time.Time
}

// Failure describes a failed run
type Failure struct {
	Kind       string
	Message    string
	FinishedAt time.Time
}

// Ledger persists ingestion runs
type Ledger interface {
	// Start records a new run in the running state
	Start(ctx context.Context, run *Run) error

	// Complete marks a running run as completed
	Complete(ctx context.Context, runID string, c Completion) error

	// Fail marks a running run as failed
	Fail(ctx context.Context, runID string, f Failure) error

	// Get returns a run by id, or ErrRunNotFound
	Get(ctx context.Context, runID string) (*Run, error)

	Close() error
}
