// Package events announces finished ingestion runs to downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	TypeIngestionCompleted = "orangebook.ingestion.completed"
	TypeIngestionFailed    = "orangebook.ingestion.failed"
)

// Event is the JSON body published after every run
type Event struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	RunID        string            `json:"run_id"`
	SourceURL    string            `json:"source_url"`
	ArchiveHash  string            `json:"archive_hash,omitempty"`
	Files        map[string]string `json:"files,omitempty"` // file name -> md5
	RecordCount  int               `json:"record_count"`
	Keys         []string          `json:"keys,omitempty"`
	ErrorKind    string            `json:"error_kind,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Publisher delivers events to a queue
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
