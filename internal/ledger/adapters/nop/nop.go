// Package nop provides a Ledger that only logs.
package nop

import (
	"context"
	"fmt"

	"orangebook/internal/ledger"
	"orangebook/internal/observability"
)

type Ledger struct {
	logger observability.Logger
}

func New(logger observability.Logger) *Ledger {
	return &Ledger{logger: logger}
}

func (l *Ledger) Start(ctx context.Context, run *ledger.Run) error {
	l.logger.Debug("Ledger disabled, not recording run start", "run_id", run.ID)
	return nil
}

func (l *Ledger) Complete(ctx context.Context, runID string, c ledger.Completion) error {
	l.logger.Debug("Ledger disabled, not recording run completion", "run_id", runID)
	return nil
}

func (l *Ledger) Fail(ctx context.Context, runID string, f ledger.Failure) error {
	l.logger.Debug("Ledger disabled, not recording run failure", "run_id", runID, "kind", f.Kind)
	return nil
}

func (l *Ledger) Get(ctx context.Context, runID string) (*ledger.Run, error) {
	return nil, fmt.Errorf("%w: %s", ledger.ErrRunNotFound, runID)
}

func (l *Ledger) Close() error { return nil }
