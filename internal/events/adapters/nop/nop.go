// Package nop provides a Publisher that only logs.
package nop

import (
	"context"

	"orangebook/internal/events"
	"orangebook/internal/observability"
)

type Publisher struct {
	logger observability.Logger
}

func New(logger observability.Logger) *Publisher {
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	p.logger.Debug("Events disabled, dropping event", "type", event.Type, "run_id", event.RunID)
	return nil
}

func (p *Publisher) Close() error { return nil }
