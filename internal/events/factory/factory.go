// Package factory builds the event publisher selected by configuration.
package factory

import (
	"context"
	"fmt"

	"orangebook/internal/config"
	"orangebook/internal/events"
	"orangebook/internal/events/adapters/nop"
	"orangebook/internal/events/adapters/rabbitmq"
	"orangebook/internal/events/adapters/sqs"
	"orangebook/internal/observability"
)

// New creates the publisher selected by cfg.Adapters.Events
func New(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (events.Publisher, error) {
	switch cfg.Adapters.Events {
	case "rabbitmq":
		return rabbitmq.New(&cfg.RabbitMQ, logger, metrics)
	case "sqs":
		return sqs.New(ctx, &cfg.SQS, logger, metrics)
	case "none", "":
		return nop.New(logger), nil
	default:
		return nil, fmt.Errorf("unsupported events adapter: %s", cfg.Adapters.Events)
	}
}
