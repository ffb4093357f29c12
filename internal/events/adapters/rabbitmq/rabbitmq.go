// Package rabbitmq publishes run events to a durable RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"orangebook/internal/config"
	"orangebook/internal/events"
	"orangebook/internal/observability"
)

// channel is the subset of *amqp091.Channel the publisher uses
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	queue    string
	timeout  time.Duration
	declared bool
	logger   observability.Logger
	metrics  observability.Metrics
}

// New dials the broker and opens a channel
func New(cfg *config.RabbitMQConfig, logger observability.Logger, metrics observability.Metrics) (*Publisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("Failed to create channel", "error", err)
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	p := newPublisher(ch, cfg, logger, metrics)
	p.conn = conn

	logger.Info("RabbitMQ publisher initialized", "queue", cfg.Queue)
	return p, nil
}

func newPublisher(ch channel, cfg *config.RabbitMQConfig, logger observability.Logger, metrics observability.Metrics) *Publisher {
	return &Publisher{
		channel: ch,
		queue:   cfg.Queue,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	tags := map[string]string{"target": p.queue, "type": event.Type}
	start := time.Now()
	defer func() {
		p.metrics.RecordHistogram("events.publish.duration_ms", float64(time.Since(start).Milliseconds()), tags)
	}()
	p.metrics.IncrementCounter("events.publish.attempts", tags)

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "error", err)
		p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "marshal_failed"})
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Declaring is idempotent but costs a round trip, so do it once.
	if !p.declared {
		if _, err := p.channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
			p.logger.Error("Failed to declare queue", "error", err, "queue", p.queue)
			p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "declare_failed"})
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared = true
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := amqp091.Publishing{
		DeliveryMode: amqp091.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	if err := p.channel.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Error("Failed to publish event", "error", err, "target", p.queue)
		p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "publish_failed"})
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("Event published", "target", p.queue, "type", event.Type, "run_id", event.RunID, "size", len(body))
	p.metrics.IncrementCounter("events.publish.success", tags)
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
