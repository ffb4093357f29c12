// Package sqs publishes run events to an Amazon SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"orangebook/internal/config"
	"orangebook/internal/events"
	"orangebook/internal/observability"
)

// API is the subset of the SQS client the publisher uses
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Publisher struct {
	client  API
	queue   string
	logger  observability.Logger
	metrics observability.Metrics

	mu       sync.Mutex
	queueURL string
}

// New loads the default AWS configuration and creates an SQS client
func New(ctx context.Context, cfg *config.SQSConfig, logger observability.Logger, metrics observability.Metrics) (*Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logger.Error("Failed to load AWS config", "error", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("SQS publisher initialized", "region", cfg.Region, "queue", cfg.Queue)
	return NewWithClient(client, cfg.Queue, logger, metrics), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client API, queue string, logger observability.Logger, metrics observability.Metrics) *Publisher {
	return &Publisher{
		client:  client,
		queue:   queue,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *Publisher) resolveQueueURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queueURL != "" {
		return p.queueURL, nil
	}

	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(p.queue)})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", p.queue, err)
	}
	p.queueURL = aws.ToString(out.QueueUrl)
	return p.queueURL, nil
}

func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	tags := map[string]string{"target": p.queue, "type": event.Type}
	start := time.Now()
	defer func() {
		p.metrics.RecordHistogram("events.publish.duration_ms", float64(time.Since(start).Milliseconds()), tags)
	}()
	p.metrics.IncrementCounter("events.publish.attempts", tags)

	queueURL, err := p.resolveQueueURL(ctx)
	if err != nil {
		p.logger.Error("Failed to get queue URL", "error", err, "queue", p.queue)
		p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "queue_url_failed"})
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "error", err)
		p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "marshal_failed"})
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
			"run_id":     {DataType: aws.String("String"), StringValue: aws.String(event.RunID)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to send event", "error", err, "target", p.queue)
		p.metrics.IncrementCounter("events.publish.errors", map[string]string{"target": p.queue, "error": "send_failed"})
		return fmt.Errorf("failed to send event: %w", err)
	}

	p.logger.Info("Event published",
		"target", p.queue,
		"type", event.Type,
		"run_id", event.RunID,
		"message_id", aws.ToString(out.MessageId),
		"size", len(body))
	p.metrics.IncrementCounter("events.publish.success", tags)
	return nil
}

func (p *Publisher) Close() error { return nil }
