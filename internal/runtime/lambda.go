package runtime

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"orangebook/internal/observability"
)

type lambdaRuntime struct {
	runner  Runner
	logger  observability.Logger
	metrics observability.Metrics
}

// NewLambda serves scheduled EventBridge invocations
func NewLambda(runner Runner, logger observability.Logger, metrics observability.Metrics) Runtime {
	return &lambdaRuntime{
		runner:  runner,
		logger:  logger.WithFields(map[string]interface{}{"runtime": "lambda"}),
		metrics: metrics,
	}
}

// Start blocks serving invocations; lambda.Start never returns
func (r *lambdaRuntime) Start(ctx context.Context) error {
	r.logger.Info("Starting Lambda runtime")
	lambda.StartWithOptions(r.handleEvent, lambda.WithContext(ctx))
	return nil
}

func (r *lambdaRuntime) handleEvent(ctx context.Context, event events.CloudWatchEvent) (*Summary, error) {
	r.logger.Info("Received scheduled event",
		"event_id", event.ID,
		"source", event.Source,
		"detail_type", event.DetailType,
		"time", event.Time)

	summary, err := invoke(ctx, r.runner, r.logger, r.metrics)
	if err != nil {
		r.logger.Error("Ingestion failed",
			"run_id", summary.RunID,
			"kind", summary.ErrorKind,
			"error", err)
		return summary, err
	}

	r.logger.Info("Ingestion succeeded", "run_id", summary.RunID, "records", summary.RecordCount)
	return summary, nil
}
