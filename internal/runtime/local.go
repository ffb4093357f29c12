package runtime

import (
	"context"

	"orangebook/internal/observability"
)

type localRuntime struct {
	runner  Runner
	logger  observability.Logger
	metrics observability.Metrics
}

// NewLocal runs the pipeline exactly once
func NewLocal(runner Runner, logger observability.Logger, metrics observability.Metrics) Runtime {
	return &localRuntime{
		runner:  runner,
		logger:  logger.WithFields(map[string]interface{}{"runtime": "local"}),
		metrics: metrics,
	}
}

func (r *localRuntime) Start(ctx context.Context) error {
	r.logger.Info("Running ingestion once")

	summary, err := invoke(ctx, r.runner, r.logger, r.metrics)
	if err != nil {
		r.logger.Error("Ingestion failed",
			"run_id", summary.RunID,
			"kind", summary.ErrorKind,
			"retryable", summary.Retryable,
			"error", err)
		return err
	}

	r.logger.Info("Ingestion succeeded",
		"run_id", summary.RunID,
		"archive_hash", summary.ArchiveHash,
		"records", summary.RecordCount,
		"duration_ms", summary.DurationMS)
	return nil
}
