// Package runtime hosts the pipeline: once from the command line, or once per
// scheduled AWS Lambda invocation.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orangebook/internal/config"
	"orangebook/internal/observability"
	"orangebook/internal/pipeline"
	"orangebook/internal/source"
)

// Runner performs one ingestion
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Runtime drives a Runner until its platform says stop
type Runtime interface {
	Start(ctx context.Context) error
}

// Summary is the outcome of one invocation as reported to the platform
type Summary struct {
	RunID       string   `json:"run_id,omitempty"`
	Status      string   `json:"status"`
	ArchiveHash string   `json:"archive_hash,omitempty"`
	RecordCount int      `json:"record_count"`
	Keys        []string `json:"keys,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
	Error       string   `json:"error,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
}

// New creates the runtime selected by cfg.Adapters.Runtime. The runner is
// wrapped so that a panic fails the run instead of the process, and a run is
// bounded by PIPELINE_TIMEOUT when set.
func New(cfg *config.Config, runner Runner, logger observability.Logger, metrics observability.Metrics) (Runtime, error) {
	runner = Chain(runner,
		Recovery(logger, metrics),
		Timeout(cfg.Pipeline.Timeout),
	)

	switch cfg.Adapters.Runtime {
	case "local":
		return NewLocal(runner, logger, metrics), nil
	case "lambda":
		return NewLambda(runner, logger, metrics), nil
	default:
		return nil, fmt.Errorf("unsupported runtime adapter: %s", cfg.Adapters.Runtime)
	}
}

// invoke runs once and flushes buffered metrics
func invoke(ctx context.Context, runner Runner, logger observability.Logger, metrics observability.Metrics) (*Summary, error) {
	start := time.Now()
	result, err := runner.Run(ctx)
	summary := summarize(result, err, time.Since(start))

	metrics.IncrementCounter("runtime.invocations", map[string]string{"status": summary.Status})

	if f, ok := metrics.(observability.Flusher); ok {
		if ferr := f.Flush(); ferr != nil {
			logger.Warn("Failed to flush metrics", "error", ferr)
		}
	}
	return summary, err
}

func summarize(result *pipeline.Result, err error, elapsed time.Duration) *Summary {
	s := &Summary{Status: "completed", DurationMS: elapsed.Milliseconds()}
	if result != nil {
		s.RunID = result.RunID
		s.ArchiveHash = result.ArchiveHash
		s.RecordCount = result.RecordCount
		s.Keys = result.Keys
	}
	if err != nil {
		s.Status = "failed"
		s.Error = err.Error()
		s.ErrorKind = string(source.KindOf(err))
		var se *source.Error
		if errors.As(err, &se) {
			s.Retryable = se.IsRetryable()
		}
	}
	return s
}
