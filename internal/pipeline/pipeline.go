// Package pipeline runs one Orange Book ingestion: acquire the archive, capture
// its files as Bronze records, publish them to object storage and report the
// outcome to the ledger and the event queue.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"orangebook/internal/bronze"
	"orangebook/internal/config"
	"orangebook/internal/events"
	"orangebook/internal/ledger"
	"orangebook/internal/observability"
	"orangebook/internal/source"
	"orangebook/internal/storage"
)

const (
	bronzeFileName   = "bronze.jsonl"
	manifestFileName = "manifest.json"

	kindStorage = "storage_failure"
	kindOther   = "pipeline_failure"
)

// Fetcher downloads the archive
type Fetcher interface {
	Download(ctx context.Context, url, destPath string) error
}

// Extractor unpacks the archive
type Extractor interface {
	Extract(archivePath, destDir string) ([]string, error)
}

// Deps are the collaborators of a Pipeline
type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Ingestor  *bronze.Ingestor
	Storage   storage.ObjectStorage
	Ledger    ledger.Ledger
	Publisher events.Publisher
}

// Result summarizes one run. It is also uploaded as the run manifest.
type Result struct {
	RunID       string               `json:"run_id"`
	SourceURL   string               `json:"source_url"`
	ArchiveHash string               `json:"archive_hash"`
	Roles       source.FileRoleMap   `json:"roles"`
	Files       []bronze.FileSummary `json:"files"`
	RecordCount int                  `json:"record_count"`
	Keys        []string             `json:"keys"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// Pipeline wires the source, Bronze and publishing stages together
type Pipeline struct {
	cfg  *config.Config
	deps Deps

	logger  observability.Logger
	metrics observability.Metrics

	now   func() time.Time
	newID func() string
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator replaces the random run id generator
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New creates a Pipeline
func New(cfg *config.Config, deps Deps, logger observability.Logger, metrics observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one ingestion. Acquisition and Bronze errors are returned as
// the *source.Error the stage produced; ledger, storage and event errors are
// wrapped and combined with it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := p.now().UTC()
	runID := p.newID()
	workDir := filepath.Join(p.cfg.Source.WorkDir, runID)
	src := source.NewArchiveSource(p.cfg.Source.BaseURL, workDir)

	logger := p.logger.WithFields(map[string]interface{}{"run_id": runID})
	logger.Info("Starting ingestion run", "url", src.BaseURL(), "work_dir", workDir)
	p.metrics.IncrementCounter("pipeline.runs.started", nil)

	result := &Result{
		RunID:     runID,
		SourceURL: src.BaseURL(),
		StartedAt: started,
	}

	err := p.deps.Ledger.Start(ctx, &ledger.Run{
		ID:        runID,
		SourceURL: src.BaseURL(),
		Status:    ledger.StatusRunning,
		StartedAt: started,
	})
	if err != nil {
		logger.Error("Failed to record run start", "error", err)
		p.metrics.IncrementCounter("pipeline.runs.failed", map[string]string{"kind": "ledger"})
		return nil, fmt.Errorf("ledger start: %w", err)
	}

	defer p.cleanup(workDir, logger)

	runErr := p.run(ctx, src, workDir, result, logger)
	result.FinishedAt = p.now().UTC()
	duration := float64(result.FinishedAt.Sub(started).Milliseconds())

	if runErr != nil {
		kind := failureKind(runErr)
		logger.Error("Ingestion run failed", "kind", kind, "error", runErr)
		p.metrics.IncrementCounter("pipeline.runs.failed", map[string]string{"kind": kind})
		p.metrics.RecordHistogram("pipeline.duration_ms", duration, map[string]string{"status": "failed"})
		return result, multierr.Combine(runErr, p.reportFailure(ctx, result, kind, runErr))
	}

	logger.Info("Ingestion run completed",
		"archive_hash", result.ArchiveHash,
		"files", len(result.Files),
		"records", result.RecordCount,
		"duration_ms", duration)
	p.metrics.IncrementCounter("pipeline.runs.completed", nil)
	p.metrics.RecordHistogram("pipeline.duration_ms", duration, map[string]string{"status": "completed"})
	p.metrics.RecordGauge("pipeline.last_run.records", float64(result.RecordCount), nil)

	return result, p.reportSuccess(ctx, result)
}

func (p *Pipeline) run(ctx context.Context, src source.ArchiveSource, workDir string, result *Result, logger observability.Logger) error {
	if err := p.deps.Fetcher.Download(ctx, src.BaseURL(), src.ArchivePath()); err != nil {
		return err
	}

	archiveHash, err := source.HashFile(src.ArchivePath())
	if err != nil {
		return err
	}
	result.ArchiveHash = archiveHash
	logger.Info("Archive downloaded", "path", src.ArchivePath(), "hash", archiveHash)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	files, err := p.deps.Extractor.Extract(src.ArchivePath(), src.ExtractDir())
	if err != nil {
		return err
	}

	roles, err := source.ResolveRoles(files)
	if err != nil {
		return err
	}
	result.Roles = roles
	for _, role := range roles.Missing() {
		logger.Warn("Archive has no files for role", "role", role)
		p.metrics.IncrementCounter("pipeline.roles.missing", map[string]string{"role": string(role)})
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	bronzePath := filepath.Join(workDir, bronzeFileName)
	if err := p.capture(roles, result, bronzePath); err != nil {
		return err
	}

	return p.publish(ctx, src, bronzePath, result, logger)
}

// capture writes every resolved file to a local JSONL file
func (p *Pipeline) capture(roles source.FileRoleMap, result *Result, bronzePath string) error {
	w, err := bronze.NewJSONLWriter(bronzePath)
	if err != nil {
		return source.Wrap(source.IOFailure, "bronze", bronzePath, err)
	}

	summaries, err := p.deps.Ingestor.Ingest(roles, result.StartedAt, w)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = source.Wrap(source.IOFailure, "bronze", bronzePath, cerr)
	}
	if err != nil {
		return err
	}

	result.Files = summaries
	for _, s := range summaries {
		result.RecordCount += s.Records
	}
	return nil
}

// publish uploads the archive, the Bronze records and the manifest under
// <prefix>/<yyyy-mm-dd>/<run id>/
func (p *Pipeline) publish(ctx context.Context, src source.ArchiveSource, bronzePath string, result *Result, logger observability.Logger) error {
	prefix := path.Join(p.cfg.Pipeline.KeyPrefix, result.StartedAt.Format("2006-01-02"), result.RunID)
	meta := map[string]string{
		"archive-hash": result.ArchiveHash,
		"run-id":       result.RunID,
	}

	uploads := []struct {
		local       string
		name        string
		contentType string
	}{
		{src.ArchivePath(), filepath.Base(src.ArchivePath()), "application/zip"},
		{bronzePath, bronzeFileName, "application/x-ndjson"},
	}
	for _, u := range uploads {
		key := path.Join(prefix, u.name)
		if err := p.putFile(ctx, key, u.local, storage.ObjectMetadata{ContentType: u.contentType, UserMetadata: meta}); err != nil {
			return err
		}
		result.Keys = append(result.Keys, key)
	}

	manifestKey := path.Join(prefix, manifestFileName)
	result.Keys = append(result.Keys, manifestKey)
	result.FinishedAt = p.now().UTC()

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := p.deps.Storage.Put(ctx, manifestKey, bytes.NewReader(body), storage.ObjectMetadata{ContentType: "application/json", UserMetadata: meta}); err != nil {
		result.Keys = result.Keys[:len(result.Keys)-1]
		return &storeError{key: manifestKey, err: err}
	}

	logger.Info("Published run artifacts", "prefix", prefix, "objects", len(result.Keys))
	return nil
}

func (p *Pipeline) putFile(ctx context.Context, key, local string, meta storage.ObjectMetadata) error {
	f, err := os.Open(local)
	if err != nil {
		return source.Wrap(source.IOFailure, "publish", local, err)
	}
	defer f.Close()

	if err := p.deps.Storage.Put(ctx, key, f, meta); err != nil {
		return &storeError{key: key, err: err}
	}
	return nil
}

func (p *Pipeline) reportSuccess(ctx context.Context, result *Result) error {
	var errs error

	err := p.deps.Ledger.Complete(ctx, result.RunID, ledger.Completion{
		ArchiveHash: result.ArchiveHash,
		FileCount:   len(result.Files),
		RecordCount: result.RecordCount,
		FinishedAt:  result.FinishedAt,
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("ledger complete: %w", err))
	}

	event := p.newEvent(events.TypeIngestionCompleted, result)
	if err := p.deps.Publisher.Publish(ctx, event); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("publish event: %w", err))
	}
	return errs
}

func (p *Pipeline) reportFailure(ctx context.Context, result *Result, kind string, runErr error) error {
	var errs error

	err := p.deps.Ledger.Fail(ctx, result.RunID, ledger.Failure{
		Kind:       kind,
		Message:    runErr.Error(),
		FinishedAt: result.FinishedAt,
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("ledger fail: %w", err))
	}

	event := p.newEvent(events.TypeIngestionFailed, result)
	event.ErrorKind = kind
	event.ErrorMessage = runErr.Error()
	if err := p.deps.Publisher.Publish(ctx, event); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("publish event: %w", err))
	}
	return errs
}

func (p *Pipeline) newEvent(eventType string, result *Result) *events.Event {
	var files map[string]string
	if len(result.Files) > 0 {
		files = make(map[string]string, len(result.Files))
		for _, f := range result.Files {
			files[filepath.Base(f.Path)] = f.Hash
		}
	}
	return &events.Event{
		ID:          p.newID(),
		Type:        eventType,
		RunID:       result.RunID,
		SourceURL:   result.SourceURL,
		ArchiveHash: result.ArchiveHash,
		Files:       files,
		RecordCount: result.RecordCount,
		Keys:        result.Keys,
		OccurredAt:  result.FinishedAt,
	}
}

func (p *Pipeline) cleanup(workDir string, logger observability.Logger) {
	if p.cfg.Pipeline.KeepWorkDir {
		logger.Info("Keeping work directory", "path", workDir)
		return
	}
	if err := source.Cleanup(workDir); err != nil {
		logger.Warn("Failed to remove work directory", "path", workDir, "error", err)
		p.metrics.IncrementCounter("pipeline.cleanup.errors", nil)
	}
}

func failureKind(err error) string {
	if kind := source.KindOf(err); kind != "" {
		return string(kind)
	}
	var se *storeError
	if errors.As(err, &se) {
		return kindStorage
	}
	return kindOther
}

// storeError is an object storage failure while publishing run artifacts
type storeError struct {
	key string
	err error
}

func (e *storeError) Error() string { return fmt.Sprintf("store %s: %v", e.key, e.err) }
func (e *storeError) Unwrap() error { return e.err }
