package bronze

import (
	"fmt"
	"path/filepath"
	"time"

	"orangebook/internal/observability"
	"orangebook/internal/source"
)

// FileSummary describes one captured source file
type FileSummary struct {
	Role            source.Role `json:"role"`
	Path            string      `json:"path"`
	FileID          string      `json:"file_id"`
	Hash            string      `json:"hash"`
	Records         int         `json:"records"`
	MarketingStatus string      `json:"marketing_status,omitempty"`
}

// Ingestor hashes each resolved file once and streams its lines to a RecordWriter
type Ingestor struct {
	reader  *Reader
	hash    func(path string) (string, error)
	logger  observability.Logger
	metrics observability.Metrics
}

// NewIngestor creates an Ingestor
func NewIngestor(reader *Reader, logger observability.Logger, metrics observability.Metrics) *Ingestor {
	return &Ingestor{
		reader:  reader,
		hash:    source.HashFile,
		logger:  logger.WithFields(map[string]interface{}{"component": "bronze"}),
		metrics: metrics,
	}
}

// Ingest captures every file of roles in role order. A file whose hash cannot
// be computed is skipped and logged; read and write failures abort.
func (i *Ingestor) Ingest(roles source.FileRoleMap, ingestedAt time.Time, w RecordWriter) ([]FileSummary, error) {
	var summaries []FileSummary

	for _, role := range source.Roles {
		for _, path := range roles[role] {
			i.logger.Info("Processing source file", "role", role, "path", path)

			hash, err := i.hash(path)
			if err != nil {
				i.metrics.IncrementCounter("bronze.files.skipped", map[string]string{"role": string(role)})
				i.logger.Error("Skipping file due to hash error", "path", path, "error", err)
				continue
			}

			var writeErr error
			n, err := i.reader.ReadFile(path, role, hash, ingestedAt, func(rec Record) error {
				if err := w.Write(rec); err != nil {
					writeErr = err
					return err
				}
				return nil
			})
			if writeErr != nil {
				return summaries, source.Wrap(source.IOFailure, "bronze", path, writeErr)
			}
			if err != nil {
				return summaries, source.Wrap(source.IOFailure, "bronze", path, fmt.Errorf("read failed: %w", err))
			}

			summary := FileSummary{
				Role:    role,
				Path:    path,
				FileID:  FileID(filepath.Base(path), hash),
				Hash:    hash,
				Records: n,
			}
			if role == source.RoleProducts {
				summary.MarketingStatus = source.MarketingStatus(path)
			}
			summaries = append(summaries, summary)

			i.metrics.IncrementCounter("bronze.files", map[string]string{"role": string(role)})
			i.metrics.RecordHistogram("bronze.records", float64(n), map[string]string{"role": string(role)})
			i.logger.Info("Captured source file", "role", role, "path", path, "hash", hash, "records", n)
		}
	}

	return summaries, nil
}
