package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orangebook/internal/observability"
	"orangebook/internal/storage"
)

const metadataSuffix = ".meta.json"

// Storage implements ObjectStorage on the local filesystem
type Storage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewStorage creates a new filesystem-based object storage rooted at basePath
func NewStorage(basePath string, logger observability.Logger, metrics observability.Metrics) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error("Failed to create base path", "path", basePath, "error", err)
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("Filesystem storage initialized", "base_path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger.WithFields(map[string]interface{}{"component": "filesystem_storage"}),
		metrics:  metrics.WithTags(map[string]string{"storage": "filesystem"}),
	}, nil
}

// Put stores an object and its metadata sidecar
func (s *Storage) Put(ctx context.Context, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	startTime := time.Now()
	s.metrics.IncrementCounter("storage.put.attempts", nil)

	objectPath, err := s.objectPath(key)
	if err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "invalid_key"})
		return err
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		s.logger.Error("Failed to create object directory", "key", key, "error", err)
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "mkdir"})
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(objectPath)
	if err != nil {
		s.logger.Error("Failed to create file", "path", objectPath, "error", err)
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "create"})
		return fmt.Errorf("failed to create file: %w", err)
	}

	bytesWritten, err := io.Copy(file, reader)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.logger.Error("Failed to write data", "key", key, "error", err)
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "write"})
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := s.saveMetadata(objectPath, metadata); err != nil {
		s.logger.Error("Failed to save metadata", "key", key, "error", err)
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "metadata"})
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	duration := time.Since(startTime)
	s.logger.Info("Object stored successfully",
		"key", key,
		"bytes", bytesWritten,
		"duration_ms", duration.Milliseconds())

	s.metrics.IncrementCounter("storage.put.success", nil)
	s.metrics.RecordHistogram("storage.put.bytes", float64(bytesWritten), nil)
	s.metrics.RecordHistogram("storage.put.duration_ms", float64(duration.Milliseconds()), nil)

	return nil
}

// Get opens a stored object
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectPath, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(objectPath)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			s.metrics.IncrementCounter("storage.get.errors", map[string]string{"error": "not_found"})
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		s.metrics.IncrementCounter("storage.get.errors", map[string]string{"error": "open"})
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	s.metrics.IncrementCounter("storage.get.success", nil)
	return file, nil
}

// Metadata returns the metadata saved with an object
func (s *Storage) Metadata(key string) (storage.ObjectMetadata, error) {
	var metadata storage.ObjectMetadata

	objectPath, err := s.objectPath(key)
	if err != nil {
		return metadata, err
	}
	data, err := os.ReadFile(objectPath + metadataSuffix)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return metadata, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return metadata, err
	}
	err = json.Unmarshal(data, &metadata)
	return metadata, err
}

// Delete removes an object and its metadata
func (s *Storage) Delete(ctx context.Context, key string) error {
	objectPath, err := s.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(objectPath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		s.logger.Error("Failed to delete object", "path", objectPath, "error", err)
		s.metrics.IncrementCounter("storage.delete.errors", nil)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	os.Remove(objectPath + metadataSuffix)

	s.logger.Info("Object deleted successfully", "key", key)
	s.metrics.IncrementCounter("storage.delete.success", nil)
	return nil
}

// objectPath maps a key to a path under basePath, refusing keys that would escape it
func (s *Storage) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *Storage) saveMetadata(objectPath string, metadata storage.ObjectMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(objectPath+metadataSuffix, data, 0o644)
}
