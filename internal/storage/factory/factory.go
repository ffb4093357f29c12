// Package factory builds the storage adapter selected by configuration.
package factory

import (
	"context"
	"fmt"

	"orangebook/internal/config"
	"orangebook/internal/observability"
	"orangebook/internal/storage"
	"orangebook/internal/storage/adapters/fs"
	"orangebook/internal/storage/adapters/s3"
)

// New creates the storage adapter selected by cfg.Adapters.Storage
func New(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (storage.ObjectStorage, error) {
	switch cfg.Adapters.Storage {
	case "s3":
		logger.Info("Creating S3 storage adapter",
			"bucket", cfg.Storage.BucketOrPath,
			"region", cfg.Storage.S3.Region)
		return s3.New(ctx, &cfg.Storage, logger, metrics)

	case "filesystem":
		logger.Info("Creating filesystem storage adapter",
			"path", cfg.Storage.BucketOrPath)
		return fs.NewStorage(cfg.Storage.BucketOrPath, logger, metrics)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Adapters.Storage)
	}
}
