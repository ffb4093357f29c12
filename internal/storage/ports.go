// Package storage defines the object storage port the pipeline publishes
// archives and Bronze output through.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when an object is not found in storage
var ErrObjectNotFound = errors.New("object not found")

// ObjectMetadata represents metadata associated with stored objects
type ObjectMetadata struct {
	ContentType  string
	UserMetadata map[string]string
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage stores objects under keys in one configured bucket or directory
type ObjectStorage interface {
	// Put stores the reader's content under key
	Put(ctx context.Context, key string, reader io.Reader, metadata ObjectMetadata) error

	// Get opens the object stored under key; ErrObjectNotFound if absent
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error
}
