package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orangebook/internal/observability/mocks"
	"orangebook/internal/storage"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "lake")
	s, err := NewStorage(base, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	require.NoError(t, err)
	return s, base
}

func TestStorage_PutGetDelete(t *testing.T) {
	s, base := newTestStorage(t)
	ctx := context.Background()
	key := "orange-book/2024-01-02/run-1/orange_book.zip"

	err := s.Put(ctx, key, strings.NewReader("PK\x03\x04"), storage.ObjectMetadata{
		ContentType:  "application/zip",
		UserMetadata: map[string]string{"archive-hash": "abc"},
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(base, "orange-book", "2024-01-02", "run-1", "orange_book.zip"))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04", string(data))

	meta, err := s.Metadata(key)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", meta.ContentType)
	assert.Equal(t, "abc", meta.UserMetadata["archive-hash"])

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
	assert.NoError(t, s.Delete(ctx, key), "deleting twice is fine")
}

func TestStorage_RejectsEscapingKeys(t *testing.T) {
	s, base := newTestStorage(t)

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", ".", ""} {
		t.Run(key, func(t *testing.T) {
			err := s.Put(context.Background(), key, strings.NewReader("x"), storage.ObjectMetadata{})
			assert.Error(t, err)
		})
	}
	_, err := os.Stat(filepath.Join(filepath.Dir(base), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestStorage_LeadingSlashStaysInside(t *testing.T) {
	s, base := newTestStorage(t)

	require.NoError(t, s.Put(context.Background(), "/bronze/records.jsonl", strings.NewReader("{}"), storage.ObjectMetadata{}))
	assert.FileExists(t, filepath.Join(base, "bronze", "records.jsonl"))
}
