package bronze

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orangebook/internal/observability/mocks"
	"orangebook/internal/source"
)

type memWriter struct {
	records []Record
	failAt  int
}

func (m *memWriter) Write(rec Record) error {
	if m.failAt > 0 && len(m.records)+1 == m.failAt {
		return errors.New("disk full")
	}
	m.records = append(m.records, rec)
	return nil
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestor_Ingest(t *testing.T) {
	dir := t.TempDir()
	rx := writeSource(t, dir, "rx.txt", "h\nrow1\n")
	otc := writeSource(t, dir, "otc.txt", "h\n\nrow1\nrow2\n")
	patent := writeSource(t, dir, "patent.txt", "h\n")

	roles := source.FileRoleMap{
		source.RoleProducts:    {rx, otc},
		source.RolePatent:      {patent},
		source.RoleExclusivity: nil,
	}

	w := &memWriter{}
	ing := NewIngestor(NewReader(false), mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	summaries, err := ing.Ingest(roles, time.Now().UTC(), w)

	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "RX", summaries[0].MarketingStatus)
	assert.Equal(t, "OTC", summaries[1].MarketingStatus)
	assert.Equal(t, "", summaries[2].MarketingStatus)
	assert.Equal(t, 3, summaries[1].Records)
	assert.Len(t, w.records, 6)

	otcHash, err := source.HashFile(otc)
	require.NoError(t, err)
	assert.Equal(t, otcHash, summaries[1].Hash)
	for _, rec := range w.records {
		if rec.SourceFile == "otc.txt" {
			assert.Equal(t, otcHash, rec.SourceHash)
		}
	}
}

func TestIngestor_SkipsUnhashableFile(t *testing.T) {
	dir := t.TempDir()
	products := writeSource(t, dir, "products.txt", "h\nrow\n")
	roles := source.FileRoleMap{
		source.RoleProducts: {products},
		source.RolePatent:   {filepath.Join(dir, "vanished.txt")},
	}

	logger := mocks.NewQuietLogger()
	ing := NewIngestor(NewReader(false), logger, mocks.NewQuietMetrics())
	summaries, err := ing.Ingest(roles, time.Now(), &memWriter{})

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, products, summaries[0].Path)
	logger.AssertCalled(t, "Error", "Skipping file due to hash error", mock.Anything)
}

func TestIngestor_WriteFailureAborts(t *testing.T) {
	dir := t.TempDir()
	products := writeSource(t, dir, "products.txt", "a\nb\nc\n")

	ing := NewIngestor(NewReader(false), mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	_, err := ing.Ingest(source.FileRoleMap{source.RoleProducts: {products}}, time.Now(), &memWriter{failAt: 2})

	require.Error(t, err)
	assert.Equal(t, source.IOFailure, source.KindOf(err))
}
