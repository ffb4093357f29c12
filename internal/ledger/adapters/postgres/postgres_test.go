package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orangebook/internal/ledger"
	"orangebook/internal/observability/mocks"
)

func TestQueries(t *testing.T) {
	l := NewWithDB(nil, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Minute)

	t.Run("insert defaults to running", func(t *testing.T) {
		query, args, err := l.insertRun(&ledger.Run{ID: "run-1", SourceURL: "https://example.test/ob.zip", StartedAt: started})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ingestion_runs (id,source_url,status,started_at) VALUES ($1,$2,$3,$4)", query)
		assert.Equal(t, []interface{}{"run-1", "https://example.test/ob.zip", "running", started}, args)
	})

	t.Run("complete only transitions running rows", func(t *testing.T) {
		query, args, err := l.completeRun("run-1", ledger.Completion{
			ArchiveHash: "abc", FileCount: 3, RecordCount: 42, FinishedAt: finished,
		})
		require.NoError(t, err)
		assert.Equal(t, "UPDATE ingestion_runs SET status = $1, archive_hash = $2, file_count = $3, record_count = $4, finished_at = $5 WHERE id = $6 AND status = $7", query)
		assert.Equal(t, []interface{}{"completed", "abc", 3, 42, finished, "run-1", "running"}, args)
	})

	t.Run("fail records the error kind", func(t *testing.T) {
		query, args, err := l.failRun("run-1", ledger.Failure{
			Kind: "schema_error", Message: "Missing required product files", FinishedAt: finished,
		})
		require.NoError(t, err)
		assert.Equal(t, "UPDATE ingestion_runs SET status = $1, error_kind = $2, error_message = $3, finished_at = $4 WHERE id = $5 AND status = $6", query)
		assert.Equal(t, []interface{}{"failed", "schema_error", "Missing required product files", finished, "run-1", "running"}, args)
	})
}

// Runs against a real database when ORANGEBOOK_TEST_DATABASE_DSN is set
func TestLedger_Postgres(t *testing.T) {
	dsn := os.Getenv("ORANGEBOOK_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("ORANGEBOOK_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	l := NewWithDB(db, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	defer l.Close()
	require.NoError(t, l.EnsureSchema(ctx))

	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, l.Start(ctx, &ledger.Run{ID: id, SourceURL: "https://example.test", StartedAt: now}))

	run, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, l.Complete(ctx, id, ledger.Completion{ArchiveHash: "abc", FileCount: 3, RecordCount: 10, FinishedAt: now}))
	run, err = l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, run.Status)
	require.NotNil(t, run.ArchiveHash)
	assert.Equal(t, "abc", *run.ArchiveHash)
	assert.Equal(t, 10, run.RecordCount)

	err = l.Fail(ctx, id, ledger.Failure{Kind: "io_failure", Message: "late", FinishedAt: now})
	assert.True(t, errors.Is(err, ledger.ErrRunNotFound), "finished runs cannot transition again")

	_, err = l.Get(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, ledger.ErrRunNotFound))
}
