package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/storage"
)

func newTestStorage(t *testing.T) storage.StorageInterface {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func testJob(runAt time.Time) *storage.Job {
	return &storage.Job{
		ItemID:     "t3_abc",
		ItemKind:   "post",
		UniqueID:   "t3_abc",
		WebhookURL: "https://discord.com/api/webhooks/1/token",
		Payload:    []byte(`{"content":"hi"}`),
		RunAt:      runAt,
	}
}

func TestJobStore_EnqueueAssignsID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	job := testJob(time.Now().Add(time.Hour))
	require.NoError(t, s.Jobs().Enqueue(ctx, job))
	assert.NotZero(t, job.ID)
}

func TestJobStore_DueReturnsOnlyElapsedJobs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	early := testJob(now.Add(-time.Minute))
	late := testJob(now.Add(time.Hour))
	require.NoError(t, s.Jobs().Enqueue(ctx, early))
	require.NoError(t, s.Jobs().Enqueue(ctx, late))

	due, err := s.Jobs().Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, "t3_abc", due[0].ItemID)
	assert.JSONEq(t, `{"content":"hi"}`, string(due[0].Payload))
}

func TestJobStore_DueOrdersByRunAt(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	second := testJob(now.Add(-time.Minute))
	first := testJob(now.Add(-2 * time.Minute))
	require.NoError(t, s.Jobs().Enqueue(ctx, second))
	require.NoError(t, s.Jobs().Enqueue(ctx, first))

	due, err := s.Jobs().Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)
}

func TestJobStore_Delete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	job := testJob(time.Now().Add(-time.Minute))
	require.NoError(t, s.Jobs().Enqueue(ctx, job))
	require.NoError(t, s.Jobs().Delete(ctx, job.ID))

	due, err := s.Jobs().Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestJobStore_DeleteOlderThan(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	stale := testJob(time.Now().Add(-48 * time.Hour))
	fresh := testJob(time.Now().Add(-time.Minute))
	require.NoError(t, s.Jobs().Enqueue(ctx, stale))
	require.NoError(t, s.Jobs().Enqueue(ctx, fresh))

	require.NoError(t, s.Jobs().DeleteOlderThan(ctx, 24*time.Hour))

	due, err := s.Jobs().Due(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, fresh.ID, due[0].ID)
}
