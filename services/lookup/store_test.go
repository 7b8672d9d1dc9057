package lookup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"platecheck/lib/scrapers/csgt"
	"platecheck/lib/telemetry"
)

func openTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	store, err := OpenSqlite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testJob(plate string, status Status) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Plate:       plate,
		Category:    csgt.CategoryCar,
		MaxAttempts: 3,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestStorePutGetRoundTrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	job := testJob("30A12345", StatusCompleted)
	job.CompletedAt = &now
	job.Result = &csgt.Result{
		Query:  csgt.Query{Plate: "30A12345", Category: csgt.CategoryCar},
		Record: &csgt.ViolationRecord{Found: true, Fields: map[csgt.Field]string{csgt.FieldPlate: "30A-123.45"}},
		Status: csgt.StatusSuccess,
	}
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, "30A12345", got.Plate)
	require.Equal(t, csgt.CategoryCar, got.Category)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	require.True(t, got.Result.Record.Found)
	require.Equal(t, "30A-123.45", got.Result.Record.Fields[csgt.FieldPlate])
	require.NotNil(t, got.CompletedAt)
	require.WithinDuration(t, now, *got.CompletedAt, time.Second)
}

func TestStoreGetMissing(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)

	got, err := store.Get(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStorePutUpsertsStatus(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)
	ctx := context.Background()

	job := testJob("30A12345", StatusPending)
	require.NoError(t, store.Put(ctx, job))

	job.Status = StatusFailed
	job.ErrorDetail = "captcha verification failed after 3 attempts"
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "captcha verification failed after 3 attempts", got.ErrorDetail)
}

func TestStoreListFilterAndOrder(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var newest *Job
	for i, status := range []Status{StatusCompleted, StatusFailed, StatusCompleted} {
		job := testJob("30A1234"+string(rune('5'+i)), status)
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Put(ctx, job))
		newest = job
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, newest.ID, all[0].ID)

	completed, err := store.List(ctx, ListFilter{Status: StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 2)

	limited, err := store.List(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, all[1].ID, limited[0].ID)
}

func TestStoreDelete(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)
	ctx := context.Background()

	job := testJob("30A12345", StatusPending)
	require.NoError(t, store.Put(ctx, job))

	deleted, err := store.Delete(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.Delete(ctx, job.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestStoreStats(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	store := openTestStore(t)
	ctx := context.Background()

	for _, status := range []Status{StatusCompleted, StatusCompleted, StatusFailed, StatusPending} {
		require.NoError(t, store.Put(ctx, testJob("30A12345", status)))
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, map[Status]int{
		StatusCompleted: 2,
		StatusFailed:    1,
		StatusPending:   1,
	}, stats)
}
