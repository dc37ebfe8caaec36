package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRecordRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rec := &CacheRecord{
		CacheKey:    "tt123:1080p",
		ResolvedURL: "https://example.com/video.mkv",
		StreamTitle: "Example Movie (2020)",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.UpsertCacheRecord(ctx, rec))

	got, err := repo.GetCacheRecord(ctx, rec.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, rec.ResolvedURL, got.ResolvedURL)
	assert.Equal(t, rec.StreamTitle, got.StreamTitle)

	rec.ResolvedURL = "https://example.com/video2.mkv"
	require.NoError(t, repo.UpsertCacheRecord(ctx, rec))

	got, err = repo.GetCacheRecord(ctx, rec.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/video2.mkv", got.ResolvedURL)
}

func TestGetCacheRecordExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rec := &CacheRecord{
		CacheKey:    "expired-key",
		ResolvedURL: "https://example.com/gone.mkv",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.UpsertCacheRecord(ctx, rec))

	_, err := repo.GetCacheRecord(ctx, rec.CacheKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteExpiredCacheRecords(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertCacheRecord(ctx, &CacheRecord{
		CacheKey: "stale", ResolvedURL: "u", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, repo.UpsertCacheRecord(ctx, &CacheRecord{
		CacheKey: "fresh", ResolvedURL: "u", ExpiresAt: time.Now().Add(time.Hour),
	}))

	n, err := repo.DeleteExpiredCacheRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetCacheRecord(ctx, "fresh")
	assert.NoError(t, err)
}

func TestDownloadHandleLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rec := &DownloadHandleRecord{
		HandleID: "handle-1",
		NZBUrl:   "https://example.com/file.nzb",
		Title:    "Example Movie (2020)",
		State:    "queued",
	}
	require.NoError(t, repo.UpsertDownloadHandle(ctx, rec))

	rec.State = "downloading"
	rec.ProgressPct = 42.5
	rec.SABnzbdNzoID = "SABnzbd_nzo_abc"
	require.NoError(t, repo.UpsertDownloadHandle(ctx, rec))

	got, err := repo.GetDownloadHandle(ctx, rec.HandleID)
	require.NoError(t, err)
	assert.Equal(t, "downloading", got.State)
	assert.InDelta(t, 42.5, got.ProgressPct, 0.001)
	assert.Equal(t, "SABnzbd_nzo_abc", got.SABnzbdNzoID)

	list, err := repo.ListDownloadHandlesByState(ctx, "downloading")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.HandleID, list[0].HandleID)

	require.NoError(t, repo.DeleteDownloadHandle(ctx, rec.HandleID))
	_, err = repo.GetDownloadHandle(ctx, rec.HandleID)
	assert.ErrorIs(t, err, ErrNotFound)
}
