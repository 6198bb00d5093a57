// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/migration"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/uuidv7"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestStore opens a throwaway on-disk store with migrations applied.
func openTestStore(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "queue.sqlite"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migration.RunUp(db.RW, testLogger()))
	return db
}

// queuedEntry builds a minimal valid entry; mutate per test.
func queuedEntry(sourceURL string) *Download {
	now := time.Now().UTC().Truncate(time.Second)
	return &Download{
		ID:           uuidv7.New(),
		SourceURL:    sourceURL,
		SourceType:   SourceTypeWeb,
		Title:        "Test Series",
		Status:       StatusPending,
		PluginID:     "gallery-dl",
		CreatedBy:    CreatedByAPI,
		Priority:     5,
		MaxRetries:   3,
		CreatedDate:  now,
		LastModified: now,
	}
}

func TestSQLiteRepositoryInsertAndFind(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	entry := queuedEntry("https://example.com/series/1")
	require.NoError(t, repository.Insert(ctx, entry))

	got, err := repository.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.SourceURL, got.SourceURL)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.StartedDate)
	assert.Nil(t, got.TotalChapters)

	_, err = repository.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, dberr.ErrNotFound)
}

func TestSQLiteRepositoryDispatchOrder(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)

	low := queuedEntry("https://example.com/low")
	low.Priority = 9
	low.CreatedDate = base

	urgent := queuedEntry("https://example.com/urgent")
	urgent.Priority = 1
	urgent.CreatedDate = base.Add(time.Hour) // newer but higher priority

	tieOld := queuedEntry("https://example.com/tie-old")
	tieOld.Priority = 5
	tieOld.CreatedDate = base

	tieNew := queuedEntry("https://example.com/tie-new")
	tieNew.Priority = 5
	tieNew.CreatedDate = base.Add(time.Minute)

	for _, entry := range []*Download{low, tieNew, urgent, tieOld} {
		require.NoError(t, repository.Insert(ctx, entry))
	}

	pending, err := repository.FindPendingOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	assert.Equal(t, urgent.ID, pending[0].ID)
	assert.Equal(t, tieOld.ID, pending[1].ID)
	assert.Equal(t, tieNew.ID, pending[2].ID)
	assert.Equal(t, low.ID, pending[3].ID)

	all, err := repository.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, urgent.ID, all[0].ID)
}

func TestSQLiteRepositoryFindFailedRetryable(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	budget := queuedEntry("https://example.com/budget")
	budget.Status = StatusFailed
	budget.RetryCount = 1

	exhausted := queuedEntry("https://example.com/exhausted")
	exhausted.Status = StatusFailed
	exhausted.RetryCount = 3

	pending := queuedEntry("https://example.com/pending")

	for _, entry := range []*Download{budget, exhausted, pending} {
		require.NoError(t, repository.Insert(ctx, entry))
	}

	retryable, err := repository.FindFailedRetryable(ctx)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, budget.ID, retryable[0].ID)
}

func TestSQLiteRepositoryExistsBySourceURLAndStatusIn(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	done := queuedEntry("https://example.com/done")
	done.Status = StatusCompleted
	require.NoError(t, repository.Insert(ctx, done))

	exists, err := repository.ExistsBySourceURLAndStatusIn(ctx, done.SourceURL, BlockingStatuses)
	require.NoError(t, err)
	assert.True(t, exists)

	// The follow-list suppression set ignores completed entries.
	exists, err = repository.ExistsBySourceURLAndStatusIn(ctx, done.SourceURL, ActiveStatuses)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repository.ExistsBySourceURLAndStatusIn(ctx, "https://example.com/other", BlockingStatuses)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteRepositoryUpdate(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	entry := queuedEntry("https://example.com/update")
	require.NoError(t, repository.Insert(ctx, entry))
	before := entry.LastModified

	started := time.Now().UTC().Truncate(time.Second)
	entry.Status = StatusDownloading
	entry.StartedDate = &started
	entry.Title = "Resolved Title"
	require.NoError(t, repository.Update(ctx, entry))

	got, err := repository.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloading, got.Status)
	assert.Equal(t, "Resolved Title", got.Title)
	require.NotNil(t, got.StartedDate)
	assert.False(t, got.LastModified.Before(before))

	missing := queuedEntry("https://example.com/ghost")
	assert.ErrorIs(t, repository.Update(ctx, missing), dberr.ErrNotFound)
}

func TestSQLiteRepositoryUpdateProgress(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	entry := queuedEntry("https://example.com/progress")
	require.NoError(t, repository.Insert(ctx, entry))

	total := 12
	require.NoError(t, repository.UpdateProgress(ctx, entry.ID, 25, 3.5, &total))

	got, err := repository.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.ProgressPercent)
	assert.Equal(t, 3.5, got.CurrentChapter)
	require.NotNil(t, got.TotalChapters)
	assert.Equal(t, 12, *got.TotalChapters)

	// A nil total leaves the previously written column untouched.
	require.NoError(t, repository.UpdateProgress(ctx, entry.ID, 33, 4, nil))

	got, err = repository.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, got.ProgressPercent)
	require.NotNil(t, got.TotalChapters)
	assert.Equal(t, 12, *got.TotalChapters)
}

func TestSQLiteRepositoryDeleteAndCount(t *testing.T) {
	repository := NewSQLiteRepository(openTestStore(t))
	ctx := context.Background()

	failedOne := queuedEntry("https://example.com/f1")
	failedOne.Status = StatusFailed
	failedTwo := queuedEntry("https://example.com/f2")
	failedTwo.Status = StatusFailed
	pending := queuedEntry("https://example.com/p1")

	for _, entry := range []*Download{failedOne, failedTwo, pending} {
		require.NoError(t, repository.Insert(ctx, entry))
	}

	counts, err := repository.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusFailed])
	assert.Equal(t, 1, counts[StatusPending])

	deleted, err := repository.DeleteByStatus(ctx, StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	require.NoError(t, repository.DeleteByID(ctx, pending.ID))
	assert.ErrorIs(t, repository.DeleteByID(ctx, pending.ID), dberr.ErrNotFound)

	counts, err = repository.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
