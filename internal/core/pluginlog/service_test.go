// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
)

// failingRepo rejects every write to exercise the fire-and-forget path.
type failingRepo struct{}

func (failingRepo) Insert(context.Context, *Entry) error { return errors.New("disk full") }
func (failingRepo) List(context.Context, string, int) ([]*Entry, error) {
	return nil, errors.New("disk full")
}
func (failingRepo) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, errors.New("disk full")
}
func (failingRepo) GetConfig(context.Context, string) (map[string]string, error) {
	return nil, errors.New("disk full")
}
func (failingRepo) SetConfig(context.Context, string, string, string) error {
	return errors.New("disk full")
}

// limitSpy records the limit the service hands to the store.
type limitSpy struct {
	failingRepo

	mu     sync.Mutex
	limits []int
}

func (s *limitSpy) List(_ context.Context, _ string, limit int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, limit)
	return []*Entry{}, nil
}

func TestPluginLogServiceAppendAssignsDefaults(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	ctx := context.Background()

	service.Append(ctx, PluginGalleryDL, Level("bogus"), "strange level", nil)

	entries, err := service.List(ctx, PluginGalleryDL, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestPluginLogServiceAppendSwallowsStoreFailure(t *testing.T) {
	service := NewService(failingRepo{}, testLogger())

	// Must not panic or surface the error.
	service.Append(context.Background(), PluginGalleryDL, LevelError, "stderr line", nil)
}

func TestPluginLogServiceListClampsLimit(t *testing.T) {
	spy := &limitSpy{}
	service := NewService(spy, testLogger())
	ctx := context.Background()

	_, err := service.List(ctx, "", 0)
	require.NoError(t, err)
	_, err = service.List(ctx, "", -5)
	require.NoError(t, err)
	_, err = service.List(ctx, "", 5000)
	require.NoError(t, err)
	_, err = service.List(ctx, "", 25)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 1000, 25}, spy.limits)
}

func TestPluginLogServicePrune(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	ctx := context.Background()

	old := diagnosticLine(PluginGalleryDL, "stale", time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, repository.Insert(ctx, old))
	require.NoError(t, repository.Insert(ctx, diagnosticLine(PluginGalleryDL, "fresh", time.Now().UTC())))

	deleted, err := service.Prune(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Retention must be explicit.
	_, err = service.Prune(ctx, 0)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

func TestPluginLogServiceUpdateConfig(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	ctx := context.Background()

	values, err := service.UpdateConfig(ctx, PluginGalleryDL, map[string]string{
		ConfigKeyUsername: "reader",
		ConfigKeyPassword: "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "reader", values[ConfigKeyUsername])
	assert.Equal(t, "hunter2", values[ConfigKeyPassword])

	stored, err := service.Config(ctx, PluginGalleryDL)
	require.NoError(t, err)
	assert.Equal(t, values, stored)
}

func TestPluginLogServiceUpdateConfigRejectsUnknownKey(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	ctx := context.Background()

	_, err := service.UpdateConfig(ctx, PluginGalleryDL, map[string]string{"api_token": "x"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	_, err = service.UpdateConfig(ctx, "", map[string]string{ConfigKeyUsername: "reader"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	// Nothing was written.
	stored, err := service.Config(ctx, PluginGalleryDL)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPluginLogSinkPinsPluginID(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	sink := NewSink(service, PluginGalleryDL)

	sink.Log("WARN", "login required for chapter 12")

	entries, err := service.List(context.Background(), PluginGalleryDL, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, LevelWarn, entries[0].Level)
	assert.Equal(t, "login required for chapter 12", entries[0].Message)
}
