// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package followcfg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
)

func newServiceFixture(t *testing.T) *Service {
	t.Helper()
	return NewService(openTestRepo(t), testLogger())
}

func TestFollowConfigServiceUpdate(t *testing.T) {
	service := newServiceFixture(t)
	ctx := context.Background()

	cfg, err := service.Update(ctx, true, 6)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 6, cfg.CheckIntervalHours)
	assert.Equal(t, 6*time.Hour, cfg.Interval())

	stored, err := service.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)
}

func TestFollowConfigServiceZeroIntervalDisables(t *testing.T) {
	service := newServiceFixture(t)
	ctx := context.Background()

	_, err := service.Update(ctx, true, 8)
	require.NoError(t, err)

	// Zero is the disable shorthand; the stored cadence survives.
	cfg, err := service.Update(ctx, true, 0)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 8, cfg.CheckIntervalHours)
}

func TestFollowConfigServiceUpdateRejectsOutOfRange(t *testing.T) {
	service := newServiceFixture(t)
	ctx := context.Background()

	for _, hours := range []int{-1, 169} {
		_, err := service.Update(ctx, true, hours)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
	}

	// Nothing was stored.
	cfg, err := service.Get(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultIntervalHours, cfg.CheckIntervalHours)
}

func TestFollowConfigServiceUpdatePreservesHistory(t *testing.T) {
	repository := openTestRepo(t)
	service := NewService(repository, testLogger())
	ctx := context.Background()

	stamp := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repository.Save(ctx, Config{
		Enabled:            true,
		CheckIntervalHours: 12,
		URLs:               []string{"https://mangadex.org/title/aa11/one"},
		LastCheckTime:      &stamp,
	}))

	cfg, err := service.Update(ctx, false, 24)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mangadex.org/title/aa11/one"}, cfg.URLs)
	require.NotNil(t, cfg.LastCheckTime)
	assert.Equal(t, stamp, *cfg.LastCheckTime)
}

func TestFollowConfigServiceStampLastCheck(t *testing.T) {
	service := newServiceFixture(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)
	require.NoError(t, service.StampLastCheck(ctx, at))

	cfg, err := service.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastCheckTime)
	assert.Equal(t, at, *cfg.LastCheckTime)
	// The stamp never flips the enabled switch.
	assert.False(t, cfg.Enabled)
}
