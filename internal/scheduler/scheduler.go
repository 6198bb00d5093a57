// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package scheduler drives the periodic work of the orchestrator: draining
the pending queue, re-queueing failed entries after a linear backoff, and
expanding per-library follow lists at the configured cadence.

Tick bodies are guarded by recover: a failing tick is logged and the
schedule carries on. The queue tick holds a non-reentrant processing gate
so at most one download executes at a time.
*/
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/08shiro80/komga-enhanced-sub000/internal/core/chapterlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/download"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/followcfg"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/progress"
)

// InstallChecker reports whether the extractor binary is usable. The
// queue tick skips dispatch entirely when it is not.
type InstallChecker interface {
	Installed(ctx context.Context) bool
}

// Scheduler owns the three periodic tasks.
type Scheduler struct {
	repo      download.Repository
	executor  *download.Executor
	installed InstallChecker
	checker   *chapterlog.Checker
	schedule  *followcfg.Service
	libraries *library.Registry
	publisher progress.Publisher
	fs        afero.Fs
	logger    *slog.Logger

	// gate is the non-reentrant processing lock: while a dispatch runs,
	// further queue ticks return immediately.
	gate sync.Mutex
}

// New constructs the [Scheduler].
func New(
	repo download.Repository,
	executor *download.Executor,
	installed InstallChecker,
	checker *chapterlog.Checker,
	schedule *followcfg.Service,
	libraries *library.Registry,
	publisher progress.Publisher,
	fs afero.Fs,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		repo:      repo,
		executor:  executor,
		installed: installed,
		checker:   checker,
		schedule:  schedule,
		libraries: libraries,
		publisher: publisher,
		fs:        fs,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

/*
Run executes the three tickers until the context is cancelled.

Parameters:
  - ctx: context.Context

Returns:
  - error: Always nil; kept for errgroup composition at startup
*/
func (s *Scheduler) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.loop(ctx, constants.QueueTickInitialDelay, constants.QueueTickInterval, s.processQueue)
		return nil
	})
	group.Go(func() error {
		s.loop(ctx, constants.RetryTickInitialDelay, constants.RetryTickInterval, s.autoRetryFailed)
		return nil
	})
	group.Go(func() error {
		s.followLoop(ctx)
		return nil
	})

	return group.Wait()
}

// loop runs a tick body on a fixed cadence after an initial delay.
func (s *Scheduler) loop(ctx context.Context, delay, interval time.Duration, tick func(context.Context)) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.safeTick(ctx, tick)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// safeTick shields the schedule from a failing tick body.
func (s *Scheduler) safeTick(ctx context.Context, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick_panic", slog.Any("panic", r))
		}
	}()

	tick(ctx)
}

// # Queue Tick

// processQueue hands the first pending entry to the executor, one entry
// at a time globally.
func (s *Scheduler) processQueue(ctx context.Context) {
	if !s.gate.TryLock() {
		return
	}

	if !s.installed.Installed(ctx) {
		s.gate.Unlock()
		s.logger.Warn("extractor_not_installed_skipping_tick")
		return
	}

	pending, err := s.repo.FindPendingOrdered(ctx)
	if err != nil {
		s.gate.Unlock()
		s.logger.Error("pending_lookup_failed", slog.String("error", err.Error()))
		return
	}
	if len(pending) == 0 {
		s.gate.Unlock()
		return
	}

	entry := pending[0]
	if s.executor.IsActive(entry.ID) {
		s.gate.Unlock()
		return
	}

	// The dispatch blocks on subprocess I/O, so it runs off the tick
	// goroutine; the gate is held until it finishes.
	go func() {
		defer s.gate.Unlock()
		s.executor.Dispatch(ctx, entry)
	}()
}

// # Auto-Retry Tick

// autoRetryFailed flips eligible FAILED entries back to PENDING. Attempt
// k becomes eligible k x RetryBackoffStep after the failure; the retry
// counter itself is consumed by the executor at dispatch.
func (s *Scheduler) autoRetryFailed(ctx context.Context) {
	candidates, err := s.repo.FindFailedRetryable(ctx)
	if err != nil {
		s.logger.Error("retryable_lookup_failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, entry := range candidates {
		backoff := time.Duration(entry.RetryCount+1) * constants.RetryBackoffStep
		if now.Sub(entry.LastModified) < backoff {
			continue
		}

		entry.Status = download.StatusPending
		entry.ErrorMessage = nil
		if err := s.repo.Update(ctx, entry); err != nil {
			s.logger.Error("auto_retry_update_failed",
				slog.String("id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.publisher.Publish(progress.Event{
			Type:         progress.EventRetry,
			DownloadID:   entry.ID,
			Title:        entry.Title,
			SourceURL:    entry.SourceURL,
			Status:       string(download.StatusPending),
			RetryAttempt: entry.RetryCount + 1,
			Timestamp:    time.Now().UTC(),
		})

		s.logger.Info("download_auto_retried",
			slog.String("id", entry.ID),
			slog.Int("attempt", entry.RetryCount+1),
		)
	}
}

// # Follow-List Ticker

// followLoop re-reads the follow configuration each cycle, so interval
// and enablement changes apply at the next tick without preempting a
// running one.
func (s *Scheduler) followLoop(ctx context.Context) {
	for {
		config, err := s.schedule.Get(ctx)
		if err != nil {
			s.logger.Error("follow_config_lookup_failed", slog.String("error", err.Error()))
			config = followcfg.Default()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(config.Interval()):
		}

		// Re-read: the schedule may have been disabled while sleeping.
		config, err = s.schedule.Get(ctx)
		if err != nil || !config.Enabled {
			continue
		}

		s.safeTick(ctx, func(ctx context.Context) {
			s.runFollowCheck(ctx, config)
		})
	}
}

// runFollowCheck expands every library's follow list, plus the legacy
// global URL list, through the chapter checker. The checker enqueues the
// URLs with new chapters and stamps the last-check time.
func (s *Scheduler) runFollowCheck(ctx context.Context, config followcfg.Config) {
	var urls []string

	for _, lib := range s.libraries.List() {
		listed, err := library.ReadFollowList(s.fs, lib.Root)
		if err != nil {
			s.logger.Warn("follow_list_read_failed",
				slog.String("library_id", lib.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		urls = append(urls, listed...)
	}
	urls = append(urls, config.URLs...)
	urls = dedupe(urls)

	if len(urls) == 0 {
		s.logger.Debug("follow_check_no_urls")
		return
	}

	queued, _, err := s.checker.CheckAndQueue(ctx, urls)
	if err != nil {
		s.logger.Error("follow_check_failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("follow_check_completed",
		slog.Int("urls", len(urls)),
		slog.Int("queued", queued),
	)
}

/*
RunLibraryCheckNow expands one library's follow list immediately.

Parameters:
  - ctx: context.Context
  - libraryID: string

Returns:
  - error: apperr.NotFound for an unknown library, or check failures
*/
func (s *Scheduler) RunLibraryCheckNow(ctx context.Context, libraryID string) error {
	lib, err := s.libraries.Get(libraryID)
	if err != nil {
		return err
	}

	urls, err := library.ReadFollowList(s.fs, lib.Root)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return nil
	}

	queued, _, err := s.checker.CheckAndQueue(ctx, dedupe(urls))
	if err != nil {
		return err
	}

	s.logger.Info("library_check_completed",
		slog.String("library_id", libraryID),
		slog.Int("queued", queued),
	)
	return nil
}

// dedupe drops repeated URLs, preserving first-seen order.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0:0]
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
