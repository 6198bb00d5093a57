// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
)

// checkConcurrency bounds parallel catalog lookups during one check run.
// The rate limiter is the real throttle; this cap just keeps a long follow
// list from piling up blocked goroutines.
const checkConcurrency = 5

// Aggregator is the slice of the catalog client the checker needs: the
// cheap volumes-and-chapters count, not the full feed.
type Aggregator interface {
	GetAggregate(ctx context.Context, mangaID, lang string) (int, error)
}

// Enqueuer inserts a follow-list discovery into the download queue. The
// implementation owns duplicate suppression; created reports whether a new
// entry actually appeared.
type Enqueuer interface {
	EnqueueFollowURL(ctx context.Context, sourceURL string) (created bool, err error)
}

// Stamper records the completion time of a follow-list run.
type Stamper interface {
	StampLastCheck(ctx context.Context, at time.Time) error
}

// Checker computes "what is new" for followed series.
//
// Known chapters are the larger of two signals: the chapter-URL history in
// the store, and archives on disk in any library whose series.json mentions
// the manga id. Either alone can lag reality; their max cannot overcount.
type Checker struct {
	aggregate Aggregator
	repo      Repository
	enqueue   Enqueuer
	stamp     Stamper

	fs    afero.Fs
	roots []string
	lang  string

	logger *slog.Logger
}

// NewChecker assembles a checker. roots are the directories scanned for
// filesystem evidence (library roots plus the default downloads dir).
func NewChecker(aggregate Aggregator, repo Repository, enqueue Enqueuer, stamp Stamper, fs afero.Fs, roots []string, lang string, logger *slog.Logger) *Checker {
	return &Checker{
		aggregate: aggregate,
		repo:      repo,
		enqueue:   enqueue,
		stamp:     stamp,
		fs:        fs,
		roots:     roots,
		lang:      lang,
		logger:    logger.With(slog.String("component", "chapter_checker")),
	}
}

/*
CheckAll evaluates every URL, up to [checkConcurrency] at a time.

Results come back in input order. Per-URL failures are folded into the
result's Error field; the only error returned is context cancellation.

Parameters:
  - ctx: context.Context
  - urls: []string

Returns:
  - []CheckResult: One verdict per input URL, same order
  - error: Context cancellation only
*/
func (c *Checker) CheckAll(ctx context.Context, urls []string) ([]CheckResult, error) {
	results := make([]CheckResult, len(urls))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(checkConcurrency)

	for i, url := range urls {
		i, url := i, url
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = c.checkOne(groupCtx, url)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkOne evaluates a single followed URL.
func (c *Checker) checkOne(ctx context.Context, url string) CheckResult {
	result := CheckResult{URL: url}

	// 1. A follow list may carry non-catalog URLs; those are legal queue
	// entries but cannot be diffed, so they never "need download" here.
	mangaID := catalog.ExtractMangaID(url)
	if mangaID == "" {
		result.Error = "not a catalog URL"
		return result
	}
	result.MangaID = mangaID

	// 2. Upstream count via the cheap aggregate endpoint.
	available, err := c.aggregate.GetAggregate(ctx, mangaID, c.lang)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.AvailableChapters = available

	// 3. Known count: store history vs. filesystem evidence.
	recorded, err := c.repo.CountBySeries(ctx, mangaID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	onDisk := library.CountMaterializedArchives(c.fs, c.roots, mangaID)
	known := recorded
	if onDisk > known {
		known = onDisk
	}
	result.KnownChapters = known

	// 4. The estimate never goes negative: local state can legitimately
	// exceed upstream when chapters were delisted.
	if available > known {
		result.NewChapters = available - known
	}
	result.NeedsDownload = result.NewChapters > 0

	return result
}

/*
CheckAndQueue runs [CheckAll] and enqueues a download for every URL that
needs one, then stamps the follow configuration's last-check time.

Idempotent by construction: the enqueuer suppresses URLs that already have
an active or completed entry, so repeated invocations at short intervals
cannot create duplicates.

Parameters:
  - ctx: context.Context
  - urls: []string

Returns:
  - int: Count of newly created queue entries
  - []CheckResult: The underlying verdicts
  - error: Context cancellation or stamping failures
*/
func (c *Checker) CheckAndQueue(ctx context.Context, urls []string) (int, []CheckResult, error) {
	results, err := c.CheckAll(ctx, urls)
	if err != nil {
		return 0, nil, err
	}

	queued := 0
	for _, result := range results {
		if !result.NeedsDownload {
			continue
		}

		created, err := c.enqueue.EnqueueFollowURL(ctx, result.URL)
		if err != nil {
			c.logger.Warn("follow_enqueue_failed",
				slog.String("url", result.URL),
				slog.Any("error", err),
			)
			continue
		}
		if created {
			queued++
			c.logger.Info("follow_chapter_queued",
				slog.String("url", result.URL),
				slog.Int("new_chapters", result.NewChapters),
			)
		}
	}

	if c.stamp != nil {
		if err := c.stamp.StampLastCheck(ctx, time.Now()); err != nil {
			return queued, results, err
		}
	}

	return queued, results, nil
}
