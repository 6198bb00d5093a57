// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/uuidv7"
)

// # Service Layer

// Service exposes the chapter history to the executor (record inserts) and
// to the REST surface (lookups and the re-download window tools).
type Service struct {
	repo    Repository
	checker *Checker
	logger  *slog.Logger
}

// NewService constructs a chapter-history [Service].
func NewService(repo Repository, checker *Checker, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		checker: checker,
		logger:  logger.With(slog.String("component", "chapterlog")),
	}
}

/*
RecordDownloaded persists the proof-of-download for one completed chapter.

Called by the executor after each successful chapter, in iteration order.
A duplicate URL is a silent no-op.

Parameters:
  - context: context.Context
  - seriesID: string (catalog manga id)
  - chapter: metadata.ChapterDescriptor

Returns:
  - error: Database execution failures
*/
func (service *Service) RecordDownloaded(context context.Context, seriesID string, chapter metadata.ChapterDescriptor) error {
	now := time.Now().UTC()

	record := &Record{
		ID:            uuidv7.New(),
		SeriesID:      seriesID,
		URL:           chapter.ChapterURL,
		ChapterNumber: chapter.ChapterNumber,
		Title:         chapter.Title,
		Lang:          langutil.Normalize(chapter.Language),
		Source:        SourceMangaDex,
		DownloadedAt:  now,
		CreatedDate:   now,
		LastModified:  now,
	}
	if chapter.ChapterID != "" {
		record.ChapterID = &chapter.ChapterID
	}
	if chapter.ScanlationGroup != "" {
		record.ScanlationGroup = &chapter.ScanlationGroup
	}
	if volume := parseVolume(chapter.Volume); volume != nil {
		record.Volume = volume
	}

	created, err := service.repo.Insert(context, record)
	if err != nil {
		return err
	}
	if !created {
		service.logger.Debug("chapter_url_already_recorded", slog.String("url", record.URL))
	}

	return nil
}

/*
IsDownloaded reports whether a chapter URL is already recorded.

Parameters:
  - context: context.Context
  - url: string

Returns:
  - bool: Presence in the history
  - error: Validation or retrieval failures
*/
func (service *Service) IsDownloaded(context context.Context, url string) (bool, error) {
	validator := &validate.Validator{}
	validator.Required(FieldURL, url)
	if err := validator.Err(); err != nil {
		return false, err
	}

	return service.repo.ExistsByURL(context, url)
}

/*
AreDownloaded batch-checks a set of chapter URLs.

Parameters:
  - context: context.Context
  - urls: []string

Returns:
  - map[string]bool: One entry per input URL
  - error: Validation or retrieval failures
*/
func (service *Service) AreDownloaded(context context.Context, urls []string) (map[string]bool, error) {
	validator := &validate.Validator{}
	validator.Custom(FieldURL, len(urls) == 0, "At least one URL is required")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	return service.repo.ExistsByURLs(context, urls)
}

/*
NewChaptersForSeries runs a single-URL chapter check for one series.

Parameters:
  - context: context.Context
  - mangaURL: string (the followed catalog URL)

Returns:
  - CheckResult: The checker's verdict
  - error: Validation or cancellation failures
*/
func (service *Service) NewChaptersForSeries(context context.Context, mangaURL string) (CheckResult, error) {
	validator := &validate.Validator{}
	validator.Required("mangaUrl", mangaURL)
	if err := validator.Err(); err != nil {
		return CheckResult{}, err
	}

	results, err := service.checker.CheckAll(context, []string{mangaURL})
	if err != nil {
		return CheckResult{}, err
	}

	return results[0], nil
}

/*
ListBySeries returns a series' download history, ascending chapter number.
*/
func (service *Service) ListBySeries(context context.Context, seriesID string) ([]*Record, error) {
	validator := &validate.Validator{}
	validator.Required(FieldSeriesID, seriesID)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	return service.repo.FindBySeries(context, seriesID)
}

/*
ListByDateRange returns records downloaded inside [from, to].
*/
func (service *Service) ListByDateRange(context context.Context, from, to time.Time) ([]*Record, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	return service.repo.FindByDateRange(context, from, to)
}

/*
Delete removes one record by id.
*/
func (service *Service) Delete(context context.Context, id string) error {
	return service.repo.DeleteByID(context, id)
}

/*
DeleteBySeries removes a series' whole history, returning the count.

The next chapter check will see those chapters as new again (unless the
archives still sit in a library): this is the per-series re-download tool.
*/
func (service *Service) DeleteBySeries(context context.Context, seriesID string) (int, error) {
	validator := &validate.Validator{}
	validator.Required(FieldSeriesID, seriesID)
	if err := validator.Err(); err != nil {
		return 0, err
	}

	return service.repo.DeleteBySeries(context, seriesID)
}

/*
DeleteByDateRange removes records downloaded inside [from, to], returning
the count. This is the operational re-download window tool.
*/
func (service *Service) DeleteByDateRange(context context.Context, from, to time.Time) (int, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}

	deleted, err := service.repo.DeleteByDateRange(context, from, to)
	if err != nil {
		return 0, err
	}

	service.logger.Info("chapter_urls_range_deleted",
		slog.Int("deleted", deleted),
		slog.Time("from", from),
		slog.Time("to", to),
	)
	return deleted, nil
}

/*
DeleteAll wipes the whole history. The REST layer demands an explicit
confirmation flag before calling this.
*/
func (service *Service) DeleteAll(context context.Context) (int, error) {
	deleted, err := service.repo.DeleteAll(context)
	if err != nil {
		return 0, err
	}

	service.logger.Warn("chapter_url_history_wiped", slog.Int("deleted", deleted))
	return deleted, nil
}

// validateRange rejects zero or inverted date bounds.
func validateRange(from, to time.Time) error {
	validator := &validate.Validator{}
	validator.Custom(FieldFrom, from.IsZero(), "This field is required")
	validator.Custom(FieldTo, to.IsZero(), "This field is required")
	validator.Custom(FieldTo, !from.IsZero() && !to.IsZero() && to.Before(from), "Must not precede 'from'")
	return validator.Err()
}

// parseVolume converts the catalog's free-form volume string to an int
// pointer; non-numeric volumes ("Extra") map to nil.
func parseVolume(volume string) *int {
	if volume == "" {
		return nil
	}

	n := 0
	for _, r := range volume {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int(r-'0')
	}
	return &n
}
