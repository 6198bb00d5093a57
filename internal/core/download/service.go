// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/pluginlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/uuidv7"
)

// # Service Layer

// RateReporter exposes the outbound limiter's window counters for the
// stats endpoint.
type RateReporter interface {
	Stats() catalog.RateStats
}

// Service owns queue entry lifecycle outside of active execution: create
// with duplicate suppression, retry, delete, bulk clears and stats. The
// in-flight state machine belongs to [Executor].
type Service struct {
	repo     Repository
	executor *Executor
	rates    RateReporter
	logger   *slog.Logger
}

// NewService constructs the queue [Service].
func NewService(repo Repository, executor *Executor, rates RateReporter, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		executor: executor,
		rates:    rates,
		logger:   logger.With(slog.String("component", "download")),
	}
}

/*
Create queues a new download.

Description: Validates the request, derives the source type from the URL
shape and suppresses duplicates — for a given source URL at most one entry
may sit in PENDING, DOWNLOADING or COMPLETED. Earlier FAILED or CANCELLED
entries do not block.

Parameters:
  - context: context.Context
  - request: CreateRequest

Returns:
  - *Download: The queued entry
  - error: Validation failures, apperr.Conflict on an active duplicate
*/
func (service *Service) Create(context context.Context, request CreateRequest) (*Download, error) {
	validator := &validate.Validator{}
	validator.Required(FieldSourceURL, request.SourceURL)
	validator.Custom(FieldSourceURL,
		request.SourceURL != "" && !strings.HasPrefix(request.SourceURL, "http"),
		"Must be an http(s) URL")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	entry, created, err := service.insertUnlessExists(context, request, CreatedByAPI, BlockingStatuses)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apperr.Conflict("A download for this URL is already queued, running or completed")
	}

	service.logger.Info("download_queued",
		slog.String("id", entry.ID),
		slog.String("source_url", entry.SourceURL),
		slog.Int("priority", entry.Priority),
	)
	return entry, nil
}

/*
EnqueueFollowURL queues a follow-list URL at default priority.

Description: Duplicate suppression here only considers PENDING and
DOWNLOADING: a completed series with new chapters must be re-queueable by
the checker without operator intervention.

Parameters:
  - context: context.Context
  - sourceURL: string

Returns:
  - bool: Whether a new entry was inserted
  - error: Database failures
*/
func (service *Service) EnqueueFollowURL(context context.Context, sourceURL string) (bool, error) {
	_, created, err := service.insertUnlessExists(context, CreateRequest{SourceURL: sourceURL}, CreatedByFollowList, ActiveStatuses)
	if err != nil {
		return false, err
	}

	if created {
		service.logger.Info("follow_url_queued", slog.String("source_url", sourceURL))
	}
	return created, nil
}

// insertUnlessExists builds and persists an entry unless the source URL
// already occupies one of the blocking states.
func (service *Service) insertUnlessExists(context context.Context, request CreateRequest, createdBy string, blocking []Status) (*Download, bool, error) {
	exists, err := service.repo.ExistsBySourceURLAndStatusIn(context, request.SourceURL, blocking)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	now := time.Now().UTC()
	entry := &Download{
		ID:           uuidv7.New(),
		SourceURL:    request.SourceURL,
		SourceType:   sourceTypeOf(request.SourceURL),
		Title:        request.Title,
		Status:       StatusPending,
		LibraryID:    request.LibraryID,
		PluginID:     pluginlog.PluginGalleryDL,
		CreatedBy:    createdBy,
		Priority:     normalizePriority(request.Priority),
		MaxRetries:   constants.DefaultMaxRetries,
		CreatedDate:  now,
		LastModified: now,
	}

	if err := service.repo.Insert(context, entry); err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

/*
List returns every queue entry in dispatch order (priority ascending, then
creation date ascending).
*/
func (service *Service) List(context context.Context) ([]*Download, error) {
	return service.repo.FindAll(context)
}

/*
Get retrieves one entry by id.
*/
func (service *Service) Get(context context.Context, id string) (*Download, error) {
	return service.repo.FindByID(context, id)
}

/*
Act applies a lifecycle action ("cancel" or "retry") to one entry.

Parameters:
  - context: context.Context
  - id: string
  - action: string

Returns:
  - error: Validation failures, or the action's own failures
*/
func (service *Service) Act(context context.Context, id, action string) error {
	validator := &validate.Validator{}
	validator.OneOf(FieldAction, action, ActionCancel, ActionRetry)
	if err := validator.Err(); err != nil {
		return err
	}

	switch action {
	case ActionCancel:
		return service.executor.Cancel(context, id)
	default:
		return service.Retry(context, id)
	}
}

/*
Retry flips a FAILED entry back to PENDING and clears its error message.

The retry counter is not touched here: it increments when the executor
actually dispatches the new attempt, so a retry that never runs does not
consume budget.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: apperr.NotFound, or a validation failure when the entry is not
    retryable
*/
func (service *Service) Retry(context context.Context, id string) error {
	entry, err := service.repo.FindByID(context, id)
	if err != nil {
		return err
	}

	validator := &validate.Validator{}
	validator.Custom(FieldStatus, entry.Status != StatusFailed, "Only failed downloads can be retried")
	validator.Custom(FieldStatus, entry.Status == StatusFailed && entry.RetryCount >= entry.MaxRetries, "Retry budget exhausted")
	if err := validator.Err(); err != nil {
		return err
	}

	entry.Status = StatusPending
	entry.ErrorMessage = nil
	if err := service.repo.Update(context, entry); err != nil {
		return err
	}

	service.logger.Info("download_retry_requested",
		slog.String("id", entry.ID),
		slog.Int("retry_count", entry.RetryCount),
	)
	return nil
}

/*
Delete removes an entry, terminating its subprocess first when active.
Files already on disk are left in place.
*/
func (service *Service) Delete(context context.Context, id string) error {
	service.executor.Terminate(id)

	if err := service.repo.DeleteByID(context, id); err != nil {
		return err
	}

	service.logger.Info("download_deleted", slog.String("id", id))
	return nil
}

/*
ClearByStatus bulk-deletes every entry in one terminal-or-pending state.

Parameters:
  - context: context.Context
  - rawStatus: string (lower- or upper-case status name)

Returns:
  - ClearResult: Count and confirmation message
  - error: Validation failures when the status is not clearable
*/
func (service *Service) ClearByStatus(context context.Context, rawStatus string) (ClearResult, error) {
	status := Status(strings.ToUpper(rawStatus))

	validator := &validate.Validator{}
	validator.Custom(FieldStatus, !status.IsValid() || status == StatusDownloading, "Must be one of: completed, failed, cancelled, pending")
	if err := validator.Err(); err != nil {
		return ClearResult{}, err
	}

	deleted, err := service.repo.DeleteByStatus(context, status)
	if err != nil {
		return ClearResult{}, err
	}

	service.logger.Info("downloads_cleared",
		slog.String("status", string(status)),
		slog.Int("deleted", deleted),
	)
	return ClearResult{
		DeletedCount: deleted,
		Status:       status,
		Message:      fmt.Sprintf("Removed %d %s download(s)", deleted, strings.ToLower(string(status))),
	}, nil
}

/*
Stats snapshots the queue counters and the outbound limiter windows.
*/
func (service *Service) Stats(context context.Context) (Stats, error) {
	counts, err := service.repo.CountByStatus(context)
	if err != nil {
		return Stats{}, err
	}

	byStatus := map[Status]int{
		StatusPending:     0,
		StatusDownloading: 0,
		StatusCompleted:   0,
		StatusFailed:      0,
		StatusCancelled:   0,
	}
	for status, count := range counts {
		byStatus[status] = count
	}

	rates := service.rates.Stats()
	return Stats{
		ByStatus:                  byStatus,
		CatalogRequestsLastSecond: rates.SecondCount,
		CatalogRequestsLastMinute: rates.MinuteCount,
	}, nil
}

// sourceTypeOf classifies a URL by whether the catalog client can resolve
// it directly.
func sourceTypeOf(sourceURL string) string {
	if catalog.IsCatalogURL(sourceURL) {
		return SourceTypeCatalog
	}
	return SourceTypeWeb
}
