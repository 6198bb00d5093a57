// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package download owns the queue of series downloads and the executor that
drains it.

A [Download] is one queued request, created by the REST boundary or by the
follow-list machinery, and driven through its lifecycle by the [Executor]:

	PENDING -> DOWNLOADING -> COMPLETED | FAILED | CANCELLED

Terminal entries never transition again except through an explicit retry,
which resets them to PENDING. For any source URL at most one entry may sit
in {PENDING, DOWNLOADING, COMPLETED} at a time; earlier FAILED or CANCELLED
entries do not block re-insertion.
*/
package download

import (
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/pointer"
)

// # Status Lifecycle

// Status is the lifecycle state of one queue entry.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusDownloading Status = "DOWNLOADING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// IsValid reports whether the status is one of the defined states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status never transitions again on its own.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ActiveStatuses are the states in which an entry occupies the queue.
// Follow-list enqueueing suppresses duplicates against this set.
var ActiveStatuses = []Status{StatusPending, StatusDownloading}

// BlockingStatuses are the states in which an existing entry blocks
// user re-insertion of the same source URL. A completed series must be
// cleared before it can be queued again by hand.
var BlockingStatuses = []Status{StatusPending, StatusDownloading, StatusCompleted}

// # Source Provenance

const (
	// SourceTypeCatalog marks URLs resolved through the catalog API.
	SourceTypeCatalog = "mangadex"

	// SourceTypeWeb marks generic URLs handed straight to the extractor.
	SourceTypeWeb = "web"

	// CreatedByAPI tags entries inserted through the REST boundary.
	CreatedByAPI = "api"

	// CreatedByFollowList tags entries inserted by the follow-list checker.
	CreatedByFollowList = "follow-list"
)

// # Entity

// Download is one queued series download.
type Download struct {
	ID         string `json:"id"`
	SourceURL  string `json:"source_url"`
	SourceType string `json:"source_type"`

	// Title starts as the user-supplied display title (possibly empty) and
	// is replaced by the resolved series title at dispatch.
	Title  string  `json:"title"`
	Author *string `json:"author,omitempty"`

	Status Status `json:"status"`

	// ProgressPercent is chapter-granular: floor(100 * done / total).
	ProgressPercent int `json:"progress_percent"`

	// CurrentChapter is the last chapter number finished in this attempt.
	// Decimal to represent fractional chapters (10.5).
	CurrentChapter float64 `json:"current_chapter"`

	// TotalChapters is nil until the chapter feed has been enumerated and
	// may be revised upward mid-run.
	TotalChapters *int `json:"total_chapters,omitempty"`

	// LibraryID targets a configured library; nil falls back to the
	// default downloads directory.
	LibraryID *string `json:"library_id,omitempty"`

	// DestinationPath is set once the entry completes.
	DestinationPath *string `json:"destination_path,omitempty"`

	ErrorMessage *string `json:"error_message,omitempty"`

	PluginID  string `json:"plugin_id"`
	CreatedBy string `json:"created_by"`

	// Priority orders dispatch; lower values run sooner.
	Priority   int `json:"priority"`
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	CreatedDate   time.Time  `json:"created_date"`
	StartedDate   *time.Time `json:"started_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	LastModified  time.Time  `json:"last_modified"`
}

// Retryable reports whether the entry is eligible for another attempt.
func (d *Download) Retryable() bool {
	return d.Status == StatusFailed && d.RetryCount < d.MaxRetries
}

// # Data Transfer Objects

// CreateRequest is the payload for queueing a download.
type CreateRequest struct {
	SourceURL string  `json:"sourceUrl"`
	LibraryID *string `json:"libraryId,omitempty"`
	Title     string  `json:"title,omitempty"`

	// Priority defaults to [constants.DefaultPriority] when omitted.
	Priority *int `json:"priority,omitempty"`
}

// ActionRequest selects a lifecycle action on one entry.
type ActionRequest struct {
	Action string `json:"action"`
}

const (
	ActionCancel = "cancel"
	ActionRetry  = "retry"
)

// ClearResult reports a bulk clear-by-status operation.
type ClearResult struct {
	DeletedCount int    `json:"deletedCount"`
	Status       Status `json:"status"`
	Message      string `json:"message"`
}

// Stats is the queue's point-in-time operational snapshot.
type Stats struct {
	// ByStatus counts entries per lifecycle state, zero-filled.
	ByStatus map[Status]int `json:"by_status"`

	// CatalogRequestsLastSecond and CatalogRequestsLastMinute mirror the
	// outbound rate limiter's sliding windows.
	CatalogRequestsLastSecond int `json:"catalog_requests_last_second"`
	CatalogRequestsLastMinute int `json:"catalog_requests_last_minute"`
}

// # Field Identifiers

const (
	FieldSourceURL = "sourceUrl"
	FieldPriority  = "priority"
	FieldAction    = "action"
	FieldStatus    = "status"
)

// normalizePriority applies the queue default to absent priorities and
// floors negatives at zero.
func normalizePriority(priority *int) int {
	value := pointer.Fallback(priority, constants.DefaultPriority)
	if value < 0 {
		return 0
	}
	return value
}
