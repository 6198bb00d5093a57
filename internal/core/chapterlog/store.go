// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"context"
	"time"
)

// # Chapter History Data Access

// Repository defines the data access contract for chapter-URL records.
type Repository interface {

	/*
		Insert persists one proof-of-download record.

		A duplicate URL is not an error: the unique index wins and the
		insert reports itself as a no-op, because two paths may legally
		race to record the same chapter.

		Parameters:
		  - context: context.Context
		  - record: *Record (ID and timestamps must be pre-filled)

		Returns:
		  - bool: Whether a new row was written
		  - error: Database execution failures
	*/
	Insert(context context.Context, record *Record) (bool, error)

	/*
		ExistsByURL reports whether one URL is already recorded.

		Parameters:
		  - context: context.Context
		  - url: string

		Returns:
		  - bool: Presence of the record
		  - error: Database retrieval failures
	*/
	ExistsByURL(context context.Context, url string) (bool, error)

	/*
		ExistsByURLs batch-checks a set of URLs.

		Parameters:
		  - context: context.Context
		  - urls: []string

		Returns:
		  - map[string]bool: One entry per input URL
		  - error: Database retrieval failures
	*/
	ExistsByURLs(context context.Context, urls []string) (map[string]bool, error)

	/*
		CountBySeries counts the records of one series.

		Parameters:
		  - context: context.Context
		  - seriesID: string

		Returns:
		  - int: Record count
		  - error: Database retrieval failures
	*/
	CountBySeries(context context.Context, seriesID string) (int, error)

	/*
		FindBySeries retrieves a series' records ordered by chapter number.

		Parameters:
		  - context: context.Context
		  - seriesID: string

		Returns:
		  - []*Record: Matching records, ascending chapter number
		  - error: Database retrieval failures
	*/
	FindBySeries(context context.Context, seriesID string) ([]*Record, error)

	/*
		FindByDateRange retrieves records downloaded inside [from, to].

		Parameters:
		  - context: context.Context
		  - from, to: time.Time (inclusive bounds)

		Returns:
		  - []*Record: Matching records, ascending download time
		  - error: Database retrieval failures
	*/
	FindByDateRange(context context.Context, from, to time.Time) ([]*Record, error)

	// DeleteByID removes one record. Missing ids map to ErrNotFound.
	DeleteByID(context context.Context, id string) error

	// DeleteBySeries removes a series' records, returning the count.
	DeleteBySeries(context context.Context, seriesID string) (int, error)

	// DeleteByDateRange removes records downloaded inside [from, to],
	// returning the count. Used by the re-download window tool.
	DeleteByDateRange(context context.Context, from, to time.Time) (int, error)

	// DeleteAll wipes the whole history, returning the count.
	DeleteAll(context context.Context) (int, error)
}
