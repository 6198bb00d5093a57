// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import "context"

// # Repository Contract

/*
Repository defines the persistence contract for queue entries.

The queue has exactly one writer (the executor and the service mutate
entries through the store's read-write handle) and any number of concurrent
readers.
*/
type Repository interface {
	/*
		Insert persists a new queue entry.

		Parameters:
		  - context: context.Context
		  - entry: *Download

		Returns:
		  - error: Database execution failures
	*/
	Insert(context context.Context, entry *Download) error

	/*
		FindByID retrieves one entry.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Download: The entry
		  - error: dberr.ErrNotFound when missing, or retrieval failures
	*/
	FindByID(context context.Context, id string) (*Download, error)

	/*
		FindAll lists every entry ordered by priority ascending, ties broken
		by creation date ascending.

		Parameters:
		  - context: context.Context

		Returns:
		  - []*Download: All entries in dispatch order
		  - error: Database retrieval failures
	*/
	FindAll(context context.Context) ([]*Download, error)

	/*
		FindPendingOrdered lists PENDING entries in dispatch order: priority
		ascending, then creation date ascending.

		Parameters:
		  - context: context.Context

		Returns:
		  - []*Download: Dispatch candidates
		  - error: Database retrieval failures
	*/
	FindPendingOrdered(context context.Context) ([]*Download, error)

	/*
		FindFailedRetryable lists FAILED entries that still have retry
		budget, oldest modification first.

		Parameters:
		  - context: context.Context

		Returns:
		  - []*Download: Auto-retry candidates
		  - error: Database retrieval failures
	*/
	FindFailedRetryable(context context.Context) ([]*Download, error)

	/*
		ExistsBySourceURLAndStatusIn reports whether any entry with the
		source URL sits in one of the given states.

		Parameters:
		  - context: context.Context
		  - sourceURL: string
		  - statuses: []Status

		Returns:
		  - bool: Presence of a matching entry
		  - error: Database retrieval failures
	*/
	ExistsBySourceURLAndStatusIn(context context.Context, sourceURL string, statuses []Status) (bool, error)

	/*
		Update persists every mutable field of an entry and refreshes its
		last-modified timestamp.

		Parameters:
		  - context: context.Context
		  - entry: *Download

		Returns:
		  - error: dberr.ErrNotFound when missing, or execution failures
	*/
	Update(context context.Context, entry *Download) error

	/*
		UpdateProgress writes only the hot progress fields of a running
		entry.

		Parameters:
		  - context: context.Context
		  - id: string
		  - percent: int
		  - currentChapter: float64
		  - totalChapters: *int (nil leaves the column untouched)

		Returns:
		  - error: Database execution failures
	*/
	UpdateProgress(context context.Context, id string, percent int, currentChapter float64, totalChapters *int) error

	/*
		DeleteByID removes one entry.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: dberr.ErrNotFound when missing, or execution failures
	*/
	DeleteByID(context context.Context, id string) error

	/*
		DeleteByStatus removes every entry in one state.

		Parameters:
		  - context: context.Context
		  - status: Status

		Returns:
		  - int: Count of deleted entries
		  - error: Database execution failures
	*/
	DeleteByStatus(context context.Context, status Status) (int, error)

	/*
		CountByStatus tallies entries per lifecycle state.

		Parameters:
		  - context: context.Context

		Returns:
		  - map[Status]int: Counts for states present in the table
		  - error: Database retrieval failures
	*/
	CountByStatus(context context.Context) (map[Status]int, error)
}
