// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"context"
	"strings"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
)

// existsBatchSize bounds the IN() list of one batch lookup. SQLite's
// default variable limit is 999; chunking keeps arbitrarily large inputs
// legal.
const existsBatchSize = 500

// recordColumns is the canonical SELECT column list for [Record] scans.
const recordColumns = `
	id, series_id, url, chapter_number, volume, title, lang,
	source, chapter_id, scanlation_group,
	downloaded_at, created_date, last_modified
`

// SQLiteRepository implements [Repository] on the queue store's handles.
type SQLiteRepository struct {
	db *sqlite.DB
}

// NewSQLiteRepository returns a fully wired SQLite implementation.
func NewSQLiteRepository(db *sqlite.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

/*
Insert persists one proof-of-download record.

Parameters:
  - context: context.Context
  - record: *Record

Returns:
  - bool: Whether a new row was written (false on duplicate URL)
  - error: Database execution failures
*/
func (repository *SQLiteRepository) Insert(context context.Context, record *Record) (bool, error) {
	const query = `
		INSERT INTO chapter_urls (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := repository.db.RW.ExecContext(context, query,
		record.ID, record.SeriesID, record.URL, record.ChapterNumber,
		record.Volume, record.Title, record.Lang, record.Source,
		record.ChapterID, record.ScanlationGroup,
		record.DownloadedAt, record.CreatedDate, record.LastModified,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return false, nil
		}
		return false, dberr.Wrap(err, "insert_chapter_url")
	}

	return true, nil
}

/*
ExistsByURL reports whether one URL is already recorded.

Parameters:
  - context: context.Context
  - url: string

Returns:
  - bool: Presence of the record
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) ExistsByURL(context context.Context, url string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM chapter_urls WHERE url = ?);`

	var exists bool
	err := repository.db.RO.QueryRowContext(context, query, url).Scan(&exists)

	return exists, dberr.Wrap(err, "exists_chapter_url")
}

/*
ExistsByURLs batch-checks a set of URLs.

Description: Chunks the input into IN() queries and folds the hits into a
map that covers every input URL, present or not.

Parameters:
  - context: context.Context
  - urls: []string

Returns:
  - map[string]bool: One entry per input URL
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) ExistsByURLs(context context.Context, urls []string) (map[string]bool, error) {
	result := make(map[string]bool, len(urls))
	for _, url := range urls {
		result[url] = false
	}

	for start := 0; start < len(urls); start += existsBatchSize {
		end := start + existsBatchSize
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := `SELECT url FROM chapter_urls WHERE url IN (` + placeholders + `);`

		args := make([]any, len(chunk))
		for i, url := range chunk {
			args[i] = url
		}

		rows, err := repository.db.RO.QueryContext(context, query, args...)
		if err != nil {
			return nil, dberr.Wrap(err, "exists_chapter_urls")
		}

		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				rows.Close()
				return nil, dberr.Wrap(err, "scan_chapter_url")
			}
			result[url] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, dberr.Wrap(err, "exists_chapter_urls")
		}
		rows.Close()
	}

	return result, nil
}

/*
CountBySeries counts the records of one series.

Parameters:
  - context: context.Context
  - seriesID: string

Returns:
  - int: Record count
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) CountBySeries(context context.Context, seriesID string) (int, error) {
	const query = `SELECT count(*) FROM chapter_urls WHERE series_id = ?;`

	var count int
	err := repository.db.RO.QueryRowContext(context, query, seriesID).Scan(&count)

	return count, dberr.Wrap(err, "count_chapter_urls")
}

/*
FindBySeries retrieves a series' records ordered by chapter number.

Parameters:
  - context: context.Context
  - seriesID: string

Returns:
  - []*Record: Matching records, ascending chapter number
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) FindBySeries(context context.Context, seriesID string) ([]*Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM chapter_urls
		WHERE series_id = ?
		ORDER BY chapter_number ASC;
	`

	rows, err := repository.db.RO.QueryContext(context, query, seriesID)
	if err != nil {
		return nil, dberr.Wrap(err, "find_chapter_urls_by_series")
	}
	defer rows.Close()

	return scanRecords(rows)
}

/*
FindByDateRange retrieves records downloaded inside [from, to].

Parameters:
  - context: context.Context
  - from, to: time.Time (inclusive bounds)

Returns:
  - []*Record: Matching records, ascending download time
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) FindByDateRange(context context.Context, from, to time.Time) ([]*Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM chapter_urls
		WHERE downloaded_at >= ? AND downloaded_at <= ?
		ORDER BY downloaded_at ASC;
	`

	rows, err := repository.db.RO.QueryContext(context, query, from, to)
	if err != nil {
		return nil, dberr.Wrap(err, "find_chapter_urls_by_range")
	}
	defer rows.Close()

	return scanRecords(rows)
}

/*
DeleteByID removes one record.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: dberr.ErrNotFound when missing, or execution failures
*/
func (repository *SQLiteRepository) DeleteByID(context context.Context, id string) error {
	const query = `DELETE FROM chapter_urls WHERE id = ?;`

	result, err := repository.db.RW.ExecContext(context, query, id)
	if err != nil {
		return dberr.Wrap(err, "delete_chapter_url")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "delete_chapter_url")
	}
	if affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
DeleteBySeries removes a series' records.

Parameters:
  - context: context.Context
  - seriesID: string

Returns:
  - int: Count of deleted records
  - error: Database execution failures
*/
func (repository *SQLiteRepository) DeleteBySeries(context context.Context, seriesID string) (int, error) {
	const query = `DELETE FROM chapter_urls WHERE series_id = ?;`

	result, err := repository.db.RW.ExecContext(context, query, seriesID)
	if err != nil {
		return 0, dberr.Wrap(err, "delete_chapter_urls_by_series")
	}

	deleted, err := result.RowsAffected()
	return int(deleted), dberr.Wrap(err, "delete_chapter_urls_by_series")
}

/*
DeleteByDateRange removes records downloaded inside [from, to].

Parameters:
  - context: context.Context
  - from, to: time.Time (inclusive bounds)

Returns:
  - int: Count of deleted records
  - error: Database execution failures
*/
func (repository *SQLiteRepository) DeleteByDateRange(context context.Context, from, to time.Time) (int, error) {
	const query = `DELETE FROM chapter_urls WHERE downloaded_at >= ? AND downloaded_at <= ?;`

	result, err := repository.db.RW.ExecContext(context, query, from, to)
	if err != nil {
		return 0, dberr.Wrap(err, "delete_chapter_urls_by_range")
	}

	deleted, err := result.RowsAffected()
	return int(deleted), dberr.Wrap(err, "delete_chapter_urls_by_range")
}

/*
DeleteAll wipes the whole history.

Parameters:
  - context: context.Context

Returns:
  - int: Count of deleted records
  - error: Database execution failures
*/
func (repository *SQLiteRepository) DeleteAll(context context.Context) (int, error) {
	const query = `DELETE FROM chapter_urls;`

	result, err := repository.db.RW.ExecContext(context, query)
	if err != nil {
		return 0, dberr.Wrap(err, "delete_all_chapter_urls")
	}

	deleted, err := result.RowsAffected()
	return int(deleted), dberr.Wrap(err, "delete_all_chapter_urls")
}

// rowScanner is the subset of sql.Rows the scan helper needs.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRecords hydrates the canonical column list into records.
func scanRecords(rows rowScanner) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(
			&r.ID, &r.SeriesID, &r.URL, &r.ChapterNumber, &r.Volume,
			&r.Title, &r.Lang, &r.Source, &r.ChapterID, &r.ScanlationGroup,
			&r.DownloadedAt, &r.CreatedDate, &r.LastModified,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_chapter_url")
		}
		records = append(records, r)
	}

	return records, dberr.Wrap(rows.Err(), "scan_chapter_urls")
}
