// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"strings"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
)

// entryColumns is the canonical SELECT column list for [Download] scans.
const entryColumns = `
	id, source_url, source_type, title, author, status,
	progress_percent, current_chapter, total_chapters,
	library_id, destination_path, error_message,
	plugin_id, created_by, priority, retry_count, max_retries,
	created_date, started_date, completed_date, last_modified
`

// SQLiteRepository implements [Repository] on the queue store's handles.
type SQLiteRepository struct {
	db *sqlite.DB
}

// NewSQLiteRepository returns a fully wired SQLite implementation.
func NewSQLiteRepository(db *sqlite.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (repository *SQLiteRepository) Insert(context context.Context, entry *Download) error {
	const query = `
		INSERT INTO download_queue (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := repository.db.RW.ExecContext(context, query,
		entry.ID, entry.SourceURL, entry.SourceType, entry.Title, entry.Author,
		string(entry.Status), entry.ProgressPercent, entry.CurrentChapter,
		entry.TotalChapters, entry.LibraryID, entry.DestinationPath,
		entry.ErrorMessage, entry.PluginID, entry.CreatedBy,
		entry.Priority, entry.RetryCount, entry.MaxRetries,
		entry.CreatedDate, entry.StartedDate, entry.CompletedDate, entry.LastModified,
	)

	return dberr.Wrap(err, "insert_download")
}

func (repository *SQLiteRepository) FindByID(context context.Context, id string) (*Download, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM download_queue
		WHERE id = ?;
	`

	entry := &Download{}
	err := scanEntry(repository.db.RO.QueryRowContext(context, query, id), entry)
	if err != nil {
		return nil, dberr.Wrap(err, "find_download")
	}

	return entry, nil
}

func (repository *SQLiteRepository) FindAll(context context.Context) ([]*Download, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM download_queue
		ORDER BY priority ASC, created_date ASC;
	`

	rows, err := repository.db.RO.QueryContext(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "find_downloads")
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (repository *SQLiteRepository) FindPendingOrdered(context context.Context) ([]*Download, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM download_queue
		WHERE status = ?
		ORDER BY priority ASC, created_date ASC;
	`

	rows, err := repository.db.RO.QueryContext(context, query, string(StatusPending))
	if err != nil {
		return nil, dberr.Wrap(err, "find_pending_downloads")
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (repository *SQLiteRepository) FindFailedRetryable(context context.Context) ([]*Download, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM download_queue
		WHERE status = ? AND retry_count < max_retries
		ORDER BY last_modified ASC;
	`

	rows, err := repository.db.RO.QueryContext(context, query, string(StatusFailed))
	if err != nil {
		return nil, dberr.Wrap(err, "find_retryable_downloads")
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (repository *SQLiteRepository) ExistsBySourceURLAndStatusIn(context context.Context, sourceURL string, statuses []Status) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	query := `SELECT EXISTS (
		SELECT 1 FROM download_queue
		WHERE source_url = ? AND status IN (` + placeholders + `)
	);`

	args := make([]any, 0, len(statuses)+1)
	args = append(args, sourceURL)
	for _, status := range statuses {
		args = append(args, string(status))
	}

	var exists bool
	err := repository.db.RO.QueryRowContext(context, query, args...).Scan(&exists)

	return exists, dberr.Wrap(err, "exists_download_by_url")
}

func (repository *SQLiteRepository) Update(context context.Context, entry *Download) error {
	const query = `
		UPDATE download_queue SET
			source_url = ?, source_type = ?, title = ?, author = ?,
			status = ?, progress_percent = ?, current_chapter = ?,
			total_chapters = ?, library_id = ?, destination_path = ?,
			error_message = ?, plugin_id = ?, created_by = ?,
			priority = ?, retry_count = ?, max_retries = ?,
			started_date = ?, completed_date = ?, last_modified = ?
		WHERE id = ?;
	`

	entry.LastModified = time.Now().UTC()

	result, err := repository.db.RW.ExecContext(context, query,
		entry.SourceURL, entry.SourceType, entry.Title, entry.Author,
		string(entry.Status), entry.ProgressPercent, entry.CurrentChapter,
		entry.TotalChapters, entry.LibraryID, entry.DestinationPath,
		entry.ErrorMessage, entry.PluginID, entry.CreatedBy,
		entry.Priority, entry.RetryCount, entry.MaxRetries,
		entry.StartedDate, entry.CompletedDate, entry.LastModified,
		entry.ID,
	)
	if err != nil {
		return dberr.Wrap(err, "update_download")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "update_download")
	}
	if affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (repository *SQLiteRepository) UpdateProgress(context context.Context, id string, percent int, currentChapter float64, totalChapters *int) error {
	const query = `
		UPDATE download_queue SET
			progress_percent = ?,
			current_chapter = ?,
			total_chapters = COALESCE(?, total_chapters),
			last_modified = ?
		WHERE id = ?;
	`

	_, err := repository.db.RW.ExecContext(context, query,
		percent, currentChapter, totalChapters, time.Now().UTC(), id,
	)

	return dberr.Wrap(err, "update_download_progress")
}

func (repository *SQLiteRepository) DeleteByID(context context.Context, id string) error {
	const query = `DELETE FROM download_queue WHERE id = ?;`

	result, err := repository.db.RW.ExecContext(context, query, id)
	if err != nil {
		return dberr.Wrap(err, "delete_download")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "delete_download")
	}
	if affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (repository *SQLiteRepository) DeleteByStatus(context context.Context, status Status) (int, error) {
	const query = `DELETE FROM download_queue WHERE status = ?;`

	result, err := repository.db.RW.ExecContext(context, query, string(status))
	if err != nil {
		return 0, dberr.Wrap(err, "delete_downloads_by_status")
	}

	deleted, err := result.RowsAffected()
	return int(deleted), dberr.Wrap(err, "delete_downloads_by_status")
}

func (repository *SQLiteRepository) CountByStatus(context context.Context) (map[Status]int, error) {
	const query = `SELECT status, count(*) FROM download_queue GROUP BY status;`

	rows, err := repository.db.RO.QueryContext(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "count_downloads")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, dberr.Wrap(err, "scan_download_count")
		}
		counts[Status(status)] = count
	}

	return counts, dberr.Wrap(rows.Err(), "count_downloads")
}

// scanner is the single-row subset shared by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry hydrates the canonical column list into one entry.
func scanEntry(row scanner, entry *Download) error {
	var status string
	if err := row.Scan(
		&entry.ID, &entry.SourceURL, &entry.SourceType, &entry.Title,
		&entry.Author, &status, &entry.ProgressPercent, &entry.CurrentChapter,
		&entry.TotalChapters, &entry.LibraryID, &entry.DestinationPath,
		&entry.ErrorMessage, &entry.PluginID, &entry.CreatedBy,
		&entry.Priority, &entry.RetryCount, &entry.MaxRetries,
		&entry.CreatedDate, &entry.StartedDate, &entry.CompletedDate,
		&entry.LastModified,
	); err != nil {
		return err
	}

	entry.Status = Status(status)
	return nil
}

// rowsScanner is the subset of sql.Rows the multi-row helper needs.
type rowsScanner interface {
	scanner
	Next() bool
	Err() error
}

// scanEntries hydrates the canonical column list into entries.
func scanEntries(rows rowsScanner) ([]*Download, error) {
	var entries []*Download
	for rows.Next() {
		entry := &Download{}
		if err := scanEntry(rows, entry); err != nil {
			return nil, dberr.Wrap(err, "scan_download")
		}
		entries = append(entries, entry)
	}

	return entries, dberr.Wrap(rows.Err(), "scan_downloads")
}
