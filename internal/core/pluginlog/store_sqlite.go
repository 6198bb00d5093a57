// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"context"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
)

// SQLiteRepository implements [Repository] on the queue store's handles.
type SQLiteRepository struct {
	db *sqlite.DB
}

// NewSQLiteRepository returns a fully wired SQLite implementation.
func NewSQLiteRepository(db *sqlite.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

/*
Insert appends one diagnostic line.

Parameters:
  - context: context.Context
  - entry: *Entry

Returns:
  - error: Database execution failures
*/
func (repository *SQLiteRepository) Insert(context context.Context, entry *Entry) error {
	const query = `
		INSERT INTO plugin_logs (id, plugin_id, level, message, stack_trace, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`

	_, err := repository.db.RW.ExecContext(context, query,
		entry.ID, entry.PluginID, string(entry.Level), entry.Message, entry.StackTrace, entry.CreatedAt,
	)

	return dberr.Wrap(err, "insert_plugin_log")
}

/*
List retrieves recent log lines, newest first.

Parameters:
  - context: context.Context
  - pluginID: string (empty selects all plugins)
  - limit: int

Returns:
  - []*Entry: Matching lines
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) List(context context.Context, pluginID string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, plugin_id, level, message, stack_trace, created_at
		FROM plugin_logs
	`
	args := []any{}

	if pluginID != "" {
		query += ` WHERE plugin_id = ?`
		args = append(args, pluginID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := repository.db.RO.QueryContext(context, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_plugin_logs")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var level string
		if err := rows.Scan(&e.ID, &e.PluginID, &level, &e.Message, &e.StackTrace, &e.CreatedAt); err != nil {
			return nil, dberr.Wrap(err, "scan_plugin_log")
		}
		e.Level = Level(level)
		entries = append(entries, e)
	}

	return entries, dberr.Wrap(rows.Err(), "list_plugin_logs")
}

/*
DeleteOlderThan removes lines created before the cutoff.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - int: Count of deleted lines
  - error: Database execution failures
*/
func (repository *SQLiteRepository) DeleteOlderThan(context context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM plugin_logs WHERE created_at < ?;`

	result, err := repository.db.RW.ExecContext(context, query, cutoff)
	if err != nil {
		return 0, dberr.Wrap(err, "delete_plugin_logs")
	}

	deleted, err := result.RowsAffected()
	return int(deleted), dberr.Wrap(err, "delete_plugin_logs")
}

/*
GetConfig retrieves every configuration value for one plugin.

Parameters:
  - context: context.Context
  - pluginID: string

Returns:
  - map[string]string: Key/value pairs; empty map when none exist
  - error: Database retrieval failures
*/
func (repository *SQLiteRepository) GetConfig(context context.Context, pluginID string) (map[string]string, error) {
	const query = `SELECT key, value FROM plugin_config WHERE plugin_id = ?;`

	rows, err := repository.db.RO.QueryContext(context, query, pluginID)
	if err != nil {
		return nil, dberr.Wrap(err, "get_plugin_config")
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, dberr.Wrap(err, "scan_plugin_config")
		}
		values[key] = value
	}

	return values, dberr.Wrap(rows.Err(), "get_plugin_config")
}

/*
SetConfig upserts one configuration value for a plugin.

Parameters:
  - context: context.Context
  - pluginID, key, value: string

Returns:
  - error: Database execution failures
*/
func (repository *SQLiteRepository) SetConfig(context context.Context, pluginID, key, value string) error {
	const query = `
		INSERT INTO plugin_config (plugin_id, key, value, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (plugin_id, key) DO UPDATE
		SET value = excluded.value, last_modified = excluded.last_modified;
	`

	_, err := repository.db.RW.ExecContext(context, query, pluginID, key, value, time.Now().UTC())
	return dberr.Wrap(err, "set_plugin_config")
}
