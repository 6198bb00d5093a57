// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"context"
	"time"
)

// # Plugin Diagnostics Data Access

// Repository defines the data access contract for plugin logs and
// plugin configuration.
type Repository interface {

	// ## Log Rows

	/*
		Insert appends one diagnostic line.

		Parameters:
		  - context: context.Context
		  - entry: *Entry (ID and CreatedAt must be pre-filled)

		Returns:
		  - error: Database execution failures
	*/
	Insert(context context.Context, entry *Entry) error

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
	List(context context.Context, pluginID string, limit int) ([]*Entry, error)

	/*
		DeleteOlderThan removes lines created before the cutoff.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - int: Count of deleted lines
		  - error: Database execution failures
	*/
	DeleteOlderThan(context context.Context, cutoff time.Time) (int, error)

	// ## Configuration Rows

	/*
		GetConfig retrieves every configuration value for one plugin.

		Parameters:
		  - context: context.Context
		  - pluginID: string

		Returns:
		  - map[string]string: Key/value pairs; empty map when none exist
		  - error: Database retrieval failures
	*/
	GetConfig(context context.Context, pluginID string) (map[string]string, error)

	// SetConfig upserts one configuration value for a plugin.
	SetConfig(context context.Context, pluginID, key, value string) error
}
