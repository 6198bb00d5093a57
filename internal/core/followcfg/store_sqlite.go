// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package followcfg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
)

// SQLiteRepository implements [Repository] as a JSON value in app_config.
type SQLiteRepository struct {
	db *sqlite.DB
}

// NewSQLiteRepository returns a fully wired SQLite implementation.
func NewSQLiteRepository(db *sqlite.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

/*
Get retrieves the stored configuration.

Parameters:
  - context: context.Context

Returns:
  - Config: The stored value, or [Default] when no row exists
  - error: Database retrieval or decoding failures
*/
func (repository *SQLiteRepository) Get(context context.Context) (Config, error) {
	const query = `SELECT value FROM app_config WHERE key = ?;`

	var raw string
	err := repository.db.RO.QueryRowContext(context, query, ConfigKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, dberr.Wrap(err, "get_follow_config")
	}

	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		// A corrupt row is unrecoverable config damage; surface it rather
		// than silently running with defaults.
		return Config{}, dberr.Wrap(err, "decode_follow_config")
	}
	if cfg.CheckIntervalHours < 1 {
		cfg.CheckIntervalHours = DefaultIntervalHours
	}

	return cfg, nil
}

/*
Save replaces the stored configuration.

Parameters:
  - context: context.Context
  - cfg: Config

Returns:
  - error: Database execution failures
*/
func (repository *SQLiteRepository) Save(context context.Context, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return dberr.Wrap(err, "encode_follow_config")
	}

	const query = `
		INSERT INTO app_config (key, value, last_modified)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value, last_modified = excluded.last_modified;
	`

	_, err = repository.db.RW.ExecContext(context, query, ConfigKey, string(raw), time.Now().UTC())
	return dberr.Wrap(err, "save_follow_config")
}
