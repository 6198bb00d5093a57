// Copyright (c) 2026 Komga Enhanced. All rights reserved.

// Package sqlite provides the managed SQLite handles for the queue store.
//
// # Architecture
//
// This package is part of the Infrastructure layer. It manages the physical
// database connections (database/sql over the modernc driver) and exposes the
// WAL checkpoint primitive the backup lifecycle depends on.
//
// # Handle Discipline
//
// Two handles are kept per database:
//
//   - RW: the single writer. MaxOpenConns is pinned to 1 so every write is
//     serialized through one connection, which is also the connection the
//     checkpoint pragma must run on.
//   - RO: a read-only handle for concurrent readers (REST GETs, the chapter
//     checker). In-memory databases reuse the RW handle because a second
//     connection would see a different database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Opinionated handle settings for the orchestrator workload.
const (
	// roMaxConns bounds concurrent reader connections.
	roMaxConns = 4
	// connMaxIdleTime closes reader connections that have been idle too long.
	connMaxIdleTime = 5 * time.Minute
	// pingTimeout is the maximum duration for a health check ping.
	pingTimeout = 2 * time.Second
	// busyTimeoutMillis is how long a connection waits on a locked database
	// before failing, instead of returning SQLITE_BUSY immediately.
	busyTimeoutMillis = 5000
)

// CheckpointMode selects the WAL checkpoint behavior.
type CheckpointMode string

const (
	// CheckpointPassive checkpoints as much as possible without blocking writers.
	CheckpointPassive CheckpointMode = "PASSIVE"
	// CheckpointTruncate blocks until the WAL is fully applied and truncated.
	// Required before copying the database file.
	CheckpointTruncate CheckpointMode = "TRUNCATE"
)

// DB bundles the read-write and read-only handles for one database file.
type DB struct {
	// RW is the single-writer handle. All mutations and checkpoints go here.
	RW *sql.DB
	// RO serves concurrent reads. Equal to RW for in-memory databases.
	RO *sql.DB

	file     string
	inMemory bool
}

// Open creates and validates the handle pair for the given file spec.
//
// # Parameters
//   - ctx: Context for the initial connection attempt.
//   - file: A plain path or a file: URI; "mode=memory" selects an in-memory store.
//   - logger: Structured logger for connection-level events.
func Open(ctx context.Context, file string, logger *slog.Logger) (*DB, error) {
	inMemory := strings.Contains(file, "mode=memory")

	rw, err := sql.Open("sqlite", BuildDSN(file, false))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open rw handle: %w", err)
	}

	// One writer connection, kept alive for the process lifetime. SQLite
	// serializes writers anyway; a second connection only buys lock errors.
	rw.SetMaxOpenConns(1)
	rw.SetMaxIdleConns(1)
	rw.SetConnMaxIdleTime(0)

	db := &DB{RW: rw, RO: rw, file: file, inMemory: inMemory}

	if !inMemory {
		ro, err := sql.Open("sqlite", BuildDSN(file, true))
		if err != nil {
			rw.Close()
			return nil, fmt.Errorf("sqlite: failed to open ro handle: %w", err)
		}
		ro.SetMaxOpenConns(roMaxConns)
		ro.SetConnMaxIdleTime(connMaxIdleTime)
		db.RO = ro
	}

	// Validate that we can actually reach the database.
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite_connected",
		slog.String("file", file),
		slog.Bool("in_memory", inMemory),
	)

	return db, nil
}

// Ping verifies that both handles are healthy.
func (d *DB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.RW.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: rw ping failed: %w", err)
	}
	if d.RO != d.RW {
		if err := d.RO.PingContext(pingCtx); err != nil {
			return fmt.Errorf("sqlite: ro ping failed: %w", err)
		}
	}
	return nil
}

// Checkpoint flushes the write-ahead log on the writer connection.
//
// # Usage
//
// The backup lifecycle runs a TRUNCATE checkpoint before copying the
// database file so the copy is self-contained without its -wal sidecar.
func (d *DB) Checkpoint(ctx context.Context, mode CheckpointMode) error {
	if d.inMemory {
		return nil
	}
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s);", mode)
	if _, err := d.RW.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: wal checkpoint %s failed: %w", mode, err)
	}
	return nil
}

// VacuumInto writes a compacted copy of the database to destPath.
func (d *DB) VacuumInto(ctx context.Context, destPath string) error {
	if d.inMemory {
		return fmt.Errorf("sqlite: cannot vacuum an in-memory database to disk")
	}
	if _, err := d.RW.ExecContext(ctx, "VACUUM INTO ?;", destPath); err != nil {
		return fmt.Errorf("sqlite: vacuum into failed: %w", err)
	}
	return nil
}

// File returns the configured file spec.
func (d *DB) File() string { return d.file }

// InMemory reports whether the store runs in memory.
func (d *DB) InMemory() bool { return d.inMemory }

// Close releases both handles, reader first so the writer can still
// checkpoint during shutdown sequences that close the pair separately.
func (d *DB) Close() error {
	var firstErr error
	if d.RO != d.RW {
		if err := d.RO.Close(); err != nil {
			firstErr = err
		}
	}
	if err := d.RW.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// BuildDSN normalizes a file spec into a modernc DSN with the store pragmas.
// Exported for the migration runner, which owns a private connection.
func BuildDSN(file string, readOnly bool) string {
	dsn := file
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis),
		"_pragma=foreign_keys(1)",
		"_time_format=sqlite",
	}
	if !strings.Contains(file, "mode=memory") {
		// WAL enables the concurrent-reader model and the checkpoint/backup
		// contract. Memory databases have no journal file to manage.
		params = append(params, "_pragma=journal_mode(wal)", "_pragma=synchronous(normal)")
	}
	if readOnly {
		params = append(params, "mode=ro", "_pragma=query_only(1)")
	}

	return dsn + sep + strings.Join(params, "&")
}
