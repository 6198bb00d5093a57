// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package backup snapshots and restores the queue store's database file.

A snapshot is a plain copy of the SQLite file taken after a full WAL
checkpoint, so the copy is self-contained without its sidecar files.
Restore copies a snapshot back over the live file and schedules a process
exit so the supervisor restarts the application against the restored
store. An in-memory store has no file and refuses the whole lifecycle.
*/
package backup

import "time"

// Snapshot types.
const (
	// TypeManual is a plain post-checkpoint file copy.
	TypeManual = "MANUAL"

	// TypeFull is a compacted snapshot produced by VACUUM INTO.
	TypeFull = "FULL"
)

// Info describes one snapshot on disk.
type Info struct {
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	CreatedDate time.Time `json:"created_date"`
	SizeBytes   int64     `json:"size_bytes"`
	Type        string    `json:"type"`
}

// RestoreResult reports a completed restore. The process exits shortly
// after this is returned.
type RestoreResult struct {
	BackupFileName  string `json:"backup_file_name"`
	RequiresRestart bool   `json:"requires_restart"`
	Message         string `json:"message"`
}
