// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
)

// # Service Layer

// Store is the database-side surface the lifecycle needs: checkpointing,
// compacting snapshots and handle teardown before a restore.
type Store interface {
	Checkpoint(ctx context.Context, mode sqlite.CheckpointMode) error
	VacuumInto(ctx context.Context, destPath string) error
	File() string
	InMemory() bool
	Close() error
}

// Service owns the snapshot directory and the restore procedure.
type Service struct {
	store      Store
	backupsDir string
	fs         afero.Fs
	logger     *slog.Logger

	// exitFn ends the process after a restore. Injectable so tests can
	// observe the call instead of dying.
	exitFn func(code int)

	// sleep is injectable for the lock-probe retry loop.
	sleep func(d time.Duration)
}

// NewService constructs the backup [Service].
func NewService(store Store, backupsDir string, fs afero.Fs, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		backupsDir: backupsDir,
		fs:         fs,
		logger:     logger.With(slog.String("component", "backup")),
		exitFn:     os.Exit,
		sleep:      time.Sleep,
	}
}

/*
Create snapshots the live database file.

Description: Checkpoints the WAL with TRUNCATE so the main file is
self-contained, then copies it into the backups directory under a
timestamped name. An existing file of the same name is overwritten.

Parameters:
  - context: context.Context

Returns:
  - Info: The written snapshot
  - error: apperr.Unprocessable for an in-memory store, or I/O failures
*/
func (service *Service) Create(context context.Context) (Info, error) {
	if err := service.refuseInMemory(); err != nil {
		return Info{}, err
	}

	path, err := service.prepareTarget()
	if err != nil {
		return Info{}, err
	}

	if err := service.store.Checkpoint(context, sqlite.CheckpointTruncate); err != nil {
		return Info{}, err
	}

	if err := copyFile(service.fs, service.store.File(), path); err != nil {
		return Info{}, fmt.Errorf("backup copy: %w", err)
	}

	return service.describe(path, TypeManual)
}

/*
CreateFull produces a compacted snapshot via VACUUM INTO.

Description: Unlike [Service.Create], the result is rebuilt page by page:
free pages are dropped, so the snapshot is usually smaller than the live
file.

Parameters:
  - context: context.Context

Returns:
  - Info: The written snapshot
  - error: apperr.Unprocessable for an in-memory store, or I/O failures
*/
func (service *Service) CreateFull(context context.Context) (Info, error) {
	if err := service.refuseInMemory(); err != nil {
		return Info{}, err
	}

	path, err := service.prepareTarget()
	if err != nil {
		return Info{}, err
	}

	// VACUUM INTO refuses to overwrite; the slot was just cleared.
	if err := service.store.VacuumInto(context, path); err != nil {
		return Info{}, err
	}

	return service.describe(path, TypeFull)
}

// prepareTarget creates the backups directory and clears the target slot.
func (service *Service) prepareTarget() (string, error) {
	if err := service.fs.MkdirAll(service.backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}

	name := constants.BackupFilePrefix + time.Now().UTC().Format(constants.BackupTimeLayout) + ".db"
	path := filepath.Join(service.backupsDir, name)

	if err := service.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("backup slot: %w", err)
	}
	return path, nil
}

func (service *Service) describe(path, snapshotType string) (Info, error) {
	stat, err := service.fs.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("backup stat: %w", err)
	}

	info := Info{
		FileName:    filepath.Base(path),
		FilePath:    path,
		CreatedDate: stat.ModTime().UTC(),
		SizeBytes:   stat.Size(),
		Type:        snapshotType,
	}

	service.logger.Info("backup_created",
		slog.String("file", info.FileName),
		slog.Int64("size_bytes", info.SizeBytes),
		slog.String("type", info.Type),
	)
	return info, nil
}

/*
List enumerates the snapshots on disk, newest first.

Parameters:
  - context: context.Context

Returns:
  - []Info: Regular .db files under the backups directory
  - error: I/O failures (a missing directory is an empty list)
*/
func (service *Service) List(context context.Context) ([]Info, error) {
	entries, err := afero.ReadDir(service.fs, service.backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("backup list: %w", err)
	}

	backups := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		backups = append(backups, Info{
			FileName:    entry.Name(),
			FilePath:    filepath.Join(service.backupsDir, entry.Name()),
			CreatedDate: entry.ModTime().UTC(),
			SizeBytes:   entry.Size(),
			Type:        TypeManual,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedDate.After(backups[j].CreatedDate)
	})
	return backups, nil
}

/*
Open returns a reader over one snapshot for the download endpoint.

Parameters:
  - context: context.Context
  - fileName: string

Returns:
  - afero.File: The open snapshot; the caller closes it
  - os.FileInfo: Its size and modification time
  - error: apperr.Forbidden on traversal, apperr.NotFound when missing
*/
func (service *Service) Open(context context.Context, fileName string) (afero.File, os.FileInfo, error) {
	path, err := service.resolve(fileName)
	if err != nil {
		return nil, nil, err
	}

	stat, err := service.fs.Stat(path)
	if err != nil {
		return nil, nil, apperr.NotFound("Backup")
	}

	file, err := service.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("backup open: %w", err)
	}
	return file, stat, nil
}

/*
Delete removes one snapshot.

Parameters:
  - context: context.Context
  - fileName: string

Returns:
  - error: apperr.Forbidden on traversal, apperr.NotFound when missing
*/
func (service *Service) Delete(context context.Context, fileName string) error {
	path, err := service.resolve(fileName)
	if err != nil {
		return err
	}

	if _, err := service.fs.Stat(path); err != nil {
		return apperr.NotFound("Backup")
	}
	if err := service.fs.Remove(path); err != nil {
		return fmt.Errorf("backup delete: %w", err)
	}

	service.logger.Info("backup_deleted", slog.String("file", fileName))
	return nil
}

/*
CleanOld keeps the newest snapshots and deletes the rest.

Parameters:
  - context: context.Context
  - keep: int (0 deletes everything)

Returns:
  - int: Count of deleted snapshots
  - error: Validation or I/O failures
*/
func (service *Service) CleanOld(context context.Context, keep int) (int, error) {
	validator := &validate.Validator{}
	validator.Custom("keep", keep < 0, "Must not be negative")
	if err := validator.Err(); err != nil {
		return 0, err
	}

	backups, err := service.List(context)
	if err != nil {
		return 0, err
	}
	if keep >= len(backups) {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := service.fs.Remove(backup.FilePath); err != nil {
			service.logger.Warn("backup_clean_skip",
				slog.String("file", backup.FileName),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	service.logger.Info("backups_cleaned",
		slog.Int("kept", keep),
		slog.Int("deleted", deleted),
	)
	return deleted, nil
}

/*
Restore copies a snapshot over the live database file.

Description: Checkpoints and closes every handle, waits for the file to be
released (probed by an atomic rename round-trip), drops the WAL and SHM
sidecars, copies the snapshot into place and schedules a delayed process
exit so the supervisor restarts the application against the restored
store.

Parameters:
  - context: context.Context
  - fileName: string

Returns:
  - RestoreResult: Confirmation; the process exits shortly after
  - error: apperr failures before any destructive step, I/O failures after
*/
func (service *Service) Restore(context context.Context, fileName string) (RestoreResult, error) {
	if err := service.refuseInMemory(); err != nil {
		return RestoreResult{}, err
	}

	path, err := service.resolve(fileName)
	if err != nil {
		return RestoreResult{}, err
	}
	if _, err := service.fs.Stat(path); err != nil {
		return RestoreResult{}, apperr.NotFound("Backup")
	}

	live := service.store.File()

	if err := service.store.Checkpoint(context, sqlite.CheckpointTruncate); err != nil {
		service.logger.Warn("restore_checkpoint_failed", slog.String("error", err.Error()))
	}
	if err := service.store.Close(); err != nil {
		service.logger.Warn("restore_close_failed", slog.String("error", err.Error()))
	}

	if err := service.waitUnlocked(live); err != nil {
		return RestoreResult{}, err
	}

	for _, sidecar := range []string{live + "-wal", live + "-shm"} {
		if err := service.fs.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			service.logger.Warn("restore_sidecar_remove_failed",
				slog.String("file", sidecar),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := copyFile(service.fs, path, live); err != nil {
		return RestoreResult{}, fmt.Errorf("restore copy: %w", err)
	}

	service.logger.Info("backup_restored",
		slog.String("file", fileName),
		slog.Duration("exit_in", constants.RestoreExitDelay),
	)

	go func() {
		service.sleep(constants.RestoreExitDelay)
		service.exitFn(0)
	}()

	return RestoreResult{
		BackupFileName:  fileName,
		RequiresRestart: true,
		Message:         "Database restored; the service will restart shortly",
	}, nil
}

// waitUnlocked probes the live file by renaming it to a sibling and back.
// A lingering lock on some platforms makes the rename fail.
func (service *Service) waitUnlocked(live string) error {
	probe := live + ".restore-probe"

	for attempt := 0; attempt < constants.RestoreLockRetries; attempt++ {
		if err := service.fs.Rename(live, probe); err == nil {
			if err := service.fs.Rename(probe, live); err != nil {
				return fmt.Errorf("restore probe: %w", err)
			}
			return nil
		}
		service.sleep(constants.RestoreLockRetryDelay)
	}

	return apperr.Conflict("Database file is still locked; try again")
}

// resolve joins and validates a snapshot name, rejecting anything that
// escapes the backups directory.
func (service *Service) resolve(fileName string) (string, error) {
	path := filepath.Join(service.backupsDir, fileName)

	root := filepath.Clean(service.backupsDir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(path), root) {
		return "", apperr.Forbidden("Access denied")
	}
	return path, nil
}

func (service *Service) refuseInMemory() error {
	if service.store.InMemory() {
		return apperr.Unprocessable("Backups are unavailable for an in-memory store")
	}
	return nil
}

// copyFile replaces dst with a copy of src.
func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
