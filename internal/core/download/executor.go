// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/cbz"
	"github.com/08shiro80/komga-enhanced-sub000/internal/extractor"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
	"github.com/08shiro80/komga-enhanced-sub000/internal/progress"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/fsname"
)

// # Collaborator Contracts

// Extractor is the subprocess surface the executor drives. Timeouts are
// owned by the implementation.
type Extractor interface {
	GetMetadataQuick(ctx context.Context, sourceURL string) (*metadata.MangaMetadata, error)
	DownloadSingle(ctx context.Context, chapterURL, destination string) (extractor.RunResult, error)
	DownloadSeries(ctx context.Context, sourceURL, destination string, isCancelled func() bool, onStarted func(pid int), onProgress extractor.ProgressFunc) (extractor.SeriesResult, error)
}

// ChapterLister enumerates a catalog manga's full chapter feed.
type ChapterLister interface {
	GetAllChapters(ctx context.Context, mangaID, lang string) ([]metadata.ChapterDescriptor, error)
}

// Materializer seeds and tidies the destination directory.
type Materializer interface {
	WriteSeriesJSON(destination string, manga metadata.MangaMetadata) error
	WriteCover(ctx context.Context, destination string, manga metadata.MangaMetadata) error
	CleanResidualDirs(destination string) (int, error)
}

// ChapterRecorder persists the proof-of-download after each chapter.
type ChapterRecorder interface {
	RecordDownloaded(ctx context.Context, seriesID string, chapter metadata.ChapterDescriptor) error
}

// # Executor

// ExecutorOptions carries the executor's static settings.
type ExecutorOptions struct {
	// DownloadsDir receives series whose entry names no library.
	DownloadsDir string

	// PreferredLanguage filters the chapter feed (BCP-47 short code).
	PreferredLanguage string
}

/*
Executor drives one queue entry at a time through its state machine:

	PENDING -> DOWNLOADING -> COMPLETED | FAILED | CANCELLED

Dispatch is single-flighted by the scheduler's processing gate; the
executor itself only guards its in-process bookkeeping. Cancellation is
cooperative at chapter granularity and preemptive at subprocess
granularity.
*/
type Executor struct {
	repo         Repository
	extractor    Extractor
	chapters     ChapterLister
	materializer Materializer
	recorder     ChapterRecorder
	publisher    progress.Publisher
	libraries    *library.Registry
	fs           afero.Fs
	logger       *slog.Logger
	opts         ExecutorOptions

	mu        sync.Mutex
	active    map[string]*activeRun
	cancelled map[string]struct{}
}

// activeRun tracks one in-flight entry and, once spawned, its subprocess.
type activeRun struct {
	entry *Download
	pid   int
}

// NewExecutor constructs the download [Executor].
func NewExecutor(
	repo Repository,
	ext Extractor,
	chapters ChapterLister,
	materializer Materializer,
	recorder ChapterRecorder,
	publisher progress.Publisher,
	libraries *library.Registry,
	fs afero.Fs,
	logger *slog.Logger,
	opts ExecutorOptions,
) *Executor {
	return &Executor{
		repo:         repo,
		extractor:    ext,
		chapters:     chapters,
		materializer: materializer,
		recorder:     recorder,
		publisher:    publisher,
		libraries:    libraries,
		fs:           fs,
		logger:       logger.With(slog.String("component", "executor")),
		opts:         opts,
		active:       make(map[string]*activeRun),
		cancelled:    make(map[string]struct{}),
	}
}

// # In-Process Bookkeeping

// IsActive reports whether an entry is currently being executed.
func (e *Executor) IsActive(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.active[id]
	return ok
}

// ActiveIDs snapshots the ids currently being executed.
func (e *Executor) ActiveIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *Executor) isCancelled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.cancelled[id]
	return ok
}

func (e *Executor) register(entry *Download) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active[entry.ID] = &activeRun{entry: entry}
}

func (e *Executor) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.active, id)
	delete(e.cancelled, id)
}

func (e *Executor) recordPid(id string, pid int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if run, ok := e.active[id]; ok {
		run.pid = pid
	}
}

/*
Cancel marks an entry CANCELLED and, when it is mid-flight, forcibly
terminates its subprocess. The call returns before the subprocess
necessarily exits; the per-chapter loop observes the cancellation flag at
its next checkpoint.

Partially downloaded chapters and their history rows are kept: no
rollback.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: apperr.NotFound, or a validation failure on a terminal entry
*/
func (e *Executor) Cancel(context context.Context, id string) error {
	entry, err := e.repo.FindByID(context, id)
	if err != nil {
		return err
	}

	validator := &validate.Validator{}
	validator.Custom(FieldStatus, entry.Status.Terminal(), "Download already finished")
	if err := validator.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.cancelled[id] = struct{}{}
	run, wasActive := e.active[id]
	pid := 0
	if wasActive {
		pid = run.pid
	}
	e.mu.Unlock()

	entry.Status = StatusCancelled
	if err := e.repo.Update(context, entry); err != nil {
		return err
	}

	if pid > 0 {
		e.killProcess(pid)
	}

	// The dispatch loop publishes the terminal event for an active entry;
	// a queued one has no loop to do it.
	if !wasActive {
		e.publishTerminal(entry, progress.EventCancelled, "")
	}

	e.logger.Info("download_cancelled",
		slog.String("id", id),
		slog.Bool("was_active", wasActive),
	)
	return nil
}

// Terminate kills the subprocess of an active entry, if any. Used by
// delete, which removes the row regardless of execution state.
func (e *Executor) Terminate(id string) {
	e.mu.Lock()
	e.cancelled[id] = struct{}{}
	pid := 0
	if run, ok := e.active[id]; ok {
		pid = run.pid
	}
	e.mu.Unlock()

	if pid > 0 {
		e.killProcess(pid)
	}
}

func (e *Executor) killProcess(pid int) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := process.Kill(); err != nil {
		e.logger.Warn("subprocess_kill_failed",
			slog.Int("pid", pid),
			slog.String("error", err.Error()),
		)
	}
}

// # Dispatch

/*
Dispatch executes one PENDING entry to a terminal state.

Any panic escaping the run is converted into FAILED with an error event,
so a subscriber combined with an initial listing always sees a terminal
event per attempt.
*/
func (e *Executor) Dispatch(ctx context.Context, entry *Download) {
	if e.isCancelled(entry.ID) {
		e.unregister(entry.ID)
		e.logger.Info("dispatch_skipped_cancelled", slog.String("id", entry.ID))
		return
	}

	e.register(entry)
	defer e.unregister(entry.ID)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("dispatch_panic",
				slog.String("id", entry.ID),
				slog.Any("panic", r),
			)
			e.failEntry(ctx, entry, "internal executor failure", progress.EventError)
		}
	}()

	e.run(ctx, entry)
}

func (e *Executor) run(ctx context.Context, entry *Download) {
	// A second attempt of the same entry consumes retry budget here, at
	// dispatch time, never at scheduling time.
	if entry.StartedDate != nil {
		entry.RetryCount++
	}

	now := time.Now().UTC()
	entry.Status = StatusDownloading
	entry.StartedDate = &now
	entry.ErrorMessage = nil
	entry.ProgressPercent = 0
	entry.CurrentChapter = 0
	if err := e.repo.Update(ctx, entry); err != nil {
		e.logger.Error("dispatch_mark_started_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	e.publisher.Publish(progress.Event{
		Type:       progress.EventStarted,
		DownloadID: entry.ID,
		Title:      entry.Title,
		SourceURL:  entry.SourceURL,
		Status:     string(StatusDownloading),
		Timestamp:  time.Now().UTC(),
	})

	manga, err := e.extractor.GetMetadataQuick(ctx, entry.SourceURL)
	if err != nil {
		e.failEntry(ctx, entry, "metadata fetch failed: "+err.Error(), progress.EventFailed)
		return
	}

	if entry.Title == "" {
		entry.Title = manga.Title
	}

	destination := filepath.Join(e.destinationRoot(entry), fsname.SanitizeFolderName(entry.Title))
	if err := e.fs.MkdirAll(destination, 0o755); err != nil {
		e.failEntry(ctx, entry, "cannot create destination: "+err.Error(), progress.EventFailed)
		return
	}

	// Seed files are ancillary: failures are logged, never fatal.
	if err := e.materializer.WriteSeriesJSON(destination, *manga); err != nil {
		e.logger.Warn("series_json_write_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := e.materializer.WriteCover(ctx, destination, *manga); err != nil {
		e.logger.Warn("cover_write_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	chapters := e.enumerateChapters(ctx, entry)

	var files int
	var outcome progress.EventType
	var message string

	if len(chapters) > 0 {
		files, outcome, message = e.runChapterLoop(ctx, entry, manga, chapters, destination)
	} else {
		files, outcome, message = e.runSeriesFallback(ctx, entry, manga, destination)
	}

	if removed, err := e.materializer.CleanResidualDirs(destination); err != nil {
		e.logger.Warn("residual_cleanup_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		e.logger.Debug("residual_dirs_removed",
			slog.String("id", entry.ID),
			slog.Int("removed", removed),
		)
	}

	switch outcome {
	case progress.EventCompleted:
		e.completeEntry(ctx, entry, destination, files)
	case progress.EventCancelled:
		e.cancelEntry(ctx, entry)
	default:
		e.failEntry(ctx, entry, message, outcome)
	}
}

// destinationRoot resolves the entry's library root, falling back to the
// default downloads directory when the library is unknown.
func (e *Executor) destinationRoot(entry *Download) string {
	if entry.LibraryID == nil {
		return e.opts.DownloadsDir
	}

	lib, err := e.libraries.Get(*entry.LibraryID)
	if err != nil {
		e.logger.Warn("unknown_library_fallback",
			slog.String("id", entry.ID),
			slog.String("library_id", *entry.LibraryID),
		)
		return e.opts.DownloadsDir
	}
	return lib.Root
}

// enumerateChapters lists the catalog feed for catalog URLs. Generic URLs
// and feed failures yield nil, routing the run to the series fallback.
func (e *Executor) enumerateChapters(ctx context.Context, entry *Download) []metadata.ChapterDescriptor {
	mangaID := catalog.ExtractMangaID(entry.SourceURL)
	if mangaID == "" {
		return nil
	}

	chapters, err := e.chapters.GetAllChapters(ctx, mangaID, e.opts.PreferredLanguage)
	if err != nil {
		e.logger.Warn("chapter_feed_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return chapters
}

// runChapterLoop downloads each chapter in feed order, injecting a
// ComicInfo.xml and recording the chapter URL after every success.
// Progress is chapter-granular: floor(100 * done / total).
func (e *Executor) runChapterLoop(ctx context.Context, entry *Download, manga *metadata.MangaMetadata, chapters []metadata.ChapterDescriptor, destination string) (int, progress.EventType, string) {
	total := len(chapters)
	entry.TotalChapters = &total
	mangaID := catalog.ExtractMangaID(entry.SourceURL)

	files := 0
	for i, chapter := range chapters {
		if e.isCancelled(entry.ID) {
			return files, progress.EventCancelled, ""
		}

		result, err := e.extractor.DownloadSingle(ctx, chapter.ChapterURL, destination)
		if err != nil {
			return files, progress.EventFailed, "chapter download failed: " + err.Error()
		}
		if result.Cancelled {
			return files, progress.EventCancelled, ""
		}
		if result.TimedOut || result.ExitCode != 0 {
			return files, progress.EventFailed, chapterFailureMessage(chapter, result)
		}
		files++

		e.annotateLatestArchive(destination, manga, chapter, entry.ID)

		if err := e.recorder.RecordDownloaded(ctx, mangaID, chapter); err != nil {
			e.logger.Warn("chapter_record_failed",
				slog.String("id", entry.ID),
				slog.String("url", chapter.ChapterURL),
				slog.String("error", err.Error()),
			)
		}

		percent := (i + 1) * 100 / total
		entry.ProgressPercent = percent
		entry.CurrentChapter = chapter.ChapterNumber
		if err := e.repo.UpdateProgress(ctx, entry.ID, percent, chapter.ChapterNumber, entry.TotalChapters); err != nil {
			e.logger.Warn("progress_update_failed",
				slog.String("id", entry.ID),
				slog.String("error", err.Error()),
			)
		}

		e.publisher.Publish(progress.Event{
			Type:              progress.EventProgress,
			DownloadID:        entry.ID,
			Title:             entry.Title,
			CurrentChapter:    chapter.ChapterNumber,
			TotalChapters:     total,
			CompletedChapters: i + 1,
			Percentage:        percent,
			Timestamp:         time.Now().UTC(),
		})
	}

	return files, progress.EventCompleted, ""
}

// annotateLatestArchive injects a ComicInfo.xml into the most recently
// written CBZ. Ancillary: a failure leaves the archive readable.
func (e *Executor) annotateLatestArchive(destination string, manga *metadata.MangaMetadata, chapter metadata.ChapterDescriptor, entryID string) {
	archive, err := cbz.FindMostRecent(e.fs, destination)
	if err != nil {
		e.logger.Warn("comicinfo_target_missing",
			slog.String("id", entryID),
			slog.String("error", err.Error()),
		)
		return
	}
	if archive == "" {
		return
	}

	xml, err := metadata.BuildComicInfo(*manga, chapter).Marshal()
	if err != nil {
		e.logger.Warn("comicinfo_build_failed",
			slog.String("id", entryID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := cbz.InjectComicInfo(e.fs, archive, xml); err != nil {
		e.logger.Warn("comicinfo_inject_failed",
			slog.String("id", entryID),
			slog.String("archive", archive),
			slog.String("error", err.Error()),
		)
	}
}

// runSeriesFallback hands the whole URL to the extractor when no chapter
// feed is available, mirroring its own progress percentage. ComicInfo
// injection happens afterwards from series metadata alone.
func (e *Executor) runSeriesFallback(ctx context.Context, entry *Download, manga *metadata.MangaMetadata, destination string) (int, progress.EventType, string) {
	onStarted := func(pid int) { e.recordPid(entry.ID, pid) }
	isCancelled := func() bool { return e.isCancelled(entry.ID) }
	onProgress := func(percent, currentFile, totalFiles int, message string) {
		entry.ProgressPercent = percent
		if err := e.repo.UpdateProgress(ctx, entry.ID, percent, entry.CurrentChapter, nil); err != nil {
			e.logger.Warn("progress_update_failed",
				slog.String("id", entry.ID),
				slog.String("error", err.Error()),
			)
		}

		e.publisher.Publish(progress.Event{
			Type:            progress.EventProgress,
			DownloadID:      entry.ID,
			Title:           entry.Title,
			FilesDownloaded: currentFile,
			TotalChapters:   totalFiles,
			Percentage:      percent,
			Timestamp:       time.Now().UTC(),
		})
	}

	result, err := e.extractor.DownloadSeries(ctx, entry.SourceURL, destination, isCancelled, onStarted, onProgress)
	if err != nil {
		return 0, progress.EventFailed, "series download failed: " + err.Error()
	}
	if result.Cancelled {
		return result.FilesDownloaded, progress.EventCancelled, ""
	}
	if result.Failed() {
		return result.FilesDownloaded, progress.EventFailed, seriesFailureMessage(result)
	}

	archives, err := cbz.ListArchives(e.fs, destination)
	if err != nil {
		e.logger.Warn("archive_listing_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
		return result.FilesDownloaded, progress.EventCompleted, ""
	}

	xml, err := metadata.BuildComicInfo(*manga, metadata.ChapterDescriptor{Language: e.opts.PreferredLanguage}).Marshal()
	if err == nil {
		for _, archive := range archives {
			if err := cbz.InjectComicInfo(e.fs, archive, xml); err != nil {
				e.logger.Warn("comicinfo_inject_failed",
					slog.String("id", entry.ID),
					slog.String("archive", archive),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	files := result.FilesDownloaded
	if files == 0 {
		files = len(archives)
	}
	return files, progress.EventCompleted, ""
}

// # Terminal Transitions

func (e *Executor) completeEntry(ctx context.Context, entry *Download, destination string, files int) {
	now := time.Now().UTC()
	entry.Status = StatusCompleted
	entry.ProgressPercent = 100
	entry.DestinationPath = &destination
	entry.CompletedDate = &now
	if err := e.repo.Update(ctx, entry); err != nil {
		e.logger.Error("complete_update_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	e.publisher.Publish(progress.Event{
		Type:            progress.EventCompleted,
		DownloadID:      entry.ID,
		Title:           entry.Title,
		SourceURL:       entry.SourceURL,
		Status:          string(StatusCompleted),
		FilesDownloaded: files,
		Percentage:      100,
		Timestamp:       time.Now().UTC(),
	})

	e.logger.Info("download_completed",
		slog.String("id", entry.ID),
		slog.String("destination", destination),
		slog.Int("files", files),
	)
}

func (e *Executor) failEntry(ctx context.Context, entry *Download, message string, eventType progress.EventType) {
	entry.Status = StatusFailed
	entry.ErrorMessage = &message
	if err := e.repo.Update(ctx, entry); err != nil {
		e.logger.Error("fail_update_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	e.publishTerminal(entry, eventType, message)

	e.logger.Warn("download_failed",
		slog.String("id", entry.ID),
		slog.String("error", message),
		slog.Int("retry_count", entry.RetryCount),
	)
}

func (e *Executor) cancelEntry(ctx context.Context, entry *Download) {
	entry.Status = StatusCancelled
	if err := e.repo.Update(ctx, entry); err != nil {
		e.logger.Error("cancel_update_failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	e.publishTerminal(entry, progress.EventCancelled, "")

	e.logger.Info("download_cancelled_mid_flight", slog.String("id", entry.ID))
}

func (e *Executor) publishTerminal(entry *Download, eventType progress.EventType, message string) {
	e.publisher.Publish(progress.Event{
		Type:         eventType,
		DownloadID:   entry.ID,
		Title:        entry.Title,
		SourceURL:    entry.SourceURL,
		Status:       string(entry.Status),
		ErrorMessage: message,
		Timestamp:    time.Now().UTC(),
	})
}

// chapterFailureMessage renders the extractor outcome for one chapter.
func chapterFailureMessage(chapter metadata.ChapterDescriptor, result extractor.RunResult) string {
	if result.TimedOut {
		return "chapter " + chapter.ChapterURL + " timed out"
	}
	if result.Stderr != "" {
		return result.Stderr
	}
	return "extractor exited with a non-zero status"
}

// seriesFailureMessage renders the extractor outcome for a series run.
func seriesFailureMessage(result extractor.SeriesResult) string {
	if result.TimedOut {
		return "series download timed out"
	}
	if result.StderrTail != "" {
		return result.StderrTail
	}
	return "extractor exited with a non-zero status"
}
