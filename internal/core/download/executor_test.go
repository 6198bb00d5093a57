// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/extractor"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/dberr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/progress"
)

// # Stub Collaborators

// memoryRepo is an in-memory [Repository] for executor and service tests.
type memoryRepo struct {
	mu      sync.Mutex
	entries map[string]*Download
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]*Download)}
}

func (r *memoryRepo) Insert(_ context.Context, entry *Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (r *memoryRepo) FindAll(_ context.Context) ([]*Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Download, 0, len(r.entries))
	for _, entry := range r.entries {
		clone := *entry
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority < all[j].Priority
		}
		return all[i].CreatedDate.Before(all[j].CreatedDate)
	})
	return all, nil
}

func (r *memoryRepo) FindPendingOrdered(ctx context.Context) ([]*Download, error) {
	all, _ := r.FindAll(ctx)
	pending := all[:0]
	for _, entry := range all {
		if entry.Status == StatusPending {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

func (r *memoryRepo) FindFailedRetryable(ctx context.Context) ([]*Download, error) {
	all, _ := r.FindAll(ctx)
	var retryable []*Download
	for _, entry := range all {
		if entry.Status == StatusFailed && entry.RetryCount < entry.MaxRetries {
			retryable = append(retryable, entry)
		}
	}
	sort.Slice(retryable, func(i, j int) bool {
		return retryable[i].LastModified.Before(retryable[j].LastModified)
	})
	return retryable, nil
}

func (r *memoryRepo) ExistsBySourceURLAndStatusIn(_ context.Context, sourceURL string, statuses []Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.SourceURL != sourceURL {
			continue
		}
		for _, status := range statuses {
			if entry.Status == status {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memoryRepo) Update(_ context.Context, entry *Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.ID]; !ok {
		return dberr.ErrNotFound
	}
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *memoryRepo) UpdateProgress(_ context.Context, id string, percent int, currentChapter float64, totalChapters *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return dberr.ErrNotFound
	}
	entry.ProgressPercent = percent
	entry.CurrentChapter = currentChapter
	if totalChapters != nil {
		entry.TotalChapters = totalChapters
	}
	return nil
}

func (r *memoryRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return dberr.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *memoryRepo) DeleteByStatus(_ context.Context, status Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, entry := range r.entries {
		if entry.Status == status {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryRepo) CountByStatus(_ context.Context) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Status]int)
	for _, entry := range r.entries {
		counts[entry.Status]++
	}
	return counts, nil
}

// stubExtractor scripts the three extractor operations.
type stubExtractor struct {
	manga       *metadata.MangaMetadata
	metadataErr error

	// onChapter runs before each single-chapter result is returned; used to
	// trigger mid-run cancellation.
	onChapter     func(chapterURL string)
	chapterResult extractor.RunResult
	chapterErr    error

	seriesResult extractor.SeriesResult
	seriesErr    error

	singleCalls []string
	seriesCalls []string
}

func (s *stubExtractor) GetMetadataQuick(_ context.Context, _ string) (*metadata.MangaMetadata, error) {
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	return s.manga, nil
}

func (s *stubExtractor) DownloadSingle(_ context.Context, chapterURL, _ string) (extractor.RunResult, error) {
	s.singleCalls = append(s.singleCalls, chapterURL)
	if s.onChapter != nil {
		s.onChapter(chapterURL)
	}
	return s.chapterResult, s.chapterErr
}

func (s *stubExtractor) DownloadSeries(_ context.Context, sourceURL, _ string, isCancelled func() bool, onStarted func(pid int), onProgress extractor.ProgressFunc) (extractor.SeriesResult, error) {
	s.seriesCalls = append(s.seriesCalls, sourceURL)
	if onStarted != nil {
		onStarted(4321)
	}
	if onProgress != nil {
		onProgress(50, 1, 2, "downloading")
	}
	if isCancelled() {
		return extractor.SeriesResult{Cancelled: true}, nil
	}
	return s.seriesResult, s.seriesErr
}

// stubLister returns a fixed chapter feed.
type stubLister struct {
	chapters []metadata.ChapterDescriptor
	err      error
	calls    int
}

func (s *stubLister) GetAllChapters(_ context.Context, _, _ string) ([]metadata.ChapterDescriptor, error) {
	s.calls++
	return s.chapters, s.err
}

// stubMaterializer records sidecar calls.
type stubMaterializer struct {
	seriesJSONCalls int
	coverCalls      int
	cleanCalls      int
}

func (s *stubMaterializer) WriteSeriesJSON(string, metadata.MangaMetadata) error {
	s.seriesJSONCalls++
	return nil
}

func (s *stubMaterializer) WriteCover(context.Context, string, metadata.MangaMetadata) error {
	s.coverCalls++
	return nil
}

func (s *stubMaterializer) CleanResidualDirs(string) (int, error) {
	s.cleanCalls++
	return 0, nil
}

// stubRecorder captures recorded chapter URLs.
type stubRecorder struct {
	recorded []string
	err      error
}

func (s *stubRecorder) RecordDownloaded(_ context.Context, _ string, chapter metadata.ChapterDescriptor) error {
	s.recorded = append(s.recorded, chapter.ChapterURL)
	return s.err
}

// capturePublisher collects every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []progress.Event
}

func (p *capturePublisher) Publish(event progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) types() []progress.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]progress.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

// # Fixture

type executorFixture struct {
	repo      *memoryRepo
	extract   *stubExtractor
	lister    *stubLister
	sidecars  *stubMaterializer
	recorder  *stubRecorder
	publisher *capturePublisher
	executor  *Executor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	f := &executorFixture{
		repo: newMemoryRepo(),
		extract: &stubExtractor{
			manga: &metadata.MangaMetadata{ID: "88aa1d11-0000-4000-8000-000000000001", Title: "Fixture Series"},
		},
		lister:    &stubLister{},
		sidecars:  &stubMaterializer{},
		recorder:  &stubRecorder{},
		publisher: &capturePublisher{},
	}

	f.executor = NewExecutor(
		f.repo,
		f.extract,
		f.lister,
		f.sidecars,
		f.recorder,
		f.publisher,
		library.NewRegistry(nil),
		afero.NewMemMapFs(),
		testLogger(),
		ExecutorOptions{DownloadsDir: "/downloads", PreferredLanguage: "en"},
	)
	return f
}

// catalogURL carries a well-formed manga UUID so the chapter loop engages.
const catalogURL = "https://mangadex.org/title/88aa1d11-0000-4000-8000-000000000001/fixture-series"

func (f *executorFixture) queue(t *testing.T, sourceURL string) *Download {
	t.Helper()

	entry := queuedEntry(sourceURL)
	require.NoError(t, f.repo.Insert(context.Background(), entry))
	return entry
}

// # Dispatch Tests

func TestExecutorDispatchChapterLoopCompletes(t *testing.T) {
	f := newExecutorFixture(t)
	f.lister.chapters = []metadata.ChapterDescriptor{
		{ChapterURL: "https://mangadex.org/chapter/c1", ChapterNumber: 1},
		{ChapterURL: "https://mangadex.org/chapter/c2", ChapterNumber: 2},
	}

	entry := f.queue(t, catalogURL)
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Equal(t, float64(2), got.CurrentChapter)
	require.NotNil(t, got.DestinationPath)
	assert.Equal(t, "/downloads/Fixture Series", *got.DestinationPath)
	require.NotNil(t, got.CompletedDate)
	assert.Equal(t, 0, got.RetryCount)

	assert.Equal(t, []string{"https://mangadex.org/chapter/c1", "https://mangadex.org/chapter/c2"}, f.recorder.recorded)
	assert.Equal(t, 1, f.sidecars.seriesJSONCalls)
	assert.Equal(t, 1, f.sidecars.cleanCalls)

	assert.Equal(t, []progress.EventType{
		progress.EventStarted,
		progress.EventProgress,
		progress.EventProgress,
		progress.EventCompleted,
	}, f.publisher.types())
	assert.False(t, f.executor.IsActive(entry.ID))
}

func TestExecutorDispatchResolvesTitleFromMetadata(t *testing.T) {
	f := newExecutorFixture(t)
	f.lister.chapters = []metadata.ChapterDescriptor{
		{ChapterURL: "https://mangadex.org/chapter/c1", ChapterNumber: 1},
	}

	entry := f.queue(t, catalogURL)
	entry.Title = ""
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fixture Series", got.Title)
}

func TestExecutorDispatchMetadataFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.extract.metadataErr = errors.New("upstream down")

	entry := f.queue(t, catalogURL)
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "metadata fetch failed")

	types := f.publisher.types()
	assert.Equal(t, progress.EventFailed, types[len(types)-1])
}

func TestExecutorDispatchChapterFailureStopsLoop(t *testing.T) {
	f := newExecutorFixture(t)
	f.lister.chapters = []metadata.ChapterDescriptor{
		{ChapterURL: "https://mangadex.org/chapter/c1", ChapterNumber: 1},
	}
	f.extract.chapterResult = extractor.RunResult{ExitCode: 1, Stderr: "403 forbidden"}

	entry := f.queue(t, catalogURL)
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "403 forbidden", *got.ErrorMessage)
	assert.Empty(t, f.recorder.recorded)
}

func TestExecutorDispatchConsumesRetryBudget(t *testing.T) {
	f := newExecutorFixture(t)
	f.extract.metadataErr = errors.New("still down")

	entry := f.queue(t, catalogURL)

	// A previous attempt already ran; re-dispatch consumes one retry.
	started := entry.CreatedDate
	entry.StartedDate = &started
	require.NoError(t, f.repo.Update(context.Background(), entry))

	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestExecutorDispatchSkipsPreCancelled(t *testing.T) {
	f := newExecutorFixture(t)
	entry := f.queue(t, catalogURL)

	require.NoError(t, f.executor.Cancel(context.Background(), entry.ID))

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, []progress.EventType{progress.EventCancelled}, f.publisher.types())

	// The queue tick may still hand the entry over; dispatch must discard it.
	f.executor.Dispatch(context.Background(), entry)
	assert.Empty(t, f.extract.singleCalls)
	assert.Empty(t, f.extract.seriesCalls)
}

func TestExecutorCancelMidLoop(t *testing.T) {
	f := newExecutorFixture(t)
	f.lister.chapters = []metadata.ChapterDescriptor{
		{ChapterURL: "https://mangadex.org/chapter/c1", ChapterNumber: 1},
		{ChapterURL: "https://mangadex.org/chapter/c2", ChapterNumber: 2},
	}

	entry := f.queue(t, catalogURL)
	f.extract.onChapter = func(string) {
		require.NoError(t, f.executor.Cancel(context.Background(), entry.ID))
	}

	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// The first chapter finished before the flag was observed; the second
	// was never attempted.
	assert.Len(t, f.extract.singleCalls, 1)

	types := f.publisher.types()
	assert.Equal(t, progress.EventCancelled, types[len(types)-1])
}

func TestExecutorCancelTerminalEntry(t *testing.T) {
	f := newExecutorFixture(t)
	entry := f.queue(t, catalogURL)
	entry.Status = StatusCompleted
	require.NoError(t, f.repo.Update(context.Background(), entry))

	err := f.executor.Cancel(context.Background(), entry.ID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Validation")
}

func TestExecutorSeriesFallbackForGenericURL(t *testing.T) {
	f := newExecutorFixture(t)
	f.extract.seriesResult = extractor.SeriesResult{FilesDownloaded: 7}

	entry := f.queue(t, "https://example.com/some/other/site")
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)

	// Generic URLs never touch the catalog feed.
	assert.Equal(t, 0, f.lister.calls)
	assert.Len(t, f.extract.seriesCalls, 1)

	types := f.publisher.types()
	assert.Equal(t, progress.EventCompleted, types[len(types)-1])

	events := f.publisher.events
	final := events[len(events)-1]
	assert.Equal(t, 7, final.FilesDownloaded)
}

func TestExecutorSeriesFallbackOnFeedError(t *testing.T) {
	f := newExecutorFixture(t)
	f.lister.err = errors.New("feed unavailable")
	f.extract.seriesResult = extractor.SeriesResult{FilesDownloaded: 3}

	entry := f.queue(t, catalogURL)
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, f.lister.calls)
	assert.Len(t, f.extract.seriesCalls, 1)
}

func TestExecutorSeriesFallbackFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.extract.seriesResult = extractor.SeriesResult{ExitCode: 2, StderrTail: "no downloads"}

	entry := f.queue(t, "https://example.com/broken")
	f.executor.Dispatch(context.Background(), entry)

	got, err := f.repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "no downloads", *got.ErrorMessage)
}
