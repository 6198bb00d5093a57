// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
)

// ErrNoMetadata is returned when neither the catalog nor the extractor's
// simulate run produced a usable title for a URL.
var ErrNoMetadata = errors.New("extractor: no usable metadata for url")

// LogSink receives extractor diagnostics for persistent storage. Stderr
// lines are mirrored here so failed runs can be inspected after the fact.
type LogSink interface {
	Log(level, message string)
}

// ConfigStore supplies operator-set configuration overrides for one plugin.
// Stored values take effect on the next run; the generated configuration is
// rebuilt before every download.
type ConfigStore interface {
	Config(ctx context.Context, pluginID string) (map[string]string, error)
}

// ProgressFunc receives series-download progress. totalFiles is zero when
// the extractor does not announce a total.
type ProgressFunc func(percent, currentFile, totalFiles int, message string)

// SeriesResult is the outcome of a whole-series run.
type SeriesResult struct {
	ExitCode        int
	FilesDownloaded int
	Cancelled       bool
	TimedOut        bool
	StderrTail      string
}

// Failed reports whether the run ended without producing a clean exit.
func (r SeriesResult) Failed() bool {
	return r.Cancelled || r.TimedOut || r.ExitCode != 0
}

// DriverOptions wires a [Driver].
type DriverOptions struct {
	// ConfigDir is where the generated extractor configuration is written.
	ConfigDir string

	// Params shape the generated configuration.
	Params ConfigParams

	// FS is the filesystem the configuration is written to.
	FS afero.Fs

	// Runner overrides the subprocess runner (tests).
	Runner Runner

	// Sink receives stderr diagnostics; nil discards them.
	Sink LogSink

	// Store supplies stored per-plugin overrides; nil means environment
	// parameters only.
	Store ConfigStore

	// PluginID keys the Store lookups. Empty defaults to "gallery-dl".
	PluginID string
}

// Driver exposes the three extractor operations: quick metadata, single
// chapter download, and whole-series download.
type Driver struct {
	resolver *Resolver
	runner   Runner
	client   *catalog.Client
	cache    *catalog.MetadataCache
	fs       afero.Fs
	sink     LogSink
	store    ConfigStore
	pluginID string

	configDir string
	params    ConfigParams

	logger *slog.Logger
}

// NewDriver assembles a driver. client and cache are shared with the rest
// of the service so every metadata path sees the same rate limiter.
func NewDriver(resolver *Resolver, client *catalog.Client, cache *catalog.MetadataCache, logger *slog.Logger, opts DriverOptions) *Driver {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Runner == nil {
		opts.Runner = NewRunner(logger)
	}
	if opts.PluginID == "" {
		opts.PluginID = "gallery-dl"
	}

	return &Driver{
		resolver:  resolver,
		runner:    opts.Runner,
		client:    client,
		cache:     cache,
		fs:        opts.FS,
		sink:      opts.Sink,
		store:     opts.Store,
		pluginID:  opts.PluginID,
		configDir: opts.ConfigDir,
		params:    opts.Params,
		logger:    logger.With(slog.String("component", "extractor")),
	}
}

// SetCredentials replaces the extractor credentials; the next run writes a
// fresh configuration.
func (d *Driver) SetCredentials(username, password string) {
	d.params.Username = username
	d.params.Password = password
}

// effectiveParams merges stored per-plugin overrides over the environment
// parameters. Store failures degrade to the environment values; a download
// must not die on a config read.
func (d *Driver) effectiveParams(ctx context.Context) ConfigParams {
	params := d.params
	if d.store == nil {
		return params
	}

	stored, err := d.store.Config(ctx, d.pluginID)
	if err != nil {
		d.logger.Warn("plugin_config_read_failed",
			slog.String("plugin_id", d.pluginID),
			slog.String("error", err.Error()),
		)
		return params
	}

	if v := stored["username"]; v != "" {
		params.Username = v
	}
	if v := stored["password"]; v != "" {
		params.Password = v
	}
	if v := stored["language"]; v != "" {
		params.PreferredLanguage = v
	}

	return params
}

// Installed reports whether an extractor binary is available.
func (d *Driver) Installed(ctx context.Context) bool {
	return d.resolver.Installed(ctx)
}

// # Metadata

// GetMetadataQuick resolves manga metadata for a source URL within
// [constants.MetadataFetchTimeout].
//
// Catalog URLs take the typed-client fast path. Anything else falls back to
// a simulate run of the extractor, whose line-delimited JSON output is
// aggregated into a metadata record.
func (d *Driver) GetMetadataQuick(ctx context.Context, sourceURL string) (*metadata.MangaMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.MetadataFetchTimeout)
	defer cancel()

	if cached, ok := d.cache.Get(sourceURL); ok {
		return &cached, nil
	}

	if mangaID := catalog.ExtractMangaID(sourceURL); mangaID != "" {
		manga, err := d.client.GetManga(ctx, mangaID)
		if err != nil {
			return nil, err
		}
		if manga != nil {
			d.cache.Set(sourceURL, *manga)
			return manga, nil
		}
		// fall through to the simulate path; the catalog may be degraded
	}

	manga, err := d.simulateMetadata(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	d.cache.Set(sourceURL, *manga)
	return manga, nil
}

// simulateMetadata runs the extractor in simulate mode and aggregates the
// emitted records.
func (d *Driver) simulateMetadata(ctx context.Context, sourceURL string) (*metadata.MangaMetadata, error) {
	command, err := d.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var lines []string
	result, err := d.runner.Run(ctx, RunSpec{
		Command:  command,
		Args:     []string{"--simulate", "-j", sourceURL},
		OnStdout: func(line string) { lines = append(lines, line) },
		OnStderr: d.mirrorStderr,
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: simulate run: %w", err)
	}
	if result.TimedOut {
		return nil, fmt.Errorf("%w: simulate timed out: %s", ErrNoMetadata, sourceURL)
	}

	manga := aggregateSimulateOutput(lines)
	if manga.Title == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMetadata, sourceURL)
	}

	return &manga, nil
}

// aggregateSimulateOutput folds the extractor's `[type, url, metadata]`
// tuples into one record.
//
// The primary title comes from English-language entries when present, else
// the first entry seen. Alternative titles are tagged by script detection,
// since simulate output carries no language for them.
func aggregateSimulateOutput(lines []string) metadata.MangaMetadata {
	var (
		manga      metadata.MangaMetadata
		firstTitle string
	)

	addAltTitle := func(title string) {
		if title == "" || title == manga.Title {
			return
		}
		if manga.AltTitles == nil {
			manga.AltTitles = make(map[string]string)
		}
		lang := langutil.DetectScript(title)
		if lang == "" {
			lang = "unknown"
		}
		manga.AltTitles[title] = lang
	}

	for _, line := range lines {
		record, ok := parseSimulateLine(line)
		if !ok {
			continue
		}

		if title, ok := record["manga"].(string); ok && title != "" {
			if firstTitle == "" {
				firstTitle = title
			}
			if lang, _ := record["lang"].(string); langutil.Base(lang) == "en" && manga.Title == "" {
				manga.Title = title
			}
		}

		switch alt := record["manga_alt"].(type) {
		case string:
			addAltTitle(alt)
		case []any:
			for _, entry := range alt {
				if title, ok := entry.(string); ok {
					addAltTitle(title)
				}
			}
		}

		if manga.Author == "" {
			if author, _ := record["author"].(string); author != "" {
				manga.Author = author
			}
		}
	}

	if manga.Title == "" {
		manga.Title = firstTitle
	}
	// the primary must never shadow itself in the alternatives
	delete(manga.AltTitles, manga.Title)

	return manga
}

// parseSimulateLine decodes one `[type, url, metadata]` tuple.
func parseSimulateLine(line string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ","))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &tuple); err != nil || len(tuple) < 3 {
		return nil, false
	}

	var record map[string]any
	if err := json.Unmarshal(tuple[len(tuple)-1], &record); err != nil {
		return nil, false
	}

	return record, true
}

// # Downloads

// DownloadSingle fetches one chapter URL into destination, bounded by
// [constants.ChapterDownloadTimeout]. The exit code and output tails are
// returned for the caller to judge; a non-zero exit is not an error here.
func (d *Driver) DownloadSingle(ctx context.Context, chapterURL, destination string) (RunResult, error) {
	command, err := d.resolver.Resolve(ctx)
	if err != nil {
		return RunResult{ExitCode: -1}, err
	}

	configPath, err := WriteConfig(d.fs, d.configDir, d.effectiveParams(ctx))
	if err != nil {
		return RunResult{ExitCode: -1}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, constants.ChapterDownloadTimeout)
	defer cancel()

	started := time.Now()
	result, err := d.runner.Run(runCtx, RunSpec{
		Command:  command,
		Args:     []string{chapterURL, "-d", destination, "--config", configPath},
		OnStderr: d.mirrorStderr,
	})

	d.logger.Info("extractor_chapter_run_finished",
		slog.String("url", chapterURL),
		slog.Int("exit_code", result.ExitCode),
		slog.Bool("timed_out", result.TimedOut),
		slog.Duration("elapsed", time.Since(started)),
	)

	return result, err
}

// DownloadSeries fetches a whole series URL into destination, bounded by
// [constants.SeriesDownloadTimeout].
//
// onStarted receives the child pid for cancellation bookkeeping. onProgress
// fires only when the reported percentage strictly increases. isCancelled
// is re-checked on every progress event; once true the child is terminated
// and the result reports Cancelled.
func (d *Driver) DownloadSeries(ctx context.Context, sourceURL, destination string, isCancelled func() bool, onStarted func(pid int), onProgress ProgressFunc) (SeriesResult, error) {
	command, err := d.resolver.Resolve(ctx)
	if err != nil {
		return SeriesResult{ExitCode: -1}, err
	}

	configPath, err := WriteConfig(d.fs, d.configDir, d.effectiveParams(ctx))
	if err != nil {
		return SeriesResult{ExitCode: -1}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, constants.SeriesDownloadTimeout)
	defer cancel()

	var (
		lastPercent     = -1
		filesDownloaded int
		cancelledByUs   bool
	)

	onLine := func(line string) {
		if isDownloadedFileLine(line) {
			filesDownloaded++
		}

		percent, ok := parseProgressPercent(line)
		if !ok {
			return
		}

		if isCancelled != nil && isCancelled() {
			cancelledByUs = true
			cancel()
			return
		}

		if percent > lastPercent {
			lastPercent = percent
			if onProgress != nil {
				onProgress(percent, filesDownloaded, 0, strings.TrimSpace(line))
			}
		}
	}

	result, err := d.runner.Run(runCtx, RunSpec{
		Command:   command,
		Args:      []string{sourceURL, "-d", destination, "--config", configPath},
		OnStarted: onStarted,
		OnStdout:  onLine,
		OnStderr:  d.mirrorStderr,
	})
	if err != nil {
		return SeriesResult{ExitCode: -1}, err
	}

	series := SeriesResult{
		ExitCode:        result.ExitCode,
		FilesDownloaded: filesDownloaded,
		Cancelled:       cancelledByUs || result.Cancelled,
		TimedOut:        result.TimedOut,
		StderrTail:      result.Stderr,
	}

	d.logger.Info("extractor_series_run_finished",
		slog.String("url", sourceURL),
		slog.Int("exit_code", series.ExitCode),
		slog.Int("files", series.FilesDownloaded),
		slog.Bool("cancelled", series.Cancelled),
		slog.Bool("timed_out", series.TimedOut),
	)

	return series, nil
}

// mirrorStderr forwards extractor diagnostics to the persistent sink.
func (d *Driver) mirrorStderr(line string) {
	if d.sink == nil {
		return
	}

	level := "INFO"
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "ERROR"):
		level = "ERROR"
	case strings.Contains(upper, "WARNING"), strings.Contains(upper, "WARN"):
		level = "WARN"
	}

	d.sink.Log(level, line)
}
