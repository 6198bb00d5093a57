// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
)

// CoverDownloader is the slice of the catalog client the materializer
// needs. Everything else it writes comes from already-resolved metadata.
type CoverDownloader interface {
	DownloadCover(ctx context.Context, mangaID, coverFilename string, quality catalog.CoverQuality) ([]byte, error)
}

// Materializer writes the per-series sidecar files into a destination
// directory: series.json and the cover image. Both are ancillary to the
// chapter archives, so callers treat every failure here as non-fatal.
type Materializer struct {
	covers CoverDownloader
	fs     afero.Fs
	logger *slog.Logger
}

// NewMaterializer builds a materializer.
func NewMaterializer(covers CoverDownloader, fs afero.Fs, logger *slog.Logger) *Materializer {
	return &Materializer{
		covers: covers,
		fs:     fs,
		logger: logger.With(slog.String("component", "materializer")),
	}
}

// WriteSeriesJSON renders and writes {destination}/series.json. When the
// manga carries a catalog id, a links entry ties the sidecar back to its
// catalog page; the chapter checker later greps for that id.
//
// Repeated writes with the same metadata produce identical bytes.
func (m *Materializer) WriteSeriesJSON(destination string, manga metadata.MangaMetadata) error {
	series := metadata.BuildSeriesJSON(manga)
	if manga.ID != "" {
		series.Links = []metadata.SeriesLink{{Label: "MangaDex", URL: catalog.MangaURL(manga.ID)}}
	}

	if rich, size := series.IsRich(); !rich {
		m.logger.Warn("series_metadata_sparse",
			slog.String("series", manga.Title),
			slog.Int("size_bytes", size),
			slog.Int("rich_threshold", metadata.RichMetadataSize),
		)
	}

	payload, err := series.Marshal()
	if err != nil {
		return fmt.Errorf("library: render series.json: %w", err)
	}

	if err := afero.WriteFile(m.fs, filepath.Join(destination, SeriesFileName), payload, 0o644); err != nil {
		return fmt.Errorf("library: write series.json: %w", err)
	}

	return nil
}

// WriteCover fetches the original-quality cover and writes it as
// {destination}/cover.{ext}, keeping the upstream file extension (jpg when
// the upstream name has none). Mangas without catalog cover data are
// silently skipped; an upstream decline is not an error either, the client
// already logged it.
func (m *Materializer) WriteCover(ctx context.Context, destination string, manga metadata.MangaMetadata) error {
	if manga.ID == "" || manga.CoverFilename == "" {
		return nil
	}

	data, err := m.covers.DownloadCover(ctx, manga.ID, manga.CoverFilename, catalog.CoverOriginal)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	name := "cover" + coverExtension(manga.CoverFilename)
	if err := afero.WriteFile(m.fs, filepath.Join(destination, name), data, 0o644); err != nil {
		return fmt.Errorf("library: write cover: %w", err)
	}

	return nil
}

// CleanResidualDirs removes every subdirectory of a destination, leaving
// only top-level files. The extractor's postprocessor normally collapses
// per-chapter image folders into archives; anything still standing after a
// run is residue. Per-directory failures are logged and skipped.
func (m *Materializer) CleanResidualDirs(destination string) (int, error) {
	entries, err := afero.ReadDir(m.fs, destination)
	if err != nil {
		return 0, fmt.Errorf("library: list destination: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(destination, entry.Name())
		if err := m.fs.RemoveAll(path); err != nil {
			m.logger.Warn("residual_dir_remove_failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	return removed, nil
}

// coverExtension lowercases the upstream extension, defaulting to .jpg.
func coverExtension(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return ".jpg"
}
