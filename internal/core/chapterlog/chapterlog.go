// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package chapterlog tracks which chapter URLs have already been downloaded.

A [Record] is the proof-of-download for one chapter: its existence is the
authoritative signal that the URL need not be fetched again. The package
also hosts the chapter checker, which diffs this history (reinforced by
filesystem evidence) against the upstream catalog to decide which followed
series have new chapters.
*/
package chapterlog

import "time"

// Source tags where a record's chapter came from.
const SourceMangaDex = "mangadex"

// Record is the proof-of-download for a single chapter URL.
type Record struct {
	ID string `json:"id"`

	// SeriesID is the opaque catalog manga id tying records of one series
	// together.
	SeriesID string `json:"series_id"`

	// URL is globally unique across the store.
	URL string `json:"url"`

	// ChapterNumber is decimal to represent fractional chapters (10.5).
	ChapterNumber float64 `json:"chapter_number"`

	Volume          *int      `json:"volume,omitempty"`
	Title           string    `json:"title"`
	Lang            string    `json:"lang"`
	Source          string    `json:"source"`
	ChapterID       *string   `json:"chapter_id,omitempty"`
	ScanlationGroup *string   `json:"scanlation_group,omitempty"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	CreatedDate     time.Time `json:"created_date"`
	LastModified    time.Time `json:"last_modified"`
}

// CheckResult is the chapter checker's verdict for one followed URL.
type CheckResult struct {
	URL     string `json:"url"`
	MangaID string `json:"manga_id,omitempty"`

	// AvailableChapters is the upstream aggregate count.
	AvailableChapters int `json:"available_chapters"`

	// KnownChapters is max(store records, filesystem evidence).
	KnownChapters int `json:"known_chapters"`

	// NewChapters is the non-negative difference.
	NewChapters int `json:"new_chapters"`

	NeedsDownload bool   `json:"needs_download"`
	Error         string `json:"error,omitempty"`
}

// # Field Identifiers

const (
	FieldURL      = "url"
	FieldSeriesID = "seriesId"
	FieldFrom     = "from"
	FieldTo       = "to"
)
