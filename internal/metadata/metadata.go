// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package metadata holds the in-memory manga and chapter records produced by the
catalog client, and renders them into the two sidecar formats consumed by
reader libraries:

  - ComicInfo.xml — per-archive metadata injected into every CBZ.
  - series.json   — series-level metadata written next to the archives.

Both renderings are deterministic: building the same record twice yields the
same bytes, so repeated materialization never churns files on disk.
*/
package metadata

import "time"

// MangaMetadata is the catalog client's view of a single manga.
//
// The primary Title is already resolved through the preferred-language
// fallback chain by the client; AltTitles keeps the remaining titles keyed by
// title text with their language code as value.
type MangaMetadata struct {
	ID                     string
	Title                  string
	Description            string
	Author                 string
	Artist                 string
	PublicationDemographic string
	Year                   int
	Status                 string
	Genres                 []string
	AltTitles              map[string]string
	CoverFilename          string
	LastChapter            string
}

// ChapterDescriptor is one chapter as reported by the catalog feed.
type ChapterDescriptor struct {
	ChapterID       string
	ChapterURL      string
	ChapterNumber   float64
	Volume          string
	Title           string
	Language        string
	Pages           int
	ScanlationGroup string
	PublishDate     time.Time
}
