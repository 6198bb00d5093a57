// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package metadata

import (
	"bytes"
	"encoding/json"
	"sort"
)

// RichMetadataSize is the minimum series.json size, in bytes, at which
// downstream readers treat the file as rich metadata. Falling short is not an
// error, only a hint that the catalog record was sparse.
const RichMetadataSize = 5 * 1024

// SeriesJSON is the series-level sidecar schema. It mirrors what the reader
// library expects under the top-level "metadata" key.
type SeriesJSON struct {
	Type                   string       `json:"type"`
	Name                   string       `json:"name"`
	AlternateTitles        []AltTitle   `json:"alternate_titles,omitempty"`
	Author                 string       `json:"author,omitempty"`
	Description            string       `json:"description,omitempty"`
	Year                   int          `json:"year,omitempty"`
	Status                 string       `json:"status,omitempty"`
	PublicationDemographic string       `json:"publication_demographic,omitempty"`
	Genres                 []string     `json:"genres,omitempty"`
	Links                  []SeriesLink `json:"links,omitempty"`
}

// AltTitle is one alternative title with its language code.
type AltTitle struct {
	Title    string `json:"title"`
	Language string `json:"language"`
}

// SeriesLink ties the series back to an upstream catalog page. The chapter
// checker greps materialized sidecars for a manga id, so the link must embed
// it verbatim.
type SeriesLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BuildSeriesJSON assembles the series.json payload for a manga.
//
// Alternative titles are emitted sorted by title text; the source is a map,
// and a stable order keeps repeated writes byte-identical.
func BuildSeriesJSON(manga MangaMetadata) SeriesJSON {
	var altTitles []AltTitle
	for title, language := range manga.AltTitles {
		altTitles = append(altTitles, AltTitle{Title: title, Language: language})
	}
	sort.Slice(altTitles, func(i, j int) bool {
		return altTitles[i].Title < altTitles[j].Title
	})

	return SeriesJSON{
		Type:                   "comicSeries",
		Name:                   manga.Title,
		AlternateTitles:        altTitles,
		Author:                 manga.Author,
		Description:            manga.Description,
		Year:                   manga.Year,
		Status:                 manga.Status,
		PublicationDemographic: manga.PublicationDemographic,
		Genres:                 manga.Genres,
	}
}

// Marshal renders the sidecar with its "metadata" wrapper object, indented
// for human inspection.
func (s SeriesJSON) Marshal() ([]byte, error) {
	buffer := &bytes.Buffer{}
	enc := json.NewEncoder(buffer)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(seriesJSONWrapper{Metadata: s}); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// IsRich reports whether the rendered payload meets [RichMetadataSize].
func (s SeriesJSON) IsRich() (bool, int) {
	data, err := s.Marshal()
	if err != nil {
		return false, 0
	}

	return len(data) >= RichMetadataSize, len(data)
}

type seriesJSONWrapper struct {
	Metadata SeriesJSON `json:"metadata"`
}
