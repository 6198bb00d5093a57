// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
)

// # Wire Shapes
//
// These mirror the catalog's JSON responses. Only the fields this service
// reads are declared; everything else is dropped at decode time.

type mangaResponse struct {
	Data mangaData `json:"data"`
}

type mangaListResponse struct {
	Data   []mangaData `json:"data"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Total  int         `json:"total"`
}

type mangaData struct {
	ID            string          `json:"id"`
	Attributes    mangaAttributes `json:"attributes"`
	Relationships []relationship  `json:"relationships"`
}

type mangaAttributes struct {
	Title                  map[string]string   `json:"title"`
	AltTitles              []map[string]string `json:"altTitles"`
	Description            map[string]string   `json:"description"`
	PublicationDemographic string              `json:"publicationDemographic"`
	Year                   int                 `json:"year"`
	Status                 string              `json:"status"`
	LastChapter            string              `json:"lastChapter"`
	Tags                   []tag               `json:"tags"`
}

type tag struct {
	Attributes tagAttributes `json:"attributes"`
}

type tagAttributes struct {
	Name  map[string]string `json:"name"`
	Group string            `json:"group"`
}

type relationship struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Attributes relationshipAttributes `json:"attributes"`
}

type relationshipAttributes struct {
	Name     string `json:"name"`
	FileName string `json:"fileName"`
}

type chapterResponse struct {
	Data chapterData `json:"data"`
}

type chapterListResponse struct {
	Data   []chapterData `json:"data"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
}

type chapterData struct {
	ID            string            `json:"id"`
	Attributes    chapterAttributes `json:"attributes"`
	Relationships []relationship    `json:"relationships"`
}

type chapterAttributes struct {
	Title              string    `json:"title"`
	Chapter            string    `json:"chapter"`
	Volume             string    `json:"volume"`
	Pages              int       `json:"pages"`
	TranslatedLanguage string    `json:"translatedLanguage"`
	PublishAt          time.Time `json:"publishAt"`
}

type aggregateResponse struct {
	Volumes aggregateVolumes `json:"volumes"`
}

// aggregateVolumes is keyed by volume number, except that the catalog
// serializes the empty case as an array.
type aggregateVolumes map[string]aggregateVolume

func (v *aggregateVolumes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, (*map[string]aggregateVolume)(v))
}

type aggregateVolume struct {
	Volume   string                      `json:"volume"`
	Chapters map[string]aggregateChapter `json:"chapters"`
}

type aggregateChapter struct {
	Chapter string `json:"chapter"`
	ID      string `json:"id"`
}

// # Mapping

// toMangaMetadata resolves a manga record into the in-memory form.
//
// Title selection prefers the first alternative title in the preferred
// language, then the main title in the preferred language, then English,
// then any. The description follows the same chain minus alternatives.
func toMangaMetadata(data mangaData, preferredLanguage string) metadata.MangaMetadata {
	attrs := data.Attributes

	manga := metadata.MangaMetadata{
		ID:                     data.ID,
		Title:                  resolveTitle(attrs, preferredLanguage),
		Description:            pickByLanguage(attrs.Description, preferredLanguage),
		PublicationDemographic: attrs.PublicationDemographic,
		Year:                   attrs.Year,
		Status:                 attrs.Status,
		Genres:                 genreNames(attrs.Tags),
		AltTitles:              altTitleMap(attrs.AltTitles),
		LastChapter:            attrs.LastChapter,
	}

	for _, rel := range data.Relationships {
		switch rel.Type {
		case "author":
			if manga.Author == "" {
				manga.Author = rel.Attributes.Name
			}
		case "artist":
			if manga.Artist == "" {
				manga.Artist = rel.Attributes.Name
			}
		case "cover_art":
			if manga.CoverFilename == "" {
				manga.CoverFilename = rel.Attributes.FileName
			}
		}
	}

	return manga
}

// resolveTitle applies the preferred → main-preferred → main-English → any
// fallback chain.
func resolveTitle(attrs mangaAttributes, preferredLanguage string) string {
	for _, alt := range attrs.AltTitles {
		for lang, title := range alt {
			if langutil.Matches(lang, preferredLanguage) && title != "" {
				return title
			}
		}
	}

	return pickByLanguage(attrs.Title, preferredLanguage)
}

// pickByLanguage picks preferred, then English, then any value of a
// language-keyed map.
func pickByLanguage(values map[string]string, preferredLanguage string) string {
	if v, ok := values[langutil.Normalize(preferredLanguage)]; ok && v != "" {
		return v
	}
	if v, ok := values["en"]; ok && v != "" {
		return v
	}
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// altTitleMap inverts the catalog's language-keyed entries into
// title → language.
func altTitleMap(entries []map[string]string) map[string]string {
	if len(entries) == 0 {
		return nil
	}

	titles := make(map[string]string, len(entries))
	for _, entry := range entries {
		for lang, title := range entry {
			if title != "" {
				titles[title] = langutil.Normalize(lang)
			}
		}
	}

	return titles
}

// genreNames extracts English genre-group tag names.
func genreNames(tags []tag) []string {
	var genres []string
	for _, t := range tags {
		if t.Attributes.Group != "genre" {
			continue
		}
		if name := pickByLanguage(t.Attributes.Name, "en"); name != "" {
			genres = append(genres, name)
		}
	}

	return genres
}

// toChapterDescriptor converts one feed record.
func toChapterDescriptor(data chapterData) metadata.ChapterDescriptor {
	attrs := data.Attributes

	number, _ := strconv.ParseFloat(attrs.Chapter, 64)

	descriptor := metadata.ChapterDescriptor{
		ChapterID:     data.ID,
		ChapterURL:    chapterBaseURL + data.ID,
		ChapterNumber: number,
		Volume:        attrs.Volume,
		Title:         attrs.Title,
		Language:      langutil.Normalize(attrs.TranslatedLanguage),
		Pages:         attrs.Pages,
		PublishDate:   attrs.PublishAt,
	}

	for _, rel := range data.Relationships {
		if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
			descriptor.ScanlationGroup = rel.Attributes.Name
			break
		}
	}

	return descriptor
}
