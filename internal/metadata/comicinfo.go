// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package metadata

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/08shiro80/komga-enhanced-sub000/pkg/convert"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
)

// Publisher is the constant publisher name stamped into every ComicInfo.xml.
const Publisher = "MangaDex"

// ComicInfo is the per-archive metadata document read by downstream comic
// readers. Field names and casing follow the ComicInfo.xml schema, so the
// struct marshals directly.
type ComicInfo struct {
	XMLName  xml.Name `xml:"ComicInfo"`
	XmlnsXsi string   `xml:"xmlns:xsi,attr"`
	XmlnsXsd string   `xml:"xmlns:xsd,attr"`

	Title       string  `xml:"Title,omitempty"`
	Series      string  `xml:"Series,omitempty"`
	Number      float64 `xml:"Number"` // omitting would erase chapter 0
	Volume      int     `xml:"Volume,omitempty"`
	Summary     string  `xml:"Summary,omitempty"`
	Year        int     `xml:"Year,omitempty"`
	Month       int     `xml:"Month,omitempty"`
	Day         int     `xml:"Day,omitempty"`
	Writer      string  `xml:"Writer,omitempty"`
	Translator  string  `xml:"Translator,omitempty"`
	Publisher   string  `xml:"Publisher,omitempty"`
	Genre       string  `xml:"Genre,omitempty"`
	Web         string  `xml:"Web,omitempty"`
	PageCount   int     `xml:"PageCount,omitempty"`
	LanguageISO string  `xml:"LanguageISO,omitempty"`
	Manga       string  `xml:"Manga,omitempty"`
	AgeRating   string  `xml:"AgeRating,omitempty"`
}

// BuildComicInfo assembles the ComicInfo document for one chapter of a manga.
//
// # Field Rules
//
//   - An untitled chapter falls back to "Chapter <number>".
//   - Year/Month/Day come from the chapter's publish date only when the manga
//     record carries no publication year of its own.
//   - Manga is "YesAndRightToLeft" for Japanese chapters, "Yes" otherwise,
//     which switches the reader into right-to-left page turning.
func BuildComicInfo(manga MangaMetadata, chapter ChapterDescriptor) ComicInfo {
	title := chapter.Title
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Chapter %s", formatChapterNumber(chapter.ChapterNumber))
	}

	info := ComicInfo{
		XmlnsXsi:    "http://www.w3.org/2001/XMLSchema-instance",
		XmlnsXsd:    "http://www.w3.org/2001/XMLSchema",
		Title:       title,
		Series:      manga.Title,
		Number:      chapter.ChapterNumber,
		Volume:      convert.ToInt(chapter.Volume),
		Summary:     manga.Description,
		Writer:      manga.Author,
		Translator:  chapter.ScanlationGroup,
		Publisher:   Publisher,
		Genre:       strings.Join(manga.Genres, ", "),
		Web:         chapter.ChapterURL,
		PageCount:   chapter.Pages,
		LanguageISO: langutil.Normalize(chapter.Language),
		Manga:       mangaDirection(chapter.Language),
		AgeRating:   AgeRating(manga.PublicationDemographic),
	}

	if manga.Year > 0 {
		info.Year = manga.Year
	} else if !chapter.PublishDate.IsZero() {
		info.Year = chapter.PublishDate.Year()
		info.Month = int(chapter.PublishDate.Month())
		info.Day = chapter.PublishDate.Day()
	}

	return info
}

// Marshal renders the document as indented XML with the standard declaration.
// String content is escaped by [encoding/xml], so titles containing markup
// characters round-trip safely.
func (c ComicInfo) Marshal() ([]byte, error) {
	data, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), data...), nil
}

// AgeRating maps a publication demographic onto the ComicInfo age-rating
// vocabulary. Unrecognized demographics map to "Unknown".
func AgeRating(demographic string) string {
	switch strings.ToLower(strings.TrimSpace(demographic)) {
	case "shounen":
		return "Teen"
	case "shoujo":
		return "Everyone 10+"
	case "seinen", "josei":
		return "Mature 17+"
	default:
		return "Unknown"
	}
}

// mangaDirection returns the ComicInfo Manga attribute for a chapter language.
func mangaDirection(language string) string {
	if langutil.Base(language) == "ja" {
		return "YesAndRightToLeft"
	}

	return "Yes"
}

// formatChapterNumber renders a chapter number without a trailing ".0" so
// fallback titles read "Chapter 12", not "Chapter 12.0".
func formatChapterNumber(number float64) string {
	return strconv.FormatFloat(number, 'f', -1, 64)
}
