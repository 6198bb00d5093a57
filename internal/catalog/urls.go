// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"regexp"
	"strings"
)

// uuidPattern is the canonical UUID shape used by catalog entity ids.
var uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	mangaURLPattern   = regexp.MustCompile(`/title/(` + uuidPattern + `)`)
	chapterURLPattern = regexp.MustCompile(`/chapter/(` + uuidPattern + `)`)
)

// IsCatalogURL reports whether a URL points at the catalog at all, which
// decides whether the fast metadata path applies.
func IsCatalogURL(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "mangadex.org")
}

// ExtractMangaID pulls the manga UUID out of a catalog title URL. It returns
// the empty string when the URL does not carry one.
func ExtractMangaID(rawURL string) string {
	if match := mangaURLPattern.FindStringSubmatch(rawURL); match != nil {
		return strings.ToLower(match[1])
	}

	return ""
}

// ExtractChapterID pulls the chapter UUID out of a catalog chapter URL. It
// returns the empty string when the URL does not carry one.
func ExtractChapterID(rawURL string) string {
	if match := chapterURLPattern.FindStringSubmatch(rawURL); match != nil {
		return strings.ToLower(match[1])
	}

	return ""
}

// MangaURL builds the canonical title URL for a manga id.
func MangaURL(mangaID string) string {
	return titleBaseURL + mangaID
}

// ChapterURL builds the canonical chapter URL for a chapter id.
func ChapterURL(chapterID string) string {
	return chapterBaseURL + chapterID
}
