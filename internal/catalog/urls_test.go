// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMangaID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "canonical title url",
			url:  "https://mangadex.org/title/9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
			want: "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
		},
		{
			name: "title url with slug suffix",
			url:  "https://mangadex.org/title/9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10/solo-leveling",
			want: "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
		},
		{
			name: "uppercase uuid is folded",
			url:  "https://mangadex.org/title/9F3C4A2E-1B7D-4C8A-9F31-52E02D6E7A10",
			want: "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
		},
		{
			name: "chapter url does not match",
			url:  "https://mangadex.org/chapter/4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911",
			want: "",
		},
		{
			name: "malformed uuid does not match",
			url:  "https://mangadex.org/title/not-a-uuid",
			want: "",
		},
		{
			name: "foreign site does not match",
			url:  "https://example.com/series/123",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMangaID(tt.url))
		})
	}
}

func TestExtractChapterID(t *testing.T) {
	assert.Equal(t,
		"4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911",
		ExtractChapterID("https://mangadex.org/chapter/4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911"),
	)
	assert.Empty(t, ExtractChapterID("https://mangadex.org/title/4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911"))
}

func TestIsCatalogURL(t *testing.T) {
	assert.True(t, IsCatalogURL("https://mangadex.org/title/abc"))
	assert.True(t, IsCatalogURL("https://MangaDex.org/chapter/abc"))
	assert.False(t, IsCatalogURL("https://example.com/manga/abc"))
}

func TestURLBuilders(t *testing.T) {
	assert.Equal(t, "https://mangadex.org/title/m1", MangaURL("m1"))
	assert.Equal(t, "https://mangadex.org/chapter/c1", ChapterURL("c1"))
}
