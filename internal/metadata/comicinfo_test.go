// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package metadata_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
)

func sampleManga() metadata.MangaMetadata {
	return metadata.MangaMetadata{
		ID:                     "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
		Title:                  "Solo Leveling",
		Description:            "A hunter grows stronger.",
		Author:                 "Chugong",
		Artist:                 "Jang Sung-rak",
		PublicationDemographic: "shounen",
		Year:                   2018,
		Status:                 "completed",
		Genres:                 []string{"Action", "Fantasy"},
	}
}

func sampleChapter() metadata.ChapterDescriptor {
	return metadata.ChapterDescriptor{
		ChapterID:       "4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911",
		ChapterURL:      "https://mangadex.org/chapter/4e2b9a15-0c61-4ef2-a2be-7d30a5b8c911",
		ChapterNumber:   110,
		Volume:          "14",
		Title:           "The Final Battle",
		Language:        "en",
		Pages:           45,
		ScanlationGroup: "Asura Scans",
		PublishDate:     time.Date(2021, time.December, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildComicInfo(t *testing.T) {
	info := metadata.BuildComicInfo(sampleManga(), sampleChapter())

	assert.Equal(t, "The Final Battle", info.Title)
	assert.Equal(t, "Solo Leveling", info.Series)
	assert.Equal(t, float64(110), info.Number)
	assert.Equal(t, 14, info.Volume)
	assert.Equal(t, "Chugong", info.Writer)
	assert.Equal(t, "Asura Scans", info.Translator)
	assert.Equal(t, metadata.Publisher, info.Publisher)
	assert.Equal(t, "Action, Fantasy", info.Genre)
	assert.Equal(t, 45, info.PageCount)
	assert.Equal(t, "en", info.LanguageISO)
	assert.Equal(t, "Yes", info.Manga)
	assert.Equal(t, "Teen", info.AgeRating)

	// The manga record already has a year, so the chapter publish date
	// must not leak into the document.
	assert.Equal(t, 2018, info.Year)
	assert.Zero(t, info.Month)
	assert.Zero(t, info.Day)
}

func TestBuildComicInfoUntitledChapterFallsBack(t *testing.T) {
	chapter := sampleChapter()
	chapter.Title = "  "
	chapter.ChapterNumber = 10.5

	info := metadata.BuildComicInfo(sampleManga(), chapter)

	assert.Equal(t, "Chapter 10.5", info.Title)
}

func TestBuildComicInfoDateFromChapterWhenMangaYearAbsent(t *testing.T) {
	manga := sampleManga()
	manga.Year = 0

	info := metadata.BuildComicInfo(manga, sampleChapter())

	assert.Equal(t, 2021, info.Year)
	assert.Equal(t, 12, info.Month)
	assert.Equal(t, 29, info.Day)
}

func TestBuildComicInfoJapaneseReadsRightToLeft(t *testing.T) {
	chapter := sampleChapter()
	chapter.Language = "ja"

	info := metadata.BuildComicInfo(sampleManga(), chapter)

	assert.Equal(t, "YesAndRightToLeft", info.Manga)
	assert.Equal(t, "ja", info.LanguageISO)
}

func TestAgeRating(t *testing.T) {
	tests := []struct {
		demographic string
		want        string
	}{
		{demographic: "shounen", want: "Teen"},
		{demographic: "Shounen", want: "Teen"},
		{demographic: "shoujo", want: "Everyone 10+"},
		{demographic: "seinen", want: "Mature 17+"},
		{demographic: "josei", want: "Mature 17+"},
		{demographic: "", want: "Unknown"},
		{demographic: "isekai", want: "Unknown"},
	}

	for _, tt := range tests {
		t.Run("demographic "+tt.demographic, func(t *testing.T) {
			assert.Equal(t, tt.want, metadata.AgeRating(tt.demographic))
		})
	}
}

func TestComicInfoMarshalEscapesMarkup(t *testing.T) {
	manga := sampleManga()
	manga.Title = `Tom & Jerry <Special> "Edition"`

	chapter := sampleChapter()
	chapter.Title = "A < B"

	data, err := metadata.BuildComicInfo(manga, chapter).Marshal()
	require.NoError(t, err)

	xml := string(data)
	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, "Tom &amp; Jerry &lt;Special&gt;")
	assert.Contains(t, xml, "<Title>A &lt; B</Title>")
	assert.NotContains(t, xml, "<Special>")
}
