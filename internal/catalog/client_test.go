// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewClient(NewRateLimiter(), logger, ClientOptions{
		BaseURL:           server.URL,
		UploadsURL:        server.URL,
		PreferredLanguage: "en",
	})
}

func testMangaData() mangaData {
	return mangaData{
		ID: "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10",
		Attributes: mangaAttributes{
			Title: map[string]string{"ja": "俺だけレベルアップな件"},
			AltTitles: []map[string]string{
				{"ko": "나 혼자만 레벨업"},
				{"en": "Solo Leveling"},
			},
			Description: map[string]string{
				"en": "A hunter grows stronger.",
				"ja": "ハンターの話",
			},
			PublicationDemographic: "shounen",
			Year:                   2018,
			Status:                 "completed",
			LastChapter:            "179",
			Tags: []tag{
				{Attributes: tagAttributes{Name: map[string]string{"en": "Action"}, Group: "genre"}},
				{Attributes: tagAttributes{Name: map[string]string{"en": "Award Winning"}, Group: "format"}},
				{Attributes: tagAttributes{Name: map[string]string{"en": "Fantasy"}, Group: "genre"}},
			},
		},
		Relationships: []relationship{
			{ID: "a1", Type: "author", Attributes: relationshipAttributes{Name: "Chugong"}},
			{ID: "a2", Type: "artist", Attributes: relationshipAttributes{Name: "Jang Sung-rak"}},
			{ID: "a3", Type: "cover_art", Attributes: relationshipAttributes{FileName: "cover-abc.jpg"}},
		},
	}
}

func testChapterData(id string, number float64) chapterData {
	return chapterData{
		ID: id,
		Attributes: chapterAttributes{
			Title:              "Chapter Title",
			Chapter:            strconv.FormatFloat(number, 'f', -1, 64),
			Volume:             "2",
			Pages:              40,
			TranslatedLanguage: "en",
			PublishAt:          time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		Relationships: []relationship{
			{ID: "g1", Type: "scanlation_group", Attributes: relationshipAttributes{Name: "Asura Scans"}},
		},
	}
}

func TestGetMangaResolvesMetadata(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/manga/")
		assert.Contains(t, r.URL.Query()["includes[]"], "cover_art")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		json.NewEncoder(w).Encode(mangaResponse{Data: testMangaData()})
	}))

	manga, err := client.GetManga(context.Background(), "9f3c4a2e-1b7d-4c8a-9f31-52e02d6e7a10")
	require.NoError(t, err)
	require.NotNil(t, manga)

	// The English alternative title outranks the Japanese main title.
	assert.Equal(t, "Solo Leveling", manga.Title)
	assert.Equal(t, "A hunter grows stronger.", manga.Description)
	assert.Equal(t, "Chugong", manga.Author)
	assert.Equal(t, "Jang Sung-rak", manga.Artist)
	assert.Equal(t, "cover-abc.jpg", manga.CoverFilename)
	assert.Equal(t, "shounen", manga.PublicationDemographic)
	assert.Equal(t, 2018, manga.Year)
	assert.Equal(t, "completed", manga.Status)
	assert.Equal(t, "179", manga.LastChapter)
	assert.Equal(t, []string{"Action", "Fantasy"}, manga.Genres, "non-genre tag groups are dropped")
	assert.Equal(t, "ko", manga.AltTitles["나 혼자만 레벨업"])
}

func TestGetMangaFallsBackToMainTitle(t *testing.T) {
	data := testMangaData()
	data.Attributes.AltTitles = nil

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mangaResponse{Data: data})
	}))

	manga, err := client.GetManga(context.Background(), data.ID)
	require.NoError(t, err)
	require.NotNil(t, manga)

	// No English anywhere: any main title wins.
	assert.Equal(t, "俺だけレベルアップな件", manga.Title)
}

func TestGetMangaUpstreamErrorIsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	manga, err := client.GetManga(context.Background(), "unknown")
	require.NoError(t, err, "upstream rejection is not an error")
	assert.Nil(t, manga)
}

func TestGetChapterFeed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "asc", q.Get("order[chapter]"))
		assert.Equal(t, []string{"en", "ja"}, q["translatedLanguage[]"])
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "20", q.Get("offset"))

		json.NewEncoder(w).Encode(chapterListResponse{
			Data: []chapterData{testChapterData("c1", 1), testChapterData("c2", 1.5)},
		})
	}))

	chapters, err := client.GetChapterFeed(context.Background(), "m1", "en,ja", 10, 20)
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	assert.Equal(t, "c1", chapters[0].ChapterID)
	assert.Equal(t, chapterBaseURL+"c1", chapters[0].ChapterURL)
	assert.Equal(t, 1.5, chapters[1].ChapterNumber)
	assert.Equal(t, "Asura Scans", chapters[0].ScanlationGroup)
	assert.Equal(t, "en", chapters[0].Language)
	assert.Equal(t, 40, chapters[0].Pages)
}

func TestGetAllChaptersPaginates(t *testing.T) {
	var offsets []int

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)

		count := constants.CatalogPageSize
		if offset > 0 {
			count = 7 // short page ends the walk
		}

		page := chapterListResponse{}
		for i := 0; i < count; i++ {
			page.Data = append(page.Data, testChapterData(fmt.Sprintf("c%d-%d", offset, i), float64(offset+i)))
		}
		json.NewEncoder(w).Encode(page)
	}))

	chapters, err := client.GetAllChapters(context.Background(), "m1", "en")
	require.NoError(t, err)

	assert.Len(t, chapters, constants.CatalogPageSize+7)
	assert.Equal(t, []int{0, constants.CatalogPageSize}, offsets)
}

func TestGetAggregateCountsChapters(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/m1/aggregate", r.URL.Path)
		assert.Equal(t, []string{"en"}, r.URL.Query()["translatedLanguage[]"])

		w.Write([]byte(`{"result":"ok","volumes":{
			"1":{"volume":"1","count":2,"chapters":{"1":{"chapter":"1","id":"a"},"2":{"chapter":"2","id":"b"}}},
			"none":{"volume":"none","count":1,"chapters":{"3":{"chapter":"3","id":"c"}}}
		}}`))
	}))

	count, err := client.GetAggregate(context.Background(), "m1", "en")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGetAggregateEmptyVolumesArray(t *testing.T) {
	// The upstream serializes "no volumes" as an empty array, not an object.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"ok","volumes":[]}`))
	}))

	count, err := client.GetAggregate(context.Background(), "m1", "en")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDownloadCover(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/covers/m1/cover-abc.jpg.512.jpg", r.URL.Path)
		w.Write(payload)
	}))

	data, err := client.DownloadCover(context.Background(), "m1", "cover-abc.jpg", CoverMedium)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadCoverFailureIsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))

	data, err := client.DownloadCover(context.Background(), "m1", "cover.jpg", CoverOriginal)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSearchManga(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga", r.URL.Path)
		assert.Equal(t, "solo", r.URL.Query().Get("title"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(mangaListResponse{Data: []mangaData{testMangaData()}})
	}))

	results, err := client.SearchManga(context.Background(), "solo", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Solo Leveling", results[0].Title)
}

func TestMetadataCache(t *testing.T) {
	cache := NewMetadataCache()
	defer cache.Close()

	_, found := cache.Get("url")
	assert.False(t, found)

	manga, err := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mangaResponse{Data: testMangaData()})
	})).GetManga(context.Background(), "m1")
	require.NoError(t, err)

	cache.Set("url", *manga)

	cached, found := cache.Get("url")
	require.True(t, found)
	assert.Equal(t, manga.Title, cached.Title)
	assert.Equal(t, manga.AltTitles, cached.AltTitles)

	cache.Delete("url")
	_, found = cache.Get("url")
	assert.False(t, found)
}
