// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *SQLiteRepository) {
	t.Helper()

	repository := openTestRepo(t)
	service := NewService(repository, nil, testLogger())

	router := chi.NewRouter()
	NewHandler(service).Register(router)
	return router, repository
}

func getJSON(t *testing.T, router http.Handler, target string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return recorder, envelope
}

func TestChapterLogHandlerListBySeriesPaginates(t *testing.T) {
	router, repository := newTestRouter(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i := 1; i <= 25; i++ {
		record := downloadedRecord("series-a", fmt.Sprintf("https://mangadex.org/chapter/c%02d", i), now)
		record.ChapterNumber = float64(i)
		_, err := repository.Insert(ctx, record)
		require.NoError(t, err)
	}

	recorder, envelope := getJSON(t, router, "/chapter-urls/series/series-a?page=2&limit=10")
	require.Equal(t, http.StatusOK, recorder.Code)

	var page []Record
	require.NoError(t, json.Unmarshal(envelope["data"], &page))
	require.Len(t, page, 10)
	assert.Equal(t, 11.0, page[0].ChapterNumber, "second page starts past the first ten")

	var meta struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(envelope["meta"], &meta))
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 25, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)

	// Past the last page: empty array, same meta totals.
	recorder, envelope = getJSON(t, router, "/chapter-urls/series/series-a?page=9&limit=10")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(envelope["data"], &page))
	assert.Empty(t, page)
}

func TestChapterLogHandlerCheckURL(t *testing.T) {
	router, repository := newTestRouter(t)
	ctx := context.Background()

	_, err := repository.Insert(ctx, downloadedRecord("series-a", "https://mangadex.org/chapter/c1", time.Now().UTC()))
	require.NoError(t, err)

	recorder, envelope := getJSON(t, router, "/check-url?url=https://mangadex.org/chapter/c1")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Downloaded bool `json:"downloaded"`
	}
	require.NoError(t, json.Unmarshal(envelope["data"], &result))
	assert.True(t, result.Downloaded)

	// Missing url parameter is a validation failure.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/check-url", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChapterLogHandlerDeleteAllRequiresConfirm(t *testing.T) {
	router, repository := newTestRouter(t)
	ctx := context.Background()

	_, err := repository.Insert(ctx, downloadedRecord("series-a", "https://mangadex.org/chapter/c1", time.Now().UTC()))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/chapter-urls/all", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/chapter-urls/all?confirm=true", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"deleted_count":1`)
}

func TestChapterLogHandlerRangeValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/chapter-urls/range?from=notadate&to=2026-08-01", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/chapter-urls/range?from=2026-08-01&to=2026-08-31", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}
