// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()

	service := NewService(openTestRepo(t), testLogger())
	return NewHandler(service).Routes(), service
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeData(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func TestPluginLogHandlerList(t *testing.T) {
	router, service := newTestRouter(t)
	service.Append(context.Background(), PluginGalleryDL, LevelWarn, "login failed", nil)

	recorder := doRequest(t, router, http.MethodGet, "/?pluginId=gallery-dl", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var entries []Entry
	decodeData(t, recorder, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "login failed", entries[0].Message)
}

func TestPluginLogHandlerListEmptyIsArray(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":[]}`, recorder.Body.String())
}

func TestPluginLogHandlerPrune(t *testing.T) {
	router, service := newTestRouter(t)

	stale := diagnosticLine(PluginGalleryDL, "stale", time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, service.repo.Insert(context.Background(), stale))

	recorder := doRequest(t, router, http.MethodDelete, "/?olderThanDays=7", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result map[string]int
	decodeData(t, recorder, &result)
	assert.Equal(t, 1, result["deleted_count"])

	// Missing retention parameter is a validation failure.
	recorder = doRequest(t, router, http.MethodDelete, "/", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPluginLogHandlerConfigRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodPut, "/gallery-dl/config",
		`{"username":"reader","password":"hunter2","language":"en"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var values map[string]string
	decodeData(t, recorder, &values)
	assert.Equal(t, "reader", values[ConfigKeyUsername])
	assert.Equal(t, "en", values[ConfigKeyLanguage])
	// Credentials never echo back in clear text.
	assert.Equal(t, "********", values[ConfigKeyPassword])

	recorder = doRequest(t, router, http.MethodGet, "/gallery-dl/config", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	decodeData(t, recorder, &values)
	assert.Equal(t, "********", values[ConfigKeyPassword])
}

func TestPluginLogHandlerConfigRejectsUnknownKey(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodPut, "/gallery-dl/config", `{"api_token":"x"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, router, http.MethodPut, "/gallery-dl/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
