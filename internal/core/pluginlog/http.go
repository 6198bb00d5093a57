// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package pluginlog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/08shiro80/komga-enhanced-sub000/internal/platform/request"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
)

// Handler exposes the plugin diagnostic channel over REST.
type Handler struct {
	service *Service
}

// NewHandler constructs the plugin-log HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes assembles the /plugin-logs route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Delete("/", handler.prune)
	router.Get("/{pluginID}/config", handler.getConfig)
	router.Put("/{pluginID}/config", handler.putConfig)

	return router
}

/*
GET /api/v1/plugin-logs?pluginId=&limit=.

Description: Returns recent diagnostic lines, newest first.

Response:
  - 200: []Entry
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	entries, err := handler.service.List(
		request.Context(),
		requestutil.Query(request, "pluginId"),
		requestutil.QueryInt(request, "limit", 100),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// an empty list renders as [], not null
	if entries == nil {
		entries = []*Entry{}
	}
	respond.OK(writer, entries)
}

/*
DELETE /api/v1/plugin-logs?olderThanDays=N.

Description: Prunes lines older than the retention window.

Response:
  - 200: {deleted_count}
  - 400: VALIDATION_ERROR: olderThanDays out of range
*/
func (handler *Handler) prune(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.service.Prune(
		request.Context(),
		requestutil.QueryInt(request, "olderThanDays", 0),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"deleted_count": deleted})
}

/*
GET /api/v1/plugin-logs/{pluginID}/config.

Description: Returns the plugin's configuration. Passwords are masked.

Response:
  - 200: map[string]string
*/
func (handler *Handler) getConfig(writer http.ResponseWriter, request *http.Request) {
	values, err := handler.service.Config(request.Context(), requestutil.Param(request, "pluginID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, maskSecrets(values))
}

/*
PUT /api/v1/plugin-logs/{pluginID}/config.

Description: Upserts configuration values for the plugin.

Request Body:
  - map[string]string

Response:
  - 200: map[string]string (masked, post-update)
  - 400: VALIDATION_ERROR: unrecognised key
*/
func (handler *Handler) putConfig(writer http.ResponseWriter, request *http.Request) {
	var values map[string]string
	if err := requestutil.DecodeJSON(request, &values); err != nil {
		respond.Error(writer, request, err)
		return
	}

	updated, err := handler.service.UpdateConfig(request.Context(), requestutil.Param(request, "pluginID"), values)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, maskSecrets(updated))
}

// maskSecrets hides credential values in API responses.
func maskSecrets(values map[string]string) map[string]string {
	masked := make(map[string]string, len(values))
	for key, value := range values {
		if key == ConfigKeyPassword && value != "" {
			masked[key] = "********"
			continue
		}
		masked[key] = value
	}
	return masked
}
