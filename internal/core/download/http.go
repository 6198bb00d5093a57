// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package download

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/core/followcfg"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	requestutil "github.com/08shiro80/komga-enhanced-sub000/internal/platform/request"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
)

// # HTTP Handler

// LibraryChecker triggers an on-demand follow-list run for one library.
// Implemented by the scheduler.
type LibraryChecker interface {
	RunLibraryCheckNow(ctx context.Context, libraryID string) error
}

// Handler exposes the download queue, the per-library follow lists and the
// follow schedule over REST.
type Handler struct {
	service   *Service
	schedule  *followcfg.Service
	libraries *library.Registry
	checker   LibraryChecker
	fs        afero.Fs
}

// NewHandler constructs the downloads HTTP handler.
func NewHandler(service *Service, schedule *followcfg.Service, libraries *library.Registry, checker LibraryChecker, fs afero.Fs) *Handler {
	return &Handler{
		service:   service,
		schedule:  schedule,
		libraries: libraries,
		checker:   checker,
		fs:        fs,
	}
}

// Routes assembles the /downloads route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Get("/stats", handler.stats)
	router.Get("/scheduler", handler.getSchedule)
	router.Post("/scheduler", handler.updateSchedule)
	router.Delete("/clear/{status}", handler.clear)

	router.Route("/follow-txt/{libraryId}", func(router chi.Router) {
		router.Get("/", handler.getFollowFile)
		router.Put("/", handler.putFollowFile)
		router.Post("/check-now", handler.checkNow)
	})

	router.Get("/{id}", handler.get)
	router.Delete("/{id}", handler.delete)
	router.Post("/{id}/action", handler.action)

	return router
}

/*
GET /api/v1/downloads.

Description: Lists the queue in dispatch order (priority ascending, then
creation date ascending).

Response:
  - 200: []Download
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	entries, err := handler.service.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if entries == nil {
		entries = []*Download{}
	}
	respond.OK(writer, entries)
}

/*
POST /api/v1/downloads.

Description: Queues a download.

Request Body: {sourceUrl, libraryId?, title?, priority?}

Response:
  - 201: Download
  - 400: VALIDATION_ERROR: missing or malformed sourceUrl
  - 409: CONFLICT: the URL is already queued, running or completed
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var body CreateRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	entry, err := handler.service.Create(request.Context(), body)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, entry)
}

/*
GET /api/v1/downloads/{id}.

Response:
  - 200: Download
  - 404: NOT_FOUND
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	entry, err := handler.service.Get(request.Context(), requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, entry)
}

/*
POST /api/v1/downloads/{id}/action.

Description: Applies "cancel" or "retry" to one entry.

Request Body: {action}

Response:
  - 204: No Content
  - 400: VALIDATION_ERROR: unknown action, non-retryable entry
  - 404: NOT_FOUND
*/
func (handler *Handler) action(writer http.ResponseWriter, request *http.Request) {
	var body ActionRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Act(request.Context(), requestutil.ID(request, "id"), body.Action); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/downloads/{id}.

Description: Removes the entry, terminating its subprocess when active.
Files already written stay on disk.

Response:
  - 204: No Content
  - 404: NOT_FOUND
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.Delete(request.Context(), requestutil.ID(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/downloads/clear/{status}.

Description: Bulk-removes every entry in one of: completed, failed,
cancelled, pending.

Response:
  - 200: {deletedCount, status, message}
  - 400: VALIDATION_ERROR: unclearable status
*/
func (handler *Handler) clear(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.service.ClearByStatus(request.Context(), requestutil.Param(request, "status"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
GET /api/v1/downloads/stats.

Description: Queue counts per status plus the outbound limiter windows.

Response:
  - 200: Stats
*/
func (handler *Handler) stats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.service.Stats(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, stats)
}

// # Follow Lists

/*
GET /api/v1/downloads/follow-txt/{libraryId}.

Description: Returns the library's follow.txt content, empty when the file
does not exist yet.

Response:
  - 200: {libraryId, libraryName, content}
  - 404: NOT_FOUND: unknown library
*/
func (handler *Handler) getFollowFile(writer http.ResponseWriter, request *http.Request) {
	lib, err := handler.libraries.Get(requestutil.ID(request, "libraryId"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	content, err := library.ReadFollowFile(handler.fs, lib.Root)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		"libraryId":   lib.ID,
		"libraryName": lib.Name,
		"content":     content,
	})
}

/*
PUT /api/v1/downloads/follow-txt/{libraryId}.

Description: Replaces the library's follow.txt wholesale.

Request Body: {content}

Response:
  - 204: No Content
  - 404: NOT_FOUND: unknown library
*/
func (handler *Handler) putFollowFile(writer http.ResponseWriter, request *http.Request) {
	lib, err := handler.libraries.Get(requestutil.ID(request, "libraryId"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := library.WriteFollowFile(handler.fs, lib.Root, body.Content); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/downloads/follow-txt/{libraryId}/check-now.

Description: Runs the library's follow-list check immediately, outside the
configured cadence.

Response:
  - 204: No Content
  - 404: NOT_FOUND: unknown library
*/
func (handler *Handler) checkNow(writer http.ResponseWriter, request *http.Request) {
	if err := handler.checker.RunLibraryCheckNow(request.Context(), requestutil.ID(request, "libraryId")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Follow Schedule

/*
GET /api/v1/downloads/scheduler.

Response:
  - 200: {enabled, intervalHours, lastCheckTime?}
*/
func (handler *Handler) getSchedule(writer http.ResponseWriter, request *http.Request) {
	config, err := handler.schedule.Get(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, scheduleResponse(config))
}

/*
POST /api/v1/downloads/scheduler.

Description: Updates the follow schedule. An intervalHours of 0 disables
the schedule while keeping the stored cadence. Changes apply at the next
tick.

Request Body: {enabled, intervalHours}

Response:
  - 200: {enabled, intervalHours, lastCheckTime?}
  - 400: VALIDATION_ERROR: interval out of range
*/
func (handler *Handler) updateSchedule(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Enabled       bool `json:"enabled"`
		IntervalHours int  `json:"intervalHours"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	config, err := handler.schedule.Update(request.Context(), body.Enabled, body.IntervalHours)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, scheduleResponse(config))
}

// scheduleResponse renders the follow configuration in the wire shape the
// scheduler endpoints promise.
func scheduleResponse(config followcfg.Config) map[string]any {
	response := map[string]any{
		"enabled":       config.Enabled,
		"intervalHours": config.CheckIntervalHours,
	}
	if config.LastCheckTime != nil {
		response["lastCheckTime"] = *config.LastCheckTime
	}
	return response
}
