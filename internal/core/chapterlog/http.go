// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package chapterlog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/08shiro80/komga-enhanced-sub000/internal/platform/request"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/pagination"
)

// # HTTP Handler

// Handler exposes the chapter download history over REST.
type Handler struct {
	service *Service
}

// NewHandler constructs the chapter-history HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register attaches the chapter-history routes to the API router. The
// lookup endpoints live at the router's root; the bulk history tools are
// grouped under /chapter-urls.
func (handler *Handler) Register(router chi.Router) {
	router.Get("/check-url", handler.checkURL)
	router.Post("/check-urls", handler.checkURLs)
	router.Get("/series/{seriesId}/new-chapters", handler.newChapters)

	router.Route("/chapter-urls", func(router chi.Router) {
		router.Get("/series/{seriesId}", handler.listBySeries)
		router.Delete("/series/{seriesId}", handler.deleteBySeries)
		router.Get("/range", handler.listByRange)
		router.Delete("/range", handler.deleteByRange)
		router.Delete("/all", handler.deleteAll)
		router.Delete("/{id}", handler.delete)
	})
}

/*
GET /api/v1/check-url?url=.

Description: Reports whether one chapter URL is already recorded.

Response:
  - 200: {url, downloaded}
  - 400: VALIDATION_ERROR: url missing
*/
func (handler *Handler) checkURL(writer http.ResponseWriter, request *http.Request) {
	url := requestutil.Query(request, "url")

	downloaded, err := handler.service.IsDownloaded(request.Context(), url)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"url":        url,
		"downloaded": downloaded,
	})
}

/*
POST /api/v1/check-urls.

Description: Batch variant of check-url; the body is a JSON array of URLs.

Request Body: []string

Response:
  - 200: map[url]bool
  - 400: VALIDATION_ERROR: empty array or invalid JSON
*/
func (handler *Handler) checkURLs(writer http.ResponseWriter, request *http.Request) {
	var urls []string
	if err := requestutil.DecodeJSON(request, &urls); err != nil {
		respond.Error(writer, request, err)
		return
	}

	results, err := handler.service.AreDownloaded(request.Context(), urls)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, results)
}

/*
GET /api/v1/chapter-urls/series/{seriesId}?page=&limit=.

Description: Returns a series' recorded chapters, ascending chapter number.
Long-running series accumulate hundreds of records, so the listing pages.

Response:
  - 200: []Record + pagination meta
*/
func (handler *Handler) listBySeries(writer http.ResponseWriter, request *http.Request) {
	records, err := handler.service.ListBySeries(request.Context(), requestutil.ID(request, "seriesId"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	total := len(records)

	start := params.Offset()
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}

	page := records[start:end]
	if page == nil {
		page = []*Record{}
	}
	respond.Paginated(writer, page, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GET /api/v1/series/{seriesId}/new-chapters?mangaUrl=.

Description: Compares the catalog's chapter count against the local history
for one followed series.

Response:
  - 200: CheckResult
  - 400: VALIDATION_ERROR: mangaUrl missing
*/
func (handler *Handler) newChapters(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.service.NewChaptersForSeries(
		request.Context(),
		requestutil.Query(request, "mangaUrl"),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
DELETE /api/v1/chapter-urls/series/{seriesId}.

Description: Forgets a series' whole history so its chapters can be
re-downloaded.

Response:
  - 200: {deleted_count}
*/
func (handler *Handler) deleteBySeries(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.service.DeleteBySeries(request.Context(), requestutil.ID(request, "seriesId"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"deleted_count": deleted})
}

/*
GET /api/v1/chapter-urls/range?from=&to=.

Description: Lists records downloaded inside a date window (RFC 3339 or
YYYY-MM-DD bounds).

Response:
  - 200: []Record
  - 400: VALIDATION_ERROR: malformed or inverted bounds
*/
func (handler *Handler) listByRange(writer http.ResponseWriter, request *http.Request) {
	from, to, err := parseRange(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	records, err := handler.service.ListByDateRange(request.Context(), from, to)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if records == nil {
		records = []*Record{}
	}
	respond.OK(writer, records)
}

/*
DELETE /api/v1/chapter-urls/range?from=&to=.

Description: Forgets records downloaded inside a date window. The window
tool of choice after a bad batch: wipe the window, let the next check
re-queue it.

Response:
  - 200: {deleted_count}
  - 400: VALIDATION_ERROR: malformed or inverted bounds
*/
func (handler *Handler) deleteByRange(writer http.ResponseWriter, request *http.Request) {
	from, to, err := parseRange(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	deleted, err := handler.service.DeleteByDateRange(request.Context(), from, to)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"deleted_count": deleted})
}

/*
DELETE /api/v1/chapter-urls/all?confirm=true.

Description: Wipes the entire download history. Refused without the
explicit confirm flag.

Response:
  - 200: {deleted_count}
  - 400: VALIDATION_ERROR: confirm missing
*/
func (handler *Handler) deleteAll(writer http.ResponseWriter, request *http.Request) {
	validator := &validate.Validator{}
	validator.Custom("confirm", !requestutil.QueryBool(request, "confirm"), "Pass confirm=true to wipe the history")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	deleted, err := handler.service.DeleteAll(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"deleted_count": deleted})
}

/*
DELETE /api/v1/chapter-urls/{id}.

Description: Forgets one recorded chapter by id.

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

// rangeLayouts are the accepted bound formats, tried in order.
var rangeLayouts = []string{time.RFC3339, "2006-01-02"}

// parseRange reads and validates the from/to query bounds. A date-only "to"
// bound is pushed to the end of that day so the window is inclusive.
func parseRange(request *http.Request) (time.Time, time.Time, error) {
	from, fromOK := parseBound(requestutil.Query(request, FieldFrom), false)
	to, toOK := parseBound(requestutil.Query(request, FieldTo), true)

	validator := &validate.Validator{}
	validator.Custom(FieldFrom, !fromOK, "Must be RFC 3339 or YYYY-MM-DD")
	validator.Custom(FieldTo, !toOK, "Must be RFC 3339 or YYYY-MM-DD")
	if err := validator.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}

	return from, to, nil
}

func parseBound(raw string, endOfDay bool) (time.Time, bool) {
	for _, layout := range rangeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if endOfDay && layout == "2006-01-02" {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}
