// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
	requestutil "github.com/08shiro80/komga-enhanced-sub000/internal/platform/request"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/validate"
)

// # HTTP Handler

// defaultSearchLimit bounds an unobserved search request.
const defaultSearchLimit = 10

// Handler exposes catalog lookups so a UI can preview a series before
// queueing it.
type Handler struct {
	client *Client
}

// NewHandler constructs the catalog HTTP handler.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Routes assembles the /catalog route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/search", handler.search)
	router.Get("/manga/{mangaId}", handler.manga)

	return router
}

/*
GET /api/v1/catalog/search?query=&limit=.

Description: Full-text series search against the upstream catalog.

Response:
  - 200: []MangaMetadata
  - 400: VALIDATION_ERROR: query missing
*/
func (handler *Handler) search(writer http.ResponseWriter, request *http.Request) {
	query := requestutil.Query(request, "query")
	limit := requestutil.QueryInt(request, "limit", defaultSearchLimit)

	validator := &validate.Validator{}
	validator.Required("query", query)
	validator.Range("limit", limit, 1, 100)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	results, err := handler.client.SearchManga(request.Context(), query, limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, results)
}

/*
GET /api/v1/catalog/manga/{mangaId}.

Description: Resolved metadata for one catalog manga id.

Response:
  - 200: MangaMetadata
  - 404: NOT_FOUND: unknown id upstream
*/
func (handler *Handler) manga(writer http.ResponseWriter, request *http.Request) {
	manga, err := handler.client.GetManga(request.Context(), requestutil.ID(request, "mangaId"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if manga == nil {
		respond.Error(writer, request, apperr.NotFound("Manga"))
		return
	}

	respond.OK(writer, manga)
}
