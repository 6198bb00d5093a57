// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/config"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/slice"
)

// Handler exposes the configured library registry.
type Handler struct {
	registry *Registry
}

// NewHandler constructs the libraries HTTP handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes assembles the /libraries route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)

	return router
}

/*
GET /api/v1/libraries.

Description: Lists the configured reader libraries in declaration order.

Response:
  - 200: [{id, name, root}]
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	response := slice.Map(handler.registry.List(), func(lib config.Library) map[string]string {
		return map[string]string{
			"id":   lib.ID,
			"name": lib.Name,
			"root": lib.Root,
		}
	})
	if response == nil {
		response = []map[string]string{}
	}

	respond.OK(writer, response)
}
