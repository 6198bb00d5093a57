// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package backup

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/08shiro80/komga-enhanced-sub000/internal/platform/request"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/respond"
)

// # HTTP Handler

// Handler exposes the snapshot lifecycle over REST.
type Handler struct {
	service *Service
}

// NewHandler constructs the backup HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes assembles the /backup route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Post("/full", handler.createFull)
	router.Post("/clean", handler.clean)
	router.Post("/restore/{fileName}", handler.restore)
	router.Get("/{fileName}/download", handler.download)
	router.Delete("/{fileName}", handler.delete)

	return router
}

/*
GET /api/v1/backup.

Description: Lists snapshots, newest first.

Response:
  - 200: []Info
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	backups, err := handler.service.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, backups)
}

/*
POST /api/v1/backup.

Description: Takes a plain post-checkpoint snapshot.

Response:
  - 201: Info
  - 422: UNPROCESSABLE: in-memory store
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	info, err := handler.service.Create(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, info)
}

/*
POST /api/v1/backup/full.

Description: Takes a compacted VACUUM INTO snapshot.

Response:
  - 201: Info
  - 422: UNPROCESSABLE: in-memory store
*/
func (handler *Handler) createFull(writer http.ResponseWriter, request *http.Request) {
	info, err := handler.service.CreateFull(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, info)
}

/*
GET /api/v1/backup/{fileName}/download.

Description: Streams one snapshot as an attachment.

Response:
  - 200: application/octet-stream
  - 403: FORBIDDEN: path traversal
  - 404: NOT_FOUND
*/
func (handler *Handler) download(writer http.ResponseWriter, request *http.Request) {
	fileName := requestutil.Param(request, "fileName")

	file, stat, err := handler.service.Open(request.Context(), fileName)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer file.Close()

	writer.Header().Set("Content-Type", "application/octet-stream")
	writer.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	http.ServeContent(writer, request, fileName, stat.ModTime(), file)
}

/*
DELETE /api/v1/backup/{fileName}.

Response:
  - 204: No Content
  - 403: FORBIDDEN: path traversal
  - 404: NOT_FOUND
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.Delete(request.Context(), requestutil.Param(request, "fileName")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/backup/clean?keep=N.

Description: Keeps the N newest snapshots and deletes the rest.

Response:
  - 200: {deleted_count, kept}
  - 400: VALIDATION_ERROR: negative keep
*/
func (handler *Handler) clean(writer http.ResponseWriter, request *http.Request) {
	keep := requestutil.QueryInt(request, "keep", 0)

	deleted, err := handler.service.CleanOld(request.Context(), keep)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{
		"deleted_count": deleted,
		"kept":          keep,
	})
}

/*
POST /api/v1/backup/restore/{fileName}.

Description: Restores a snapshot over the live store. On success the
process exits shortly after responding; the supervisor restarts it.

Response:
  - 200: RestoreResult
  - 403: FORBIDDEN: path traversal
  - 404: NOT_FOUND
  - 409: CONFLICT: live file still locked
  - 422: UNPROCESSABLE: in-memory store
*/
func (handler *Handler) restore(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.service.Restore(request.Context(), requestutil.Param(request, "fileName"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}
