// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/komga-enhanced are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/08shiro80/komga-enhanced-sub000/internal/backup"
	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/chapterlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/download"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/pluginlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/config"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Downloads handles the queue, follow lists and the follow schedule.
	Downloads *download.Handler

	// ChapterLog handles the chapter download history and its lookups.
	ChapterLog *chapterlog.Handler

	// Backup handles store snapshots and restore.
	Backup *backup.Handler

	// PluginLog exposes the extractor's diagnostic side channel.
	PluginLog *pluginlog.Handler

	// Catalog exposes upstream search and series preview.
	Catalog *catalog.Handler

	// Libraries lists the configured reader libraries.
	Libraries *library.Handler

	// Progress is the WebSocket progress channel. Mounted outside the
	// request-timeout middleware because the connection is long-lived.
	Progress http.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	// The whole admin surface sits behind the shared-secret header.
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAPIKey(cfg.APIToken))

		api.Method(http.MethodGet, "/downloads/progress", h.Progress)

		api.Group(func(api chi.Router) {
			api.Use(chimw.Timeout(constants.GlobalRequestTimeout))

			api.Mount("/downloads", h.Downloads.Routes())
			api.Mount("/backup", h.Backup.Routes())
			api.Mount("/plugin-logs", h.PluginLog.Routes())
			api.Mount("/catalog", h.Catalog.Routes())
			api.Mount("/libraries", h.Libraries.Routes())
			h.ChapterLog.Register(api)
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
