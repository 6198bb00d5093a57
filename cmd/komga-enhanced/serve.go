// Copyright (c) 2026 Komga Enhanced. All rights reserved.

// Server assembly.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the SQLite store (single writer, WAL).
//  4. Run database migrations (idempotent).
//  5. Wire the catalog client, extractor driver, and domain services.
//  6. Start the scheduler and the follow-file watcher.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/api"
	"github.com/08shiro80/komga-enhanced-sub000/internal/backup"
	"github.com/08shiro80/komga-enhanced-sub000/internal/catalog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/chapterlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/download"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/followcfg"
	"github.com/08shiro80/komga-enhanced-sub000/internal/core/pluginlog"
	"github.com/08shiro80/komga-enhanced-sub000/internal/extractor"
	"github.com/08shiro80/komga-enhanced-sub000/internal/library"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/config"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/migration"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/sqlite"
	"github.com/08shiro80/komga-enhanced-sub000/internal/progress"
	"github.com/08shiro80/komga-enhanced-sub000/internal/scheduler"
)

// queueBridge defers the checker's enqueue target until the download service
// exists. The checker and the download service depend on each other at
// construction time; the bridge is filled in before anything runs.
type queueBridge struct {
	service *download.Service
}

func (b *queueBridge) EnqueueFollowURL(ctx context.Context, sourceURL string) (bool, error) {
	return b.service.EnqueueFollowURL(ctx, sourceURL)
}

func runServe() error {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("config_dir", cfg.ConfigDir),
		slog.Int("libraries", len(cfg.Libraries())),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	fsys := afero.NewOsFs()

	// ── 3. SQLite Store ───────────────────────────────────────────────────
	db, err := sqlite.Open(startupCtx, cfg.DatabaseFile, log)
	must(log, err, "open sqlite store")
	defer func() {
		log.Info("closing sqlite store")
		if cerr := db.Close(); cerr != nil {
			log.Error("sqlite close error", slog.Any("error", cerr))
		}
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(db.RW, log), "run migrations")

	// ── 5. Catalog Client ─────────────────────────────────────────────────
	limiter := catalog.NewRateLimiter()
	client := catalog.NewClient(limiter, log, catalog.ClientOptions{
		PreferredLanguage: cfg.PreferredLanguage,
	})
	cache := catalog.NewMetadataCache()
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			log.Error("metadata cache close error", slog.Any("error", cerr))
		}
	}()

	// ── 6. Plugin Log ─────────────────────────────────────────────────────
	pluginRepository := pluginlog.NewSQLiteRepository(db)
	pluginService := pluginlog.NewService(pluginRepository, log)
	pluginHandler := pluginlog.NewHandler(pluginService)

	// ── 7. Extractor Driver ───────────────────────────────────────────────
	resolver := extractor.NewResolver(log)
	resolver.SetPath(cfg.ExtractorPath)
	driver := extractor.NewDriver(resolver, client, cache, log, extractor.DriverOptions{
		ConfigDir: cfg.ConfigDir,
		Params: extractor.ConfigParams{
			PreferredLanguage: cfg.PreferredLanguage,
			Username:          cfg.ExtractorUsername,
			Password:          cfg.ExtractorPassword,
		},
		FS:       fsys,
		Sink:     pluginlog.NewSink(pluginService, pluginlog.PluginGalleryDL),
		Store:    pluginService,
		PluginID: pluginlog.PluginGalleryDL,
	})

	// ── 8. Libraries ──────────────────────────────────────────────────────
	registry := library.NewRegistry(cfg.Libraries())
	materializer := library.NewMaterializer(client, fsys, log)
	libraryHandler := library.NewHandler(registry)

	// ── 9. Progress Hub ───────────────────────────────────────────────────
	hub := progress.NewHub(log)
	defer hub.Close()
	wsHandler := progress.NewWSHandler(hub, log)

	// ── 10. Domain Wiring ─────────────────────────────────────────────────
	followRepository := followcfg.NewSQLiteRepository(db)
	followService := followcfg.NewService(followRepository, log)

	// Evidence roots: every library plus the default downloads directory.
	roots := make([]string, 0, len(cfg.Libraries())+1)
	for _, lib := range cfg.Libraries() {
		roots = append(roots, lib.Root)
	}
	roots = append(roots, cfg.DownloadsDir)

	bridge := &queueBridge{}
	chapterRepository := chapterlog.NewSQLiteRepository(db)
	checker := chapterlog.NewChecker(client, chapterRepository, bridge, followService, fsys, roots, cfg.PreferredLanguage, log)
	chapterService := chapterlog.NewService(chapterRepository, checker, log)
	chapterHandler := chapterlog.NewHandler(chapterService)

	downloadRepository := download.NewSQLiteRepository(db)
	executor := download.NewExecutor(
		downloadRepository,
		driver,
		client,
		materializer,
		chapterService,
		hub,
		registry,
		fsys,
		log,
		download.ExecutorOptions{
			DownloadsDir:      cfg.DownloadsDir,
			PreferredLanguage: cfg.PreferredLanguage,
		},
	)
	downloadService := download.NewService(downloadRepository, executor, client, log)
	bridge.service = downloadService

	backupService := backup.NewService(db, cfg.BackupsDir(), fsys, log)
	backupHandler := backup.NewHandler(backupService)

	catalogHandler := catalog.NewHandler(client)

	// ── 11. Scheduler ─────────────────────────────────────────────────────
	sched := scheduler.New(
		downloadRepository,
		executor,
		resolver,
		checker,
		followService,
		registry,
		hub,
		fsys,
		log,
	)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go func() {
		if rerr := sched.Run(schedCtx); rerr != nil {
			log.Error("scheduler stopped", slog.Any("error", rerr))
		}
	}()

	downloadHandler := download.NewHandler(downloadService, followService, registry, sched, fsys)

	// ── 12. Follow-File Watcher ───────────────────────────────────────────
	if cfg.WatchFollowFiles {
		watcher := library.NewWatcher(registry, func(libraryID string) {
			if werr := sched.RunLibraryCheckNow(context.Background(), libraryID); werr != nil {
				log.Error("follow_file_check_failed",
					slog.String("library_id", libraryID),
					slog.Any("error", werr),
				)
			}
		}, log)
		if werr := watcher.Start(); werr != nil {
			log.Warn("follow_file_watcher_unavailable", slog.Any("error", werr))
		} else {
			defer watcher.Stop()
		}
	}

	// ── 13. Health handlers (wired with real dependency checkers) ─────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return db.Ping(context.Background())
		},
		CheckExtractor: func() error {
			if !resolver.Installed(context.Background()) {
				return extractor.ErrNotInstalled
			}
			return nil
		},
	}, log)

	// ── 14. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Downloads:  downloadHandler,
		ChapterLog: chapterHandler,
		Backup:     backupHandler,
		PluginLog:  pluginHandler,
		Catalog:    catalogHandler,
		Libraries:  libraryHandler,
		Progress:   wsHandler,
	}

	server := api.NewServer(context.Background(), cfg, log, handlers)

	// ── 15. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			serverErr <- serr
		}
	}()

	log.Info("service_started", slog.String("addr", ":"+cfg.ServerPort))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case serr := <-serverErr:
		log.Error("server error", slog.Any("error", serr))
		return serr
	}

	schedCancel()

	if serr := server.Shutdown(constants.ShutdownTimeout); serr != nil {
		log.Error("shutdown error", slog.Any("error", serr))
		return serr
	}

	log.Info("server stopped cleanly")
	return nil
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
