// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
)

// CheckFunc receives a library id once its follow list settles after an
// edit.
type CheckFunc func(libraryID string)

// Watcher reacts to follow.txt edits made outside the REST surface; the
// import tooling shares nothing with this service but that file. Events
// are debounced per library, so an editor's save dance or a slow copy
// triggers one check, not five.
type Watcher struct {
	registry *Registry
	check    CheckFunc
	debounce time.Duration
	logger   *slog.Logger

	notifier *fsnotify.Watcher
	done     chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher builds a watcher over the registry's libraries.
func NewWatcher(registry *Registry, check CheckFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		registry: registry,
		check:    check,
		debounce: constants.FollowWatchDebounce,
		logger:   logger.With(slog.String("component", "follow_watcher")),
		timers:   make(map[string]*time.Timer),
	}
}

// Start watches each library root directory. Watching the directory
// rather than the file itself survives editors that replace the file on
// save. Roots that cannot be watched are logged and skipped.
func (w *Watcher) Start() error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.notifier = notifier
	w.done = make(chan struct{})

	for _, lib := range w.registry.List() {
		if err := notifier.Add(lib.Root); err != nil {
			w.logger.Warn("follow_watch_unavailable",
				slog.String("library_id", lib.ID),
				slog.String("root", lib.Root),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.logger.Info("follow_watch_started",
			slog.String("library_id", lib.ID),
			slog.String("root", lib.Root),
		)
	}

	go w.run()
	return nil
}

// Stop ends the watch and cancels pending debounce timers.
func (w *Watcher) Stop() {
	if w.notifier == nil {
		return
	}

	close(w.done)
	w.notifier.Close() //nolint:errcheck

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, timer := range w.timers {
		timer.Stop()
	}
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("follow_watch_error", slog.String("error", err.Error()))
		case <-w.done:
			return
		}
	}
}

// handle filters raw events down to follow.txt content changes and maps
// them back to a library.
func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Base(event.Name) != FollowFileName {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	dir := filepath.Clean(filepath.Dir(event.Name))
	for _, lib := range w.registry.List() {
		if filepath.Clean(lib.Root) == dir {
			w.schedule(lib.ID)
			return
		}
	}
}

// schedule arms, or re-arms, the debounce timer for one library. Fired
// timers stay in the map; Reset re-arms them.
func (w *Watcher) schedule(libraryID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[libraryID]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[libraryID] = time.AfterFunc(w.debounce, func() {
		w.logger.Info("follow_file_changed", slog.String("library_id", libraryID))
		w.check(libraryID)
	})
}
