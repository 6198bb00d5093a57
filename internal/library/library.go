// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package library models the reader application's library trees.

The downloader and the reader share nothing but the filesystem: a library
is a directory the reader scans, and this package owns everything the
downloader places inside it. That covers three concerns:

  - the registry resolving a library id to its root directory,
  - follow.txt files listing series to keep up to date,
  - the per-series sidecars (series.json, cover image) the reader uses
    for display metadata.

All filesystem access goes through afero so the whole package is testable
against an in-memory tree.
*/
package library

import (
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/apperr"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/config"
)

// FollowFileName is the per-library follow list consumed by the scheduler.
const FollowFileName = "follow.txt"

// SeriesFileName is the metadata sidecar the reader picks up per series.
const SeriesFileName = "series.json"

// # Registry

// Registry resolves library ids against the configured library set.
type Registry struct {
	libraries []config.Library
}

// NewRegistry builds a registry over the configured libraries.
func NewRegistry(libraries []config.Library) *Registry {
	return &Registry{libraries: libraries}
}

// List returns the libraries in configuration order.
func (r *Registry) List() []config.Library {
	return r.libraries
}

// Get resolves a library by id.
func (r *Registry) Get(id string) (config.Library, error) {
	for _, lib := range r.libraries {
		if lib.ID == id {
			return lib, nil
		}
	}

	return config.Library{}, apperr.NotFound("Library " + id)
}
