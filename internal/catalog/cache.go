// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/syncmap"

	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
)

// MetadataCache keeps resolved manga records for the lifetime of the
// process, keyed by source URL. A download run looks a manga up several
// times (series sidecar, per-chapter archive metadata, cover), and the
// cache collapses those into one catalog round-trip.
type MetadataCache struct {
	store gokv.Store
}

// NewMetadataCache builds an in-process cache.
func NewMetadataCache() *MetadataCache {
	return &MetadataCache{store: syncmap.NewStore(syncmap.DefaultOptions)}
}

// Get returns the cached record for a key, if present.
func (c *MetadataCache) Get(key string) (metadata.MangaMetadata, bool) {
	var manga metadata.MangaMetadata

	found, err := c.store.Get(key, &manga)
	if err != nil || !found {
		return metadata.MangaMetadata{}, false
	}

	return manga, true
}

// Set stores a record under a key, overwriting any previous value.
func (c *MetadataCache) Set(key string, manga metadata.MangaMetadata) {
	// syncmap cannot fail on write; the error is part of the gokv contract
	_ = c.store.Set(key, manga)
}

// Delete removes a key, if present.
func (c *MetadataCache) Delete(key string) {
	_ = c.store.Delete(key)
}

// Close releases the underlying store.
func (c *MetadataCache) Close() error {
	return c.store.Close()
}
