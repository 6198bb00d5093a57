// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"bytes"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/08shiro80/komga-enhanced-sub000/internal/cbz"
)

// CountMaterializedArchives scans the given roots for series directories
// whose series.json mentions the manga id, and returns the largest archive
// count among them.
//
// This is the filesystem half of the chapter checker's "known chapters"
// estimate: the chapter-URL store can lag reality (records wiped, series
// downloaded before tracking existed), but archives on disk do not lie.
// Unreadable directories count as zero; the estimate must never fail a
// check.
func CountMaterializedArchives(fs afero.Fs, roots []string, mangaID string) int {
	if mangaID == "" {
		return 0
	}

	best := 0
	needle := []byte(mangaID)

	for _, root := range roots {
		entries, err := afero.ReadDir(fs, root)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			seriesDir := filepath.Join(root, entry.Name())
			sidecar, err := afero.ReadFile(fs, filepath.Join(seriesDir, SeriesFileName))
			if err != nil || !bytes.Contains(sidecar, needle) {
				continue
			}

			archives, err := cbz.ListArchives(fs, seriesDir)
			if err != nil {
				continue
			}
			if len(archives) > best {
				best = len(archives)
			}
		}
	}

	return best
}
