// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evidenceMangaID = "88aa1d11-0000-4000-8000-00000000aaaa"

func seedSeriesDir(t *testing.T, fs afero.Fs, dir, mangaID string, archives int) {
	t.Helper()

	sidecar := fmt.Sprintf(`{"metadata":{"title":"X"},"links":[{"label":"MangaDex","url":"https://mangadex.org/title/%s"}]}`, mangaID)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, SeriesFileName), []byte(sidecar), 0o644))

	for i := 0; i < archives; i++ {
		name := fmt.Sprintf("Chapter %02d.cbz", i+1)
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte("zip"), 0o644))
	}
}

func TestCountMaterializedArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSeriesDir(t, fs, "/library/Series A", evidenceMangaID, 5)

	// Noise: another series, loose files, an archive with a different extension.
	seedSeriesDir(t, fs, "/library/Series B", "99bb2e22-0000-4000-8000-00000000bbbb", 9)
	require.NoError(t, afero.WriteFile(fs, "/library/notes.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/library/Series A/raw.zip", []byte("zip"), 0o644))

	assert.Equal(t, 5, CountMaterializedArchives(fs, []string{"/library"}, evidenceMangaID))
}

func TestCountMaterializedArchivesPicksLargestAcrossRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSeriesDir(t, fs, "/library/Series A", evidenceMangaID, 3)
	seedSeriesDir(t, fs, "/downloads/Series A", evidenceMangaID, 7)

	count := CountMaterializedArchives(fs, []string{"/library", "/downloads"}, evidenceMangaID)
	assert.Equal(t, 7, count)
}

func TestCountMaterializedArchivesToleratesAbsence(t *testing.T) {
	fs := afero.NewMemMapFs()

	assert.Zero(t, CountMaterializedArchives(fs, []string{"/missing"}, evidenceMangaID))
	assert.Zero(t, CountMaterializedArchives(fs, nil, evidenceMangaID))
	assert.Zero(t, CountMaterializedArchives(fs, []string{"/library"}, ""))

	// A series directory without a sidecar contributes nothing.
	require.NoError(t, afero.WriteFile(fs, "/library/Bare Series/Chapter 01.cbz", []byte("zip"), 0o644))
	assert.Zero(t, CountMaterializedArchives(fs, []string{"/library"}, evidenceMangaID))
}
