// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/config"
)

/*
TestLoad_Defaults verifies path derivation from the config directory.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KOMGA_ENHANCED_CONFIG_DIR", "/tmp/komga-test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8085", cfg.ServerPort)
	assert.Equal(t, filepath.Join("/tmp/komga-test", "downloads.sqlite"), cfg.DatabaseFile)
	assert.Equal(t, filepath.Join("/tmp/komga-test", "downloads"), cfg.DownloadsDir)
	assert.Equal(t, filepath.Join("/tmp/komga-test", "backups"), cfg.BackupsDir())
	assert.Equal(t, "en", cfg.PreferredLanguage)
	assert.True(t, cfg.WatchFollowFiles)
	assert.Empty(t, cfg.Libraries())
}

/*
TestLoad_LibrarySpecs verifies the id=name=root triple parsing.
*/
func TestLoad_LibrarySpecs(t *testing.T) {
	tests := []struct {
		name    string
		specs   string
		wantErr bool
		count   int
	}{
		{"single", "lib1=Manga=/data/manga", false, 1},
		{"multiple", "lib1=Manga=/data/manga;lib2=Comics=/data/comics", false, 2},
		{"trailing_separator", "lib1=Manga=/data/manga;", false, 1},
		{"missing_root", "lib1=Manga", true, 0},
		{"empty_id", "=Manga=/data/manga", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KOMGA_ENHANCED_CONFIG_DIR", t.TempDir())
			t.Setenv("LIBRARIES", tt.specs)

			cfg, err := config.Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Len(t, cfg.Libraries(), tt.count)
			assert.Equal(t, "lib1", cfg.Libraries()[0].ID)
			assert.Equal(t, "Manga", cfg.Libraries()[0].Name)
			assert.Equal(t, "/data/manga", cfg.Libraries()[0].Root)
		})
	}
}

/*
TestConfig_IsMemoryDatabase verifies memory-mode detection for the backup guard.
*/
func TestConfig_IsMemoryDatabase(t *testing.T) {
	t.Setenv("KOMGA_ENHANCED_CONFIG_DIR", t.TempDir())
	t.Setenv("DATABASE_FILE", "file:queue?mode=memory&cache=shared")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsMemoryDatabase())
}

/*
TestConfig_AllowedOrigins verifies trimming and empty handling.
*/
func TestConfig_AllowedOrigins(t *testing.T) {
	t.Setenv("KOMGA_ENHANCED_CONFIG_DIR", t.TempDir())
	t.Setenv("EXTRA_ORIGINS", "https://reader.local:8443, https://admin.local")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://reader.local:8443", "https://admin.local"}, cfg.AllowedOrigins())
}
