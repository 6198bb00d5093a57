// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (store, scheduler) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Library names one directory tree the reader application scans.
// Follow lists and download destinations are resolved against its root.
type Library struct {
	ID   string
	Name string
	Root string
}

// Config holds all runtime configuration for the download orchestrator.
type Config struct {

	// Server settings
	ServerPort  string `env:"KOMGA_ENHANCED_PORT" envDefault:"8085"`
	Environment string `env:"ENVIRONMENT"         envDefault:"development"`
	Debug       bool   `env:"DEBUG"               envDefault:"false"`

	// ConfigDir roots the database, backups and default downloads directory.
	ConfigDir string `env:"KOMGA_ENHANCED_CONFIG_DIR,expand" envDefault:"${HOME}/.komga"`

	// DatabaseFile is the SQLite file spec. A spec containing "mode=memory"
	// runs the store in memory and disables backups.
	// Empty means {ConfigDir}/downloads.sqlite.
	DatabaseFile string `env:"DATABASE_FILE"`

	// DownloadsDir receives series with no target library.
	// Empty means {ConfigDir}/downloads.
	DownloadsDir string `env:"DOWNLOADS_DIR"`

	// APIToken guards the admin REST surface. Empty disables the check.
	APIToken string `env:"API_TOKEN"`

	// LibrarySpecs enumerates reader libraries as "id=name=root" triples,
	// separated by semicolons.
	LibrarySpecs []string `env:"LIBRARIES" envSeparator:";"`

	// PreferredLanguage selects chapter translations and title fallbacks.
	PreferredLanguage string `env:"PREFERRED_LANGUAGE" envDefault:"en"`

	// Extractor overrides
	ExtractorPath     string `env:"EXTRACTOR_PATH"`
	ExtractorUsername string `env:"EXTRACTOR_USERNAME"`
	ExtractorPassword string `env:"EXTRACTOR_PASSWORD"`

	// WatchFollowFiles enables the fsnotify watcher on follow.txt files.
	WatchFollowFiles bool `env:"WATCH_FOLLOW_FILES" envDefault:"true"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// libraries holds the parsed LibrarySpecs.
	libraries []Library
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Derive path defaults from the config directory.
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = filepath.Join(cfg.ConfigDir, "downloads.sqlite")
	}
	if cfg.DownloadsDir == "" {
		cfg.DownloadsDir = filepath.Join(cfg.ConfigDir, "downloads")
	}

	// Parse library triples eagerly so malformed specs fail at startup.
	for _, spec := range cfg.LibrarySpecs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, "=", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("config: malformed library spec %q (want id=name=root)", spec)
		}
		cfg.libraries = append(cfg.libraries, Library{
			ID:   strings.TrimSpace(parts[0]),
			Name: strings.TrimSpace(parts[1]),
			Root: strings.TrimSpace(parts[2]),
		})
	}

	return cfg, nil
}

// # Derived Accessors

// Libraries returns the parsed reader libraries in declaration order.
func (c *Config) Libraries() []Library {
	return c.libraries
}

// BackupsDir is where store snapshots are written.
func (c *Config) BackupsDir() string {
	return filepath.Join(c.ConfigDir, "backups")
}

// IsMemoryDatabase reports whether the store runs in memory, which
// disables the backup lifecycle.
func (c *Config) IsMemoryDatabase() bool {
	return strings.Contains(c.DatabaseFile, "mode=memory")
}

// AllowedOrigins lists the extra CORS origins permitted outside development.
func (c *Config) AllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
