// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package pluginlog is the diagnostic side channel for extractor plugins.

Two stores live here: the append-only plugin log, and the per-plugin
string-keyed configuration (credentials, preferred chapter language) the
extractor driver reads at run time. Log retention is caller-driven; nothing
in this package, or anywhere else, makes business decisions from log rows.
*/
package pluginlog

import "time"

// Level classifies one diagnostic line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// IsValid reports whether l is a recognised [Level] value.
func (l Level) IsValid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Entry is one append-only diagnostic line.
type Entry struct {
	ID         string    `json:"id"`
	PluginID   string    `json:"plugin_id"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	StackTrace *string   `json:"stack_trace,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// # Well-Known Plugin Identifiers

const (
	// PluginGalleryDL tags diagnostics mirrored from the extractor's stderr.
	PluginGalleryDL = "gallery-dl"
)

// # Configuration Keys

// Keys the extractor driver understands in plugin_config rows.
const (
	ConfigKeyUsername = "username"
	ConfigKeyPassword = "password"
	ConfigKeyLanguage = "language"
)
