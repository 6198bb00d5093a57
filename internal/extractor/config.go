// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ConfigFileName is the generated gallery-dl configuration file, written
// into the application config directory before every run.
const ConfigFileName = "gallery-dl-config.json"

// SiteRule overrides the global placement templates for one extractor site.
type SiteRule struct {
	// Directory is the per-chapter folder pattern, one element so every
	// chapter lands in a single folder directly under the destination.
	Directory []string `json:"directory"`

	// Filename is the page filename pattern (zero-padded page number plus
	// the upstream extension).
	Filename string `json:"filename"`
}

// defaultSiteRules is the built-in per-site table.
var defaultSiteRules = map[string]SiteRule{
	"mangadex": {
		Directory: []string{"Ch.{chapter!S}"},
		Filename:  "{page:>03}.{extension}",
	},
}

// siteRulesOverride replaces the built-in table when set at build time:
//
//	go build -ldflags '-X <module>/internal/extractor.siteRulesOverride={"mangadex":{...}}'
//
// Malformed JSON falls back to the built-in table.
var siteRulesOverride string

// siteRules resolves the active per-site table.
func siteRules() map[string]SiteRule {
	if siteRulesOverride == "" {
		return defaultSiteRules
	}

	var rules map[string]SiteRule
	if err := json.Unmarshal([]byte(siteRulesOverride), &rules); err != nil || len(rules) == 0 {
		return defaultSiteRules
	}

	return rules
}

// ConfigParams are the inputs that shape a generated configuration. The same
// params always produce the same bytes.
type ConfigParams struct {
	PreferredLanguage string
	Username          string
	Password          string
}

// BuildConfig renders the gallery-dl configuration: global placement
// templates, per-site overrides, optional credentials, and a postprocessor
// that packs each finished chapter folder into an uncompressed CBZ and
// removes the folder.
func BuildConfig(params ConfigParams) ([]byte, error) {
	lang := params.PreferredLanguage
	if lang == "" {
		lang = "en"
	}

	postprocessors := []map[string]any{
		{
			"name":        "zip",
			"compression": "store",
			"extension":   "cbz",
			"keep-files":  false,
			"mode":        "safe",
		},
	}

	extractorSection := map[string]any{
		"base-directory": ".",
		"directory":      []string{"Ch.{chapter!S}"},
		"filename":       "{page:>03}.{extension}",
		"lang":           lang,
		"postprocessors": postprocessors,
	}

	for site, rule := range siteRules() {
		stanza := map[string]any{
			"directory": rule.Directory,
			"filename":  rule.Filename,
			"lang":      lang,
		}
		if params.Username != "" {
			stanza["username"] = params.Username
		}
		if params.Password != "" {
			stanza["password"] = params.Password
		}

		extractorSection[site] = stanza
	}

	config := map[string]any{
		"extractor": extractorSection,
	}

	// Maps marshal with sorted keys, which is what makes this deterministic.
	buffer := &bytes.Buffer{}
	enc := json.NewEncoder(buffer)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(config); err != nil {
		return nil, fmt.Errorf("extractor: render config: %w", err)
	}

	return buffer.Bytes(), nil
}

// WriteConfig materializes the configuration into dir and returns its path.
func WriteConfig(fs afero.Fs, dir string, params ConfigParams) (string, error) {
	data, err := BuildConfig(params)
	if err != nil {
		return "", err
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("extractor: create config dir: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return "", fmt.Errorf("extractor: write config: %w", err)
	}

	return path, nil
}
