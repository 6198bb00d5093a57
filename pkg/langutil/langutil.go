// Copyright (c) 2026 Komga Enhanced. All rights reserved.

// Package langutil normalizes and guesses the language tags attached to
// manga metadata.
//
// # Why a heuristic?
//
// MangaDex labels most entities with BCP-47-ish codes ("en", "ja", "pt-br"),
// but alternative titles frequently arrive untagged. The script of the title
// itself is usually enough to pick the right label, which is what
// [DetectScript] does.
package langutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Normalize returns the canonical lowercase form of a language code.
//
// Registry-valid codes are canonicalized through [language.Parse]
// ("PT_br" becomes "pt-br"); codes the registry rejects are kept verbatim
// apart from case and separator cleanup, since upstreams use a few
// unregistered tags such as "es-la" for Latin-American Spanish.
func Normalize(code string) string {
	cleaned := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "_", "-")))
	if cleaned == "" {
		return ""
	}

	if tag, err := language.Parse(cleaned); err == nil {
		return strings.ToLower(tag.String())
	}

	return cleaned
}

// Base returns the primary language subtag of a code ("pt-br" becomes "pt").
func Base(code string) string {
	normalized := Normalize(code)
	if i := strings.IndexByte(normalized, '-'); i >= 0 {
		return normalized[:i]
	}

	return normalized
}

// Matches reports whether a chapter language satisfies a preferred filter.
//
// Matching is lenient: "pt-br" matches both the exact preference "pt-br" and
// the bare base "pt". An empty preference matches everything.
func Matches(code, preferred string) bool {
	if strings.TrimSpace(preferred) == "" {
		return true
	}

	normalized := Normalize(code)
	want := Normalize(preferred)

	return normalized == want || Base(normalized) == want
}

// DetectScript guesses a language tag from the script of a title.
//
// # Rules
//
// Any kana (Hiragana or Katakana) marks the title Japanese even when Han
// characters are also present, since Japanese prose mixes all three scripts.
// Hangul marks Korean. A title whose only CJK content is Han characters is
// assumed Chinese. Titles without CJK content return the empty string.
func DetectScript(s string) string {
	var hasHan, hasHangul bool

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			return "ja"
		case unicode.Is(unicode.Hangul, r):
			hasHangul = true
		case unicode.Is(unicode.Han, r):
			hasHan = true
		}
	}

	switch {
	case hasHangul:
		return "ko"
	case hasHan:
		return "zh"
	default:
		return ""
	}
}
