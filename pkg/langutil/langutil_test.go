// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package langutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain code", input: "en", want: "en"},
		{name: "uppercase folded", input: "JA", want: "ja"},
		{name: "underscore separator", input: "pt_BR", want: "pt-br"},
		{name: "regional code", input: "pt-br", want: "pt-br"},
		{name: "surrounding whitespace", input: "  ko ", want: "ko"},
		{name: "empty stays empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, langutil.Normalize(tt.input))
		})
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "pt", langutil.Base("pt-BR"))
	assert.Equal(t, "zh", langutil.Base("zh-hk"))
	assert.Equal(t, "en", langutil.Base("en"))
	assert.Equal(t, "", langutil.Base(""))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		preferred string
		want      bool
	}{
		{name: "exact match", code: "en", preferred: "en", want: true},
		{name: "case-insensitive match", code: "EN", preferred: "en", want: true},
		{name: "regional satisfies base preference", code: "pt-br", preferred: "pt", want: true},
		{name: "regional preference requires exact code", code: "pt", preferred: "pt-br", want: false},
		{name: "different languages do not match", code: "ja", preferred: "en", want: false},
		{name: "empty preference matches everything", code: "ja", preferred: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, langutil.Matches(tt.code, tt.preferred))
		})
	}
}

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "hiragana means japanese", input: "ひとりぼっち", want: "ja"},
		{name: "katakana means japanese", input: "ワンピース", want: "ja"},
		{name: "kanji with kana still japanese", input: "進撃の巨人", want: "ja"},
		{name: "hangul means korean", input: "나 혼자만 레벨업", want: "ko"},
		{name: "han only means chinese", input: "一人之下", want: "zh"},
		{name: "latin text is unknown", input: "Attack on Titan", want: ""},
		{name: "empty is unknown", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, langutil.DetectScript(tt.input))
		})
	}
}
