// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package fsname_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/08shiro80/komga-enhanced-sub000/pkg/fsname"
)

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain title unchanged",
			input: "Solo Leveling",
			want:  "Solo Leveling",
		},
		{
			name:  "colon replaced with space",
			input: "Re:Zero",
			want:  "Re Zero",
		},
		{
			name:  "every reserved character replaced",
			input: `a\b/c:d*e?f"g<h>i|j`,
			want:  "a b c d e f g h i j",
		},
		{
			name:  "adjacent reserved characters collapse to one space",
			input: "Fate/Grand:Order???",
			want:  "Fate Grand Order",
		},
		{
			name:  "interior whitespace runs collapse",
			input: "The   Promised \t Neverland",
			want:  "The Promised Neverland",
		},
		{
			name:  "leading and trailing whitespace trimmed",
			input: "  Berserk  ",
			want:  "Berserk",
		},
		{
			name:  "empty input maps to Unknown",
			input: "",
			want:  "Unknown",
		},
		{
			name:  "reserved-only input maps to Unknown",
			input: `\\//::**`,
			want:  "Unknown",
		},
		{
			name:  "unicode title survives",
			input: "進撃の巨人",
			want:  "進撃の巨人",
		},
		{
			name:  "mixed unicode with reserved characters",
			input: "東京喰種:re",
			want:  "東京喰種 re",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fsname.SanitizeFolderName(tt.input))
		})
	}
}

func TestSanitizeFolderNameIdempotent(t *testing.T) {
	inputs := []string{
		"Solo Leveling",
		"Re:Zero",
		`a\b/c:d*e?f"g<h>i|j`,
		"  spaced   out  ",
		"",
		`\\//`,
		"進撃の巨人",
	}

	for _, input := range inputs {
		once := fsname.SanitizeFolderName(input)
		twice := fsname.SanitizeFolderName(once)
		assert.Equal(t, once, twice, "sanitizing twice must equal sanitizing once for %q", input)
	}
}
