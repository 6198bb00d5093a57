// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package query parses the comma-separated list parameters accepted by the
catalog API surface (language filters and the like).
*/
package query

import (
	"strings"

	"github.com/08shiro80/komga-enhanced-sub000/pkg/langutil"
)

// CSV splits a comma-separated parameter into trimmed, non-empty entries.
func CSV(val string) []string {
	if val == "" {
		return nil
	}

	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.TrimSpace(v)
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}

// Langs splits a comma-separated language parameter and normalizes every
// entry to its base subtag ("en-US" becomes "en"). Entries that normalize
// to nothing are dropped; duplicates after normalization are collapsed.
func Langs(val string) []string {
	var res []string
	seen := map[string]struct{}{}

	for _, entry := range CSV(val) {
		code := langutil.Base(entry)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		res = append(res, code)
	}

	return res
}
