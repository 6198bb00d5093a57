// Copyright (c) 2026 Komga Enhanced. All rights reserved.

// Package fsname derives safe folder names from arbitrary Unicode titles.
//
// # Usage
//
// Series folders are named after manga titles (e.g., "Solo Leveling"), which
// routinely contain characters that are reserved on at least one of the file
// systems Komga runs on. This package strips those while keeping the title
// readable; it never transliterates, so CJK titles survive intact.
package fsname

import (
	"regexp"
	"strings"
)

var (
	// illegalChars matches every character reserved by Windows, macOS or
	// Linux file systems for path syntax.
	illegalChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	// multiSpace collapses runs of whitespace into a single space.
	multiSpace = regexp.MustCompile(`\s+`)
)

// SanitizeFolderName converts an arbitrary Unicode title into a safe folder name.
//
// # Transformation Pipeline
//
// 1. Replaces file-system reserved characters with spaces.
// 2. Collapses consecutive whitespace into a single space.
// 3. Trims leading and trailing whitespace.
// 4. Maps an empty result to "Unknown" so a path segment is never empty.
//
// The function is idempotent: applying it to its own output is a no-op.
func SanitizeFolderName(name string) string {
	// 1. Replace reserved characters
	result := illegalChars.ReplaceAllString(name, " ")

	// 2. Collapse whitespace left behind by the replacement
	result = multiSpace.ReplaceAllString(result, " ")

	// 3. Trim
	result = strings.TrimSpace(result)

	// 4. A path segment must never be empty
	if result == "" {
		return "Unknown"
	}

	return result
}
