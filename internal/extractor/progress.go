// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// progressPattern matches the extractor's transfer lines, e.g.
	// "  42% 1.2 MB 350.1 kB/s": a percentage, a byte figure, a rate.
	progressPattern = regexp.MustCompile(`(\d{1,3})%.*B.*B/s`)

	// downloadedFilePattern matches lines naming a written page file, which
	// is how completed files are counted when the extractor reports no
	// totals.
	downloadedFilePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif|avif)$`)
)

// parseProgressPercent extracts the percentage from a transfer line.
func parseProgressPercent(line string) (int, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}

	percent, err := strconv.Atoi(match[1])
	if err != nil || percent > 100 {
		return 0, false
	}

	return percent, true
}

// isDownloadedFileLine reports whether a stdout line marks a completed file.
func isDownloadedFileLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}

	return downloadedFilePattern.MatchString(trimmed)
}
