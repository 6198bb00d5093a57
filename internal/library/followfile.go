// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// followFileHeader is written when a follow list is created. Two comment
// lines, so a fresh file already demonstrates the comment syntax.
const followFileHeader = "# Followed series for this library, one URL per line.\n" +
	"# Lines starting with '#' are ignored.\n"

// FollowFilePath locates a library's follow list.
func FollowFilePath(root string) string {
	return filepath.Join(root, FollowFileName)
}

// ReadFollowFile returns the raw follow.txt content. A missing file is not
// an error; it reads as empty.
func ReadFollowFile(fs afero.Fs, root string) (string, error) {
	path := FollowFilePath(root)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("library: stat follow file: %w", err)
	}
	if !exists {
		return "", nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("library: read follow file: %w", err)
	}

	return string(data), nil
}

// WriteFollowFile replaces the whole follow.txt. The REST layer edits the
// list read-copy-update style, so a full overwrite is the only writer.
func WriteFollowFile(fs afero.Fs, root, content string) error {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("library: create library root: %w", err)
	}

	if err := afero.WriteFile(fs, FollowFilePath(root), []byte(content), 0o644); err != nil {
		return fmt.Errorf("library: write follow file: %w", err)
	}

	return nil
}

// AppendFollowURL adds one URL to the follow list. A new file receives the
// comment header first; an existing file is patched with a terminating LF
// when its last line is unfinished, so the new URL never glues onto it.
func AppendFollowURL(fs afero.Fs, root, url string) error {
	current, err := ReadFollowFile(fs, root)
	if err != nil {
		return err
	}

	var next strings.Builder
	switch {
	case current == "":
		next.WriteString(followFileHeader)
	default:
		next.WriteString(current)
		if !strings.HasSuffix(current, "\n") {
			next.WriteString("\n")
		}
	}
	next.WriteString(url)
	next.WriteString("\n")

	return WriteFollowFile(fs, root, next.String())
}

// ParseFollowList extracts the followed URLs from raw follow.txt content.
// Blank lines and comment lines (first non-space byte '#') are skipped;
// surviving lines are trimmed.
func ParseFollowList(content string) []string {
	var urls []string

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		urls = append(urls, trimmed)
	}

	return urls
}

// ReadFollowList reads and parses a library's follow list in one step.
func ReadFollowList(fs afero.Fs, root string) ([]string, error) {
	content, err := ReadFollowFile(fs, root)
	if err != nil {
		return nil, err
	}

	return ParseFollowList(content), nil
}
