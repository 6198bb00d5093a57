// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package cbz post-processes the chapter archives produced by the extractor.

Its single job is metadata injection: rewriting a finished CBZ so that a
ComicInfo.xml entry sits at the front of the archive. Page entries are
carried over with their raw compressed bytes, so repeated injection never
degrades or alters the images.
*/
package cbz

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ComicInfoEntryName is the archive entry consumed by downstream readers.
const ComicInfoEntryName = "ComicInfo.xml"

// tempSuffix marks the sibling file used during a rewrite.
const tempSuffix = ".tmp"

// InjectComicInfo rewrites the archive at cbzPath so a ComicInfo.xml entry
// with the supplied bytes exists at the front. A pre-existing ComicInfo.xml
// entry is dropped; every other entry is copied raw.
//
// The rewrite goes through a sibling temp file and an atomic rename. On any
// failure the temp file is removed and the original archive is untouched.
func InjectComicInfo(fs afero.Fs, cbzPath string, comicInfoXML []byte) error {
	source, err := fs.Open(cbzPath)
	if err != nil {
		return fmt.Errorf("cbz: open archive: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("cbz: stat archive: %w", err)
	}

	reader, err := zip.NewReader(source, info.Size())
	if err != nil {
		return fmt.Errorf("cbz: read archive %s: %w", filepath.Base(cbzPath), err)
	}

	tempPath := cbzPath + tempSuffix
	temp, err := fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("cbz: create temp archive: %w", err)
	}

	writeErr := writeInjected(reader, temp, comicInfoXML)
	closeErr := temp.Close()

	if writeErr != nil || closeErr != nil {
		fs.Remove(tempPath) //nolint:errcheck
		if writeErr != nil {
			return fmt.Errorf("cbz: rewrite archive: %w", writeErr)
		}
		return fmt.Errorf("cbz: flush temp archive: %w", closeErr)
	}

	// The reader holds the source open; release it before the rename so
	// platforms with mandatory locking allow the replacement.
	source.Close()

	if err := fs.Rename(tempPath, cbzPath); err != nil {
		fs.Remove(tempPath) //nolint:errcheck
		return fmt.Errorf("cbz: replace archive: %w", err)
	}

	return nil
}

// writeInjected streams the new archive: metadata entry first, then every
// original entry except a previous metadata file, copied without
// recompression.
func writeInjected(reader *zip.Reader, out io.Writer, comicInfoXML []byte) error {
	zw := zip.NewWriter(out)

	header, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ComicInfoEntryName,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	if _, err := header.Write(comicInfoXML); err != nil {
		return err
	}

	for _, file := range reader.File {
		if file.Name == ComicInfoEntryName {
			continue
		}
		if err := zw.Copy(file); err != nil {
			return err
		}
	}

	return zw.Close()
}

// ReadComicInfo returns the bytes of the archive's metadata entry, or nil
// when the archive carries none.
func ReadComicInfo(fs afero.Fs, cbzPath string) ([]byte, error) {
	source, err := fs.Open(cbzPath)
	if err != nil {
		return nil, fmt.Errorf("cbz: open archive: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return nil, fmt.Errorf("cbz: stat archive: %w", err)
	}

	reader, err := zip.NewReader(source, info.Size())
	if err != nil {
		return nil, fmt.Errorf("cbz: read archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != ComicInfoEntryName {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		return io.ReadAll(rc)
	}

	return nil, nil
}

// ListArchives returns the .cbz files directly inside dir, sorted by name.
func ListArchives(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("cbz: list %s: %w", dir, err)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".cbz") {
			archives = append(archives, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(archives)
	return archives, nil
}

// FindMostRecent returns the most recently modified archive in dir, or the
// empty string when the directory holds none.
func FindMostRecent(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("cbz: list %s: %w", dir, err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".cbz") {
			continue
		}
		if best == "" || entry.ModTime().After(bestTime) {
			best = filepath.Join(dir, entry.Name())
			bestTime = entry.ModTime()
		}
	}

	return best, nil
}
