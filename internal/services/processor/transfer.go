// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/fsutil"
)

// audioExtensions the processor recognizes as book parts.
var audioExtensions = map[string]struct{}{
	".m4b": {}, ".mp3": {}, ".m4a": {}, ".flac": {},
	".wav": {}, ".ogg": {}, ".opus": {}, ".aac": {}, ".wma": {},
}

func isAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// transferFile materializes src at dst using the configured action. A dst
// that already exists with the same size is assumed identical and skipped;
// src == dst is a no-op.
func transferFile(action, src, dst string) error {
	if src == dst {
		return nil
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source file unavailable: %w", err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.Size() == srcInfo.Size() {
		log.Debug().Str("dst", dst).Msg("[PROCESS] destination exists, skipping")
		return nil
	}

	switch action {
	case models.CompleteActionMove:
		return moveFile(src, dst)
	case models.CompleteActionHardlink:
		// Hardlinks cannot span filesystems; copy straight away when the
		// library lives on another device.
		if same, err := fsutil.SameFilesystem(src, filepath.Dir(dst)); err == nil && !same {
			return copyFile(src, dst)
		}
		if err := os.Link(src, dst); err == nil {
			return nil
		}
		return copyFile(src, dst)
	default:
		return copyFile(src, dst)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	// Preserve timestamps like a library manager would; failure is cosmetic.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// cleanupSource removes what is left of a consumed download: empty
// directories after a move, or the listed files' parents. Only empty
// directories are removed.
func cleanupSource(downloadPath string) {
	for _, p := range strings.Split(downloadPath, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
		}
		removeEmptyDirs(dir)
	}
}

// removeEmptyDirs removes dir when it contains nothing but empty
// subdirectories.
func removeEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			removeEmptyDirs(filepath.Join(dir, e.Name()))
		}
	}
	entries, err = os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err == nil {
		log.Debug().Str("dir", dir).Msg("[PROCESS] removed empty source directory")
	}
}
