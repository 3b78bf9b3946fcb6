// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/pkg/natsort"
)

// Reorganize re-applies the current naming settings to an already-imported
// book: files are renamed to the canonical pattern and the folder is moved
// when the pattern now resolves elsewhere. Returns the book's folder after
// the move.
func (s *Service) Reorganize(ctx context.Context, asin string) (string, error) {
	book, err := s.books.Get(ctx, asin)
	if err != nil {
		return "", fmt.Errorf("book lookup failed: %w", err)
	}

	media := s.settings.GetMediaSettings(ctx)
	if err := media.Validate(); err != nil {
		return "", err
	}

	current, ok := FindByASIN(media.LibraryPath, asin)
	if !ok {
		return "", fmt.Errorf("book %s not found in library: %w", asin, domain.ErrNotFound)
	}

	dest, err := BookFolder(media, book)
	if err != nil {
		return "", err
	}

	if err := s.renameParts(current, media.FilePattern, book); err != nil {
		return "", err
	}

	if samePath(current, dest) {
		return current, nil
	}

	log.Info().Str("asin", asin).Str("from", current).Str("to", dest).
		Msg("[PROCESS] relocating book folder")

	if err := moveDir(current, dest); err != nil {
		return "", err
	}
	removeEmptyDirs(filepath.Dir(current))
	return dest, nil
}

// renameParts renames the folder's audio files to the canonical pattern,
// keeping their natural order so part numbering is stable.
func (s *Service) renameParts(dir, pattern string, book *domain.Book) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var audio []string
	for _, e := range entries {
		if !e.IsDir() && isAudioFile(e.Name()) {
			audio = append(audio, e.Name())
		}
	}
	natsort.Strings(audio)

	for i, name := range audio {
		part := partLabel(i+1, len(audio))
		want := fileName(pattern, book, part, filepath.Ext(name))
		if name == want {
			continue
		}
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, want)); err != nil {
			return fmt.Errorf("failed to rename %s: %w", name, err)
		}
	}
	return nil
}

func samePath(a, b string) bool {
	ca, err1 := filepath.Abs(filepath.Clean(a))
	cb, err2 := filepath.Abs(filepath.Clean(b))
	if err1 != nil || err2 != nil {
		return a == b
	}
	return ca == cb
}

// moveDir renames the whole folder, falling back to per-file moves across
// filesystems. dst must not already contain another book.
func moveDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := moveDir(from, to); err != nil {
				return err
			}
			continue
		}
		if err := moveFile(from, to); err != nil {
			return err
		}
	}
	return os.Remove(src)
}
