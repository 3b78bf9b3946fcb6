// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package processor turns a finished download into a library entry: organize
// the audio files under the configured pattern, write the metadata sidecars,
// fetch the cover, and mark the book downloaded.
package processor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/internal/domain"
	"github.com/autobrr/audiobrr/internal/models"
	"github.com/autobrr/audiobrr/pkg/natsort"
	"github.com/autobrr/audiobrr/pkg/pathutil"
)

// Progress checkpoints. The monitor owns 0.0-0.9; the processor crawls the
// rest so the UI can show import phases.
const (
	progressOrganizing = 0.90
	progressOrganized  = 0.92
	progressMetadata   = 0.95
	progressCover      = 0.98
	progressDone       = 1.0
)

type Service struct {
	requests   *models.RequestStore
	books      *models.BookStore
	settings   *models.SettingsStore
	httpClient *http.Client
}

type Option func(*Service)

// WithHTTPClient replaces the cover download client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

func NewService(requests *models.RequestStore, books *models.BookStore, settings *models.SettingsStore, opts ...Option) *Service {
	s := &Service{
		requests:   requests,
		books:      books,
		settings:   settings,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process imports one finished download. downloadPath is a directory, a
// single file, or a "|"-joined file list. Phase boundaries are commit
// points; an error aborts the remaining phases and leaves partial output in
// place for inspection.
func (s *Service) Process(ctx context.Context, r *domain.Request, downloadPath string, deleteSource bool) error {
	book, err := s.books.Get(ctx, r.ASIN)
	if err != nil {
		return fmt.Errorf("book lookup failed: %w", err)
	}

	media := s.settings.GetMediaSettings(ctx)
	if err := media.Validate(); err != nil {
		return err
	}

	destDir, err := BookFolder(media, book)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	if err := s.setPhase(ctx, r, domain.StatusOrganizingFiles, progressOrganizing); err != nil {
		return err
	}

	sources, err := collectAudioFiles(downloadPath)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no audio files found in %s", downloadPath)
	}

	action := s.settings.GetQbitSettings(ctx).CompleteAction
	if deleteSource {
		action = models.CompleteActionMove
	}

	log.Info().Str("asin", book.ASIN).Str("dest", destDir).
		Int("files", len(sources)).Str("action", action).
		Msg("[PROCESS] organizing files")

	for i, src := range sources {
		part := partLabel(i+1, len(sources))
		dst := filepath.Join(destDir, fileName(media.FilePattern, book, part, filepath.Ext(src)))
		if err := transferFile(action, src, dst); err != nil {
			return err
		}
		if err := s.setProgress(ctx, r, organizeProgress(i+1, len(sources))); err != nil {
			return err
		}
	}
	if deleteSource {
		cleanupSource(downloadPath)
	}

	if err := s.books.SetDownloaded(ctx, book.ASIN, true); err != nil {
		return err
	}
	if err := s.setPhase(ctx, r, domain.StatusGeneratingMetadata, progressOrganized); err != nil {
		return err
	}

	if err := WriteMetadataJSON(book, destDir); err != nil {
		return err
	}
	if err := WriteMetadataOPF(book, destDir); err != nil {
		return err
	}
	if err := s.setProgress(ctx, r, progressMetadata); err != nil {
		return err
	}

	if isRemoteURL(book.CoverURL) {
		if err := s.setPhase(ctx, r, domain.StatusSavingCover, progressMetadata); err != nil {
			return err
		}
		if err := s.saveCover(ctx, book, destDir); err != nil {
			return err
		}
		if err := s.setProgress(ctx, r, progressCover); err != nil {
			return err
		}
	}

	if err := s.requests.SetStatus(ctx, r.ID, domain.StatusCompleted); err != nil {
		return err
	}
	if err := s.setProgress(ctx, r, progressDone); err != nil {
		return err
	}

	log.Info().Str("asin", book.ASIN).Str("title", book.Title).
		Msg("[PROCESS] import complete")
	return nil
}

// organizeProgress interpolates within the organizing window by the
// fraction of files transferred, so a 40-part book does not sit at 0.90
// for the whole phase.
func organizeProgress(done, total int) float64 {
	if total <= 0 {
		return progressOrganized
	}
	return progressOrganizing + (progressOrganized-progressOrganizing)*float64(done)/float64(total)
}

func (s *Service) setPhase(ctx context.Context, r *domain.Request, status domain.ProcessingStatus, progress float64) error {
	if err := s.requests.SetStatus(ctx, r.ID, status); err != nil {
		return err
	}
	return s.setProgress(ctx, r, progress)
}

func (s *Service) setProgress(ctx context.Context, r *domain.Request, progress float64) error {
	return s.requests.SetDownloadProgress(ctx, r.ID, progress, r.DownloadState)
}

// BookFolder resolves the destination directory for a book. The result is
// guaranteed to sit under the library root.
func BookFolder(media models.MediaSettings, book *domain.Book) (string, error) {
	rel := renderPattern(media.FolderPattern, book, "")

	series := book.SeriesDisplay()
	if media.UseSeriesFolders && series != "" && !strings.Contains(media.FolderPattern, "{series}") {
		rel = filepath.Join(
			pathutil.SanitizePathSegment(book.FirstAuthor()),
			pathutil.SanitizePathSegment(series),
			pathutil.SanitizePathSegment(book.Title),
		)
	}

	rel = strings.TrimLeft(strings.TrimSpace(rel), string(os.PathSeparator))
	dest := filepath.Join(media.LibraryPath, rel)

	check, err := filepath.Rel(media.LibraryPath, dest)
	if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("destination %q escapes the library root: %w", rel, domain.ErrValidation)
	}
	return dest, nil
}

// fileName renders one part's file name from the pattern. When the pattern
// has no {part} placeholder and the book has multiple parts, the label is
// appended before the extension.
func fileName(pattern string, book *domain.Book, part, ext string) string {
	name := strings.TrimSpace(renderPattern(pattern, book, part))
	name = strings.TrimRight(name, " -._")
	if name == "" {
		name = pathutil.SanitizePathSegment(book.Title)
	}
	if part != "" && !strings.Contains(pattern, "{part}") {
		name += " - " + part
	}
	return name + strings.ToLower(ext)
}

// renderPattern interpolates the {author} {title} {year} {asin} {series}
// {series_index} {part} placeholders with sanitized values.
func renderPattern(pattern string, book *domain.Book, part string) string {
	series := book.SeriesDisplay()
	if series == "" {
		series = "No Series"
	}
	return strings.NewReplacer(
		"{author}", pathutil.SanitizePathSegment(book.FirstAuthor()),
		"{title}", pathutil.SanitizePathSegment(book.Title),
		"{year}", book.ReleaseYear(),
		"{asin}", book.ASIN,
		"{series}", pathutil.SanitizePathSegment(series),
		"{series_index}", pathutil.SanitizePathSegment(book.SeriesIndex),
		"{part}", part,
	).Replace(pattern)
}

// partLabel returns "" for single-file books, else "Part NN" zero-padded to
// the width of the part count.
func partLabel(i, n int) string {
	if n <= 1 {
		return ""
	}
	width := len(fmt.Sprint(n))
	return fmt.Sprintf("Part %0*d", width, i)
}

// collectAudioFiles expands the download path into a natural-sorted list of
// audio files. Directories are walked recursively.
func collectAudioFiles(downloadPath string) ([]string, error) {
	var candidates []string
	if strings.Contains(downloadPath, "|") {
		candidates = strings.Split(downloadPath, "|")
	} else {
		candidates = []string{downloadPath}
	}

	var files []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		info, err := os.Stat(c)
		if err != nil {
			return nil, fmt.Errorf("download path unavailable: %w", err)
		}
		if !info.IsDir() {
			if isAudioFile(c) {
				files = append(files, c)
			}
			continue
		}
		err = filepath.WalkDir(c, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isAudioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", c, err)
		}
	}

	natsort.Strings(files)
	return files, nil
}

func isRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// saveCover downloads the cover next to the audio files. The extension
// follows the URL, defaulting to .jpg.
func (s *Service) saveCover(ctx context.Context, book *domain.Book, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, book.CoverURL, nil)
	if err != nil {
		return fmt.Errorf("bad cover URL: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cover download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	dst, err := os.Create(filepath.Join(destDir, "cover"+coverExt(book.CoverURL)))
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	return nil
}

func coverExt(coverURL string) string {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(coverURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return ".jpg"
}
