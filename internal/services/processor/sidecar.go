// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/autobrr/audiobrr/internal/domain"
)

// MetadataFileName is the Audiobookshelf-compatible sidecar the scanner and
// reconciler key on.
const MetadataFileName = "metadata.json"

// sidecarMetadata is the metadata.json wire format.
type sidecarMetadata struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Narrators     []string `json:"narrators"`
	Series        []string `json:"series,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	PublishedYear string   `json:"publishedYear,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	Description   string   `json:"description,omitempty"`
	ASIN          string   `json:"asin"`
	Language      string   `json:"language,omitempty"`
}

// WriteMetadataJSON writes the metadata.json sidecar, pretty-printed so it
// stays hand-editable.
func WriteMetadataJSON(book *domain.Book, dir string) error {
	meta := sidecarMetadata{
		Title:       book.Title,
		Subtitle:    book.Subtitle,
		Authors:     book.Authors,
		Narrators:   book.Narrators,
		Series:      seriesList(book),
		Genres:      book.Genres,
		Publisher:   book.Publisher,
		Description: book.Description,
		ASIN:        book.ASIN,
		Language:    book.Language,
	}
	if book.ReleaseDate != nil && !book.ReleaseDate.IsZero() {
		meta.PublishedYear = book.ReleaseDate.Format("2006")
		meta.PublishedDate = book.ReleaseDate.Format("2006-01-02")
	}

	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, MetadataFileName), append(data, '\n'), 0o644)
}

// seriesList renders series entries with the index folded into the first.
func seriesList(book *domain.Book) []string {
	if len(book.Series) == 0 {
		return nil
	}
	out := make([]string, len(book.Series))
	copy(out, book.Series)
	if display := book.SeriesDisplay(); display != "" {
		out[0] = display
	}
	return out
}

// WriteMetadataOPF writes a minimal EPUB-2 OPF so readers that ignore
// metadata.json still pick up the book's identity.
func WriteMetadataOPF(book *domain.Book, dir string) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">` + "\n")
	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">` + "\n")

	writeElem(&b, "dc:title", book.Title, nil)
	for _, author := range book.Authors {
		writeElem(&b, "dc:creator", author, map[string]string{
			"opf:role":    "aut",
			"opf:file-as": fileAs(author),
		})
	}
	for _, narrator := range book.Narrators {
		writeElem(&b, "dc:contributor", narrator, map[string]string{"opf:role": "nrt"})
	}
	if book.Description != "" {
		writeElem(&b, "dc:description", book.Description, nil)
	}
	writeElem(&b, "dc:format", "Audiobook", nil)
	if book.Language != "" {
		writeElem(&b, "dc:language", book.Language, nil)
	}
	if book.ReleaseDate != nil && !book.ReleaseDate.IsZero() {
		writeElem(&b, "dc:date", book.ReleaseDate.Format("2006-01-02"), nil)
	}
	writeElem(&b, "dc:identifier", book.ASIN, map[string]string{
		"id":         "bookid",
		"opf:scheme": "ASIN",
	})
	if len(book.Series) > 0 {
		name := strings.TrimSpace(strings.SplitN(book.Series[0], " #", 2)[0])
		b.WriteString(`    <meta name="calibre:series" content="` + escapeAttr(name) + `"/>` + "\n")
		if book.SeriesIndex != "" {
			b.WriteString(`    <meta name="calibre:series_index" content="` + escapeAttr(book.SeriesIndex) + `"/>` + "\n")
		}
	}

	b.WriteString("  </metadata>\n")
	b.WriteString("  <manifest>\n")
	b.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
	b.WriteString(`    <item id="dummy" href="dummy.html" media-type="application/xhtml+xml"/>` + "\n")
	b.WriteString("  </manifest>\n")
	b.WriteString(`  <spine toc="ncx">` + "\n")
	b.WriteString(`    <itemref idref="dummy"/>` + "\n")
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")

	return os.WriteFile(filepath.Join(dir, "metadata.opf"), []byte(b.String()), 0o644)
}

func writeElem(b *strings.Builder, tag, text string, attrs map[string]string) {
	b.WriteString("    <" + tag)
	// Stable order keeps the output diffable.
	for _, key := range []string{"id", "opf:role", "opf:file-as", "opf:scheme"} {
		if v, ok := attrs[key]; ok {
			b.WriteString(` ` + key + `="` + escapeAttr(v) + `"`)
		}
	}
	b.WriteString(">" + escapeText(text) + "</" + tag + ">\n")
}

// fileAs renders "Last, First" for OPF sorting.
func fileAs(name string) string {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) < 2 {
		return name
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

func escapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}

// FindByASIN walks root for the folder whose metadata.json carries asin.
func FindByASIN(root, asin string) (string, bool) {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != MetadataFileName {
			return nil
		}
		if sidecarASIN(path) == asin {
			found = filepath.Dir(path)
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

// MapByASIN indexes every metadata.json under root by its ASIN.
func MapByASIN(root string) map[string]string {
	out := make(map[string]string)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != MetadataFileName {
			return nil
		}
		if asin := sidecarASIN(path); asin != "" {
			if _, dup := out[asin]; !dup {
				out[asin] = filepath.Dir(path)
			}
		}
		return nil
	})
	return out
}

func sidecarASIN(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var meta struct {
		ASIN string `json:"asin"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.ASIN
}
