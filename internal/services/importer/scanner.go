// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/audiobrr/pkg/fuzzcmp"
	"github.com/autobrr/audiobrr/pkg/natsort"
)

// singleFileExtensions are containers that usually hold a whole book.
var singleFileExtensions = map[string]struct{}{".m4b": {}, ".m4a": {}}

var audioExtensions = map[string]struct{}{
	".m4b": {}, ".mp3": {}, ".m4a": {}, ".flac": {},
	".wav": {}, ".ogg": {}, ".opus": {}, ".aac": {}, ".wma": {},
}

var (
	partDirRe = regexp.MustCompile(`(?i)^(cd|part|disc|volume|pt|level|buch)\.?\s*\d+$`)
	// fileMarkerRe flags per-part file names: "Chapter 12", "CD 3", or a bare
	// trailing number.
	fileMarkerRe = regexp.MustCompile(`(?i)\b(part|pt|disc|cd|volume|vol|v|chp|chapter|level|buch)\.?\s*\d+\b|[\s\-\.]\d+$`)
	nonLetterRe  = regexp.MustCompile(`[^a-z]`)
)

const (
	garbageGroup = "garbage_bin"
	miscGroup    = "misc_pile"
)

// BookUnit is one detected book on disk. Path is a file, a directory of
// parts, or a "|"-joined list of loose files forming one book.
type BookUnit struct {
	Path     string
	Author   string
	Title    string
	Language string
}

// FindBookUnits walks root and groups the audio files it finds into book
// units. Directory trees claimed as a unit are not descended into.
func FindBookUnits(root string) []BookUnit {
	var units []BookUnit

	_ = filepath.WalkDir(root, func(dirpath string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", dirpath).Msg("[IMPORT] scan skipping unreadable entry")
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		entries, err := os.ReadDir(dirpath)
		if err != nil {
			return nil
		}

		var subdirs, audio []string
		for _, e := range entries {
			if e.IsDir() {
				subdirs = append(subdirs, e.Name())
				continue
			}
			if _, ok := audioExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
				audio = append(audio, e.Name())
			}
		}

		// A folder whose subdirectories are mostly CD1/Disc 2 style is one
		// book split across part folders; claim the whole tree.
		if len(subdirs) > 0 {
			var partDirs int
			for _, sd := range subdirs {
				if partDirRe.MatchString(sd) {
					partDirs++
				}
			}
			if partDirs > 0 && partDirs*2 >= len(subdirs) {
				units = append(units, unitFromPath(dirpath, root, false))
				return fs.SkipDir
			}
		}

		if len(audio) == 0 {
			return nil
		}
		natsort.Strings(audio)

		// Full master books: m4b/m4a files without part markers stand alone.
		masterKeys := make(map[string]struct{})
		inMaster := make(map[string]struct{})
		for _, f := range audio {
			base := strings.TrimSuffix(f, filepath.Ext(f))
			if _, single := singleFileExtensions[strings.ToLower(filepath.Ext(f))]; !single {
				continue
			}
			if fileMarkerRe.MatchString(base) {
				continue
			}
			units = append(units, unitFromPath(filepath.Join(dirpath, f), root, true))
			inMaster[f] = struct{}{}
			key := groupKey(f)
			if len(key) > 8 {
				key = key[:8]
			}
			masterKeys[key] = struct{}{}
		}

		var remaining []string
		for _, f := range audio {
			if _, ok := inMaster[f]; !ok {
				remaining = append(remaining, f)
			}
		}
		if len(remaining) == 0 {
			return nil
		}

		// Group loose files by normalized prefix so interleaved books in the
		// same folder separate cleanly.
		groups := make(map[string][]string)
		var order []string
		for _, f := range remaining {
			key := garbageGroup
			if !looksLikeGarbage(f) {
				key = groupKey(f)
				if key == "" {
					key = miscGroup
				}
			}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], f)
		}

		for _, key := range order {
			files := groups[key]

			isCollection := false
			if len(files) > 1 {
				var marked int
				for _, f := range files {
					if fileMarkerRe.MatchString(strings.TrimSuffix(f, filepath.Ext(f))) {
						marked++
					}
				}
				switch {
				case key == garbageGroup:
					isCollection = true
				case float64(marked)/float64(len(files)) > 0.4:
					isCollection = true
				case fuzzcmp.Ratio(files[0], files[len(files)-1]) > 60:
					isCollection = true
				}
			}

			// Loose copies of a book that already has a master version in the
			// same folder are redundant.
			if isCollection && len(masterKeys) > 0 {
				prefix := key
				if len(prefix) > 8 {
					prefix = prefix[:8]
				}
				if _, redundant := masterKeys[prefix]; redundant {
					log.Debug().Str("prefix", key).Msg("[IMPORT] dropping loose files shadowed by master")
					continue
				}
			}

			// A single collection with no masters owns the folder itself.
			if isCollection && len(groups) == 1 && len(masterKeys) == 0 {
				units = append(units, unitFromPath(dirpath, root, false))
				return fs.SkipDir
			}

			if isCollection {
				joined := make([]string, len(files))
				for i, f := range files {
					joined[i] = filepath.Join(dirpath, f)
				}
				unit := unitFromPath(joined[0], root, true)
				unit.Path = strings.Join(joined, "|")
				units = append(units, unit)
				continue
			}

			for _, f := range files {
				units = append(units, unitFromPath(filepath.Join(dirpath, f), root, true))
			}
		}
		return nil
	})

	return units
}

// groupKey is the first 12 letters of the cleaned name, everything else
// stripped, so numbering and separators never split a book apart.
func groupKey(name string) string {
	key := nonLetterRe.ReplaceAllString(strings.ToLower(cleanString(name)), "")
	if len(key) > 12 {
		key = key[:12]
	}
	return key
}

// unitFromPath builds a unit with author/title/language guessed from the
// path. Files fall back to parent and grandparent folder names when their own
// basename carries no usable title.
func unitFromPath(path, root string, isFile bool) BookUnit {
	first := strings.SplitN(path, "|", 2)[0]
	rel, err := filepath.Rel(root, first)
	if err != nil {
		rel = first
	}
	parts := strings.Split(rel, string(os.PathSeparator))

	name := filepath.Base(first)
	if isFile {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	lang := detectLanguage(name)
	if lang == "" && len(parts) >= 2 {
		lang = detectLanguage(parts[len(parts)-2])
	}

	author, title := parseName(name)

	if isFile {
		clean := cleanString(title)
		if looksLikeGarbage(name) || clean == "" || allDigitsRe.MatchString(clean) || len(clean) < 3 {
			title = ""
		}
	}

	if (author == "" || title == "") && len(parts) >= 2 {
		pAuthor, pTitle := parseName(parts[len(parts)-2])

		if isFile {
			if len(parts) >= 3 {
				// Author/Title/File layout: grandparent names the author.
				gpAuthor, _ := parseName(parts[len(parts)-3])
				if gpAuthor != "" {
					author = gpAuthor
				} else if author == "" {
					author = parts[len(parts)-3]
				}
				if title == "" {
					title = pTitle
					if title == "" {
						title = parts[len(parts)-2]
					}
				}
			} else {
				if pAuthor != "" && author == "" {
					author = pAuthor
				}
				if title == "" {
					title = pTitle
					if title == "" {
						title = parts[len(parts)-2]
					}
				}
			}
		} else if author == "" {
			author = pAuthor
			if author == "" {
				author = parts[len(parts)-2]
			}
		}
	}

	return BookUnit{Path: path, Author: author, Title: title, Language: lang}
}
