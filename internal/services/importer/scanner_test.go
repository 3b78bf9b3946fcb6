// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func unitPaths(units []BookUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Path
	}
	return out
}

func findUnit(t *testing.T, units []BookUnit, pathSuffix string) BookUnit {
	t.Helper()
	for _, u := range units {
		if strings.HasSuffix(strings.SplitN(u.Path, "|", 2)[0], pathSuffix) {
			return u
		}
	}
	t.Fatalf("no unit with path suffix %q in %v", pathSuffix, unitPaths(units))
	return BookUnit{}
}

func TestFindBookUnitsSingleFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Brandon Sanderson - Mistborn.m4b"))
	touch(t, filepath.Join(root, "Frank Herbert - Dune.m4a"))
	touch(t, filepath.Join(root, "notes.txt"))

	units := FindBookUnits(root)
	require.Len(t, units, 2)

	mistborn := findUnit(t, units, "Mistborn.m4b")
	assert.Equal(t, "Brandon Sanderson", mistborn.Author)
	assert.Equal(t, "Mistborn", mistborn.Title)
}

func TestFindBookUnitsFolderOfParts(t *testing.T) {
	root := t.TempDir()
	book := filepath.Join(root, "Stephen King", "The Stand")
	touch(t, filepath.Join(book, "CD1", "track01.mp3"))
	touch(t, filepath.Join(book, "CD2", "track01.mp3"))
	touch(t, filepath.Join(book, "Disc 3", "track01.mp3"))

	units := FindBookUnits(root)
	require.Len(t, units, 1)
	assert.Equal(t, book, units[0].Path)
	assert.Equal(t, "The Stand", units[0].Title)
	assert.Equal(t, "Stephen King", units[0].Author)
}

func TestFindBookUnitsFolderClaim(t *testing.T) {
	root := t.TempDir()
	book := filepath.Join(root, "Ursula K Le Guin", "A Wizard of Earthsea")
	touch(t, filepath.Join(book, "A Wizard of Earthsea Part 1.mp3"))
	touch(t, filepath.Join(book, "A Wizard of Earthsea Part 2.mp3"))
	touch(t, filepath.Join(book, "A Wizard of Earthsea Part 3.mp3"))

	units := FindBookUnits(root)
	require.Len(t, units, 1)
	assert.Equal(t, book, units[0].Path, "a lone collection claims its folder")
	assert.Equal(t, "A Wizard of Earthsea", units[0].Title)
	assert.Equal(t, "Ursula K Le Guin", units[0].Author)
}

func TestFindBookUnitsInterleavedCollections(t *testing.T) {
	root := t.TempDir()
	mixed := filepath.Join(root, "mixed")
	touch(t, filepath.Join(mixed, "Mistborn Part 1.mp3"))
	touch(t, filepath.Join(mixed, "Mistborn Part 2.mp3"))
	touch(t, filepath.Join(mixed, "Elantris Part 1.mp3"))
	touch(t, filepath.Join(mixed, "Elantris Part 2.mp3"))

	units := FindBookUnits(root)
	require.Len(t, units, 2, "two interleaved books separate by prefix")

	mistborn := findUnit(t, units, "Mistborn Part 1.mp3")
	assert.Equal(t,
		filepath.Join(mixed, "Mistborn Part 1.mp3")+"|"+filepath.Join(mixed, "Mistborn Part 2.mp3"),
		mistborn.Path)
}

func TestFindBookUnitsMasterShadowsLooseFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Dune")
	touch(t, filepath.Join(dir, "Dune.m4b"))
	touch(t, filepath.Join(dir, "Dune Part 1.mp3"))
	touch(t, filepath.Join(dir, "Dune Part 2.mp3"))

	units := FindBookUnits(root)
	require.Len(t, units, 1, "loose mp3 copies of the master are redundant")
	assert.True(t, strings.HasSuffix(units[0].Path, "Dune.m4b"))
}

func TestFindBookUnitsGarbageNames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Isaac Asimov - Foundation")
	touch(t, filepath.Join(dir, "MI20D0~1.MP3"))
	touch(t, filepath.Join(dir, "MI20D0~2.MP3"))
	touch(t, filepath.Join(dir, "MI20D0~3.MP3"))

	units := FindBookUnits(root)
	require.Len(t, units, 1)
	assert.Equal(t, dir, units[0].Path, "garbage group claims the folder")
	assert.Equal(t, "Isaac Asimov", units[0].Author, "author falls back to the folder name")
	assert.Equal(t, "Foundation", units[0].Title)
}

func TestFindBookUnitsTitleCascade(t *testing.T) {
	root := t.TempDir()
	// Author/Title/file layout where the file name itself is numbering only.
	touch(t, filepath.Join(root, "Robin Hobb", "Assassins Apprentice", "Assassins Apprentice.m4b"))

	units := FindBookUnits(root)
	require.Len(t, units, 1)
	assert.Equal(t, "Robin Hobb", units[0].Author)
	assert.Equal(t, "Assassins Apprentice", units[0].Title)
}

func TestFindBookUnitsLanguageFromParent(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Hoerbuecher (GER)", "Der Hobbit.m4b"))

	units := FindBookUnits(root)
	require.Len(t, units, 1)
	assert.Equal(t, "de", units[0].Language)
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, groupKey("Mistborn Part 01.mp3"), groupKey("Mistborn Part 02.mp3"))
	assert.NotEqual(t, groupKey("Mistborn Part 01.mp3"), groupKey("Elantris Part 01.mp3"))
}
