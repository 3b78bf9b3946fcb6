// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb hands tests pre-migrated sqlite files. The first test in a
// package pays for migrations once; everyone after clones the template.
package testdb

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/autobrr/audiobrr/internal/database"
)

type template struct {
	once sync.Once
	path string
	err  error
}

var (
	mu        sync.Mutex
	templates = map[string]*template{}
)

// PathFromTemplate returns a fresh database file for the test, cloned from
// the migrated template registered under key. Each caller gets its own copy
// in the test's temp dir, so tests stay isolated.
func PathFromTemplate(t *testing.T, key, filename string) string {
	t.Helper()

	tpl := lookup(key)
	tpl.once.Do(func() {
		tpl.path, tpl.err = buildTemplate(key)
	})
	if tpl.err != nil {
		t.Fatalf("build db template %q: %v", key, tpl.err)
	}

	dst := filepath.Join(t.TempDir(), filename)
	if err := cloneDatabase(tpl.path, dst); err != nil {
		t.Fatalf("clone db template %q: %v", key, err)
	}
	return dst
}

func lookup(key string) *template {
	mu.Lock()
	defer mu.Unlock()

	tpl, ok := templates[key]
	if !ok {
		tpl = &template{}
		templates[key] = tpl
	}
	return tpl
}

// buildTemplate opens and closes a database once, running all migrations
// into a temp file that outlives the individual tests.
func buildTemplate(key string) (string, error) {
	dir, err := os.MkdirTemp("", "audiobrr-"+slug(key)+"-")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "template.db")
	db, err := database.New(path)
	if err != nil {
		return "", err
	}
	return path, db.Close()
}

// cloneDatabase copies the main file plus any WAL sidecars left behind.
func cloneDatabase(src, dst string) error {
	if err := copyFile(src, dst, false); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := copyFile(src+suffix, dst+suffix, true); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, optional bool) error {
	in, err := os.Open(src)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// slug keeps temp dir names to portable characters.
func slug(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "testdb"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, key)
}
