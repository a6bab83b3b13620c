// Package storetest writes configuration documents for tests.
package storetest

import (
	"os"
	"path/filepath"
	"testing"

	"configbot/internal/store"
)

// Open writes docs (relative path to body) into a temp dir and opens a store
// over it.
func Open(t testing.TB, docs map[string]string, opts ...store.Option) *store.Store {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	st, err := store.Open(dir, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}
