// Package testutil provides shared test helpers for setting up projects and databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/coreseekdev/textcase/internal/index"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
)

// TestDB creates a temporary SQLite index that is automatically closed.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary project directory with an OS-backed provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestProject initializes a project with root prefix PRJ in store and
// creates the given modules.
func TestProject(t *testing.T, store storage.Provider, modules ...project.Spec) *project.Project {
	t.Helper()
	p, err := project.Init(store, project.Spec{Prefix: "PRJ"})
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	for _, m := range modules {
		if _, err := p.CreateModule(m); err != nil {
			t.Fatalf("create module %s: %v", m.Prefix, err)
		}
	}
	return p
}

// WriteFiles writes path → content pairs into store.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}
