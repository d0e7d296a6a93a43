// Package testutil provides shared test helpers for setting up data roots
// and resource stores.
package testutil

import (
	"testing"
	"time"

	"github.com/oakheim/inkwell/internal/storage"
	"github.com/oakheim/inkwell/internal/store"
)

// TestFS creates a temporary data root with a document store.
func TestFS(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// Env bundles the storage primitives and resource stores over one temporary
// data root.
type Env struct {
	FS        *storage.FS
	Layout    storage.Layout
	Locks     *storage.KeyedLock
	Index     *store.Index
	Notebooks *store.NotebookStore
	Pages     *store.PageStore
	Strokes   *store.StrokeStore
}

// TestEnv creates an Env rooted at a temporary directory.
func TestEnv(t *testing.T) *Env {
	t.Helper()
	fs := TestFS(t)
	locks := storage.NewKeyedLock()
	index := store.NewIndex(fs)
	return &Env{
		FS:        fs,
		Locks:     locks,
		Index:     index,
		Notebooks: store.NewNotebookStore(fs, locks, index, nil),
		Pages:     store.NewPageStore(fs, locks, index, nil),
		Strokes:   store.NewStrokeStore(fs, locks, index, nil),
	}
}

// WaitFor polls cond until it returns true or the timeout expires.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
