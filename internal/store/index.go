// Package store implements the resource stores (notebook, page, stroke) and
// the page index on top of the storage primitives.
package store

import (
	"fmt"

	"github.com/oakheim/inkwell/internal/apperr"
	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/storage"
)

// Index wraps the persisted page → notebook mapping. Reads return the full
// mapping; writes persist the full mapping back. Every mutation must happen
// inside the data-root lock, in the same critical section as the structural
// filesystem change it describes; callers hold that lock, Index does not
// acquire it.
type Index struct {
	fs     *storage.FS
	layout storage.Layout
}

// NewIndex creates an Index backed by fs.
func NewIndex(fs *storage.FS) *Index {
	return &Index{fs: fs}
}

// Read returns the full mapping, or an empty one if the document is absent
// or corrupt.
func (ix *Index) Read() (models.PageIndex, error) {
	m, err := storage.ReadJSON[models.PageIndex](ix.fs, ix.layout.PageIndex())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return models.PageIndex{}, nil
	}
	return *m, nil
}

// Write persists the complete mapping.
func (ix *Index) Write(m models.PageIndex) error {
	return ix.fs.WriteJSON(ix.layout.PageIndex(), m)
}

// Lookup resolves a page's owning notebook in O(1), without scanning
// notebooks. Returns apperr.ErrNotFound for an unknown page.
func (ix *Index) Lookup(pageID string) (string, error) {
	m, err := ix.Read()
	if err != nil {
		return "", err
	}
	notebookID, ok := m[pageID]
	if !ok {
		return "", fmt.Errorf("page %s: %w", pageID, apperr.ErrNotFound)
	}
	return notebookID, nil
}
