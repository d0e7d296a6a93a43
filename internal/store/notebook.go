package store

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oakheim/inkwell/internal/apperr"
	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/storage"
)

// NotebookStore provides CRUD and duplication over notebooks.
//
// Structural operations (create, delete, duplicate) run entirely under the
// data-root lock so the directory tree and the page index change in one
// critical section. Metadata updates only lock the notebook's own directory.
type NotebookStore struct {
	fs     *storage.FS
	layout storage.Layout
	locks  *storage.KeyedLock
	index  *Index
	log    *slog.Logger
}

// NewNotebookStore creates a NotebookStore.
func NewNotebookStore(fs *storage.FS, locks *storage.KeyedLock, index *Index, log *slog.Logger) *NotebookStore {
	if log == nil {
		log = slog.Default()
	}
	return &NotebookStore{fs: fs, locks: locks, index: index, log: log}
}

// Create creates the notebook directory, an empty pages subdirectory, and
// the metadata document.
func (s *NotebookStore) Create(title string, settings *models.NotebookSettings) (*models.Notebook, error) {
	now := time.Now().UTC()
	nb := &models.Notebook{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Settings:  settings,
	}
	err := s.locks.WithLock(storage.RootKey, func() error {
		if err := s.fs.EnsureDir(s.layout.PagesDir(nb.ID)); err != nil {
			return err
		}
		return s.fs.WriteJSON(s.layout.NotebookMeta(nb.ID), nb)
	})
	if err != nil {
		return nil, err
	}
	return nb, nil
}

// Get returns a notebook by id, or apperr.ErrNotFound if its metadata is
// absent or corrupt.
func (s *NotebookStore) Get(id string) (*models.Notebook, error) {
	nb, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(id))
	if err != nil {
		return nil, err
	}
	if nb == nil {
		return nil, fmt.Errorf("notebook %s: %w", id, apperr.ErrNotFound)
	}
	return nb, nil
}

// List returns all notebooks, most-recently-updated first. Entries whose
// metadata is absent or corrupt are skipped rather than failing the listing.
func (s *NotebookStore) List() ([]*models.Notebook, error) {
	names, err := s.fs.ListDir(s.layout.NotebooksDir())
	if err != nil {
		return nil, err
	}
	out := make([]*models.Notebook, 0, len(names))
	for _, name := range names {
		nb, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(name))
		if err != nil {
			return nil, err
		}
		if nb == nil {
			s.log.Warn("notebook skipped in listing", slog.String("id", name))
			continue
		}
		out = append(out, nb)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// NotebookUpdate carries the fields a notebook update may change. Nil fields
// are left untouched.
type NotebookUpdate struct {
	Title    *string
	Settings *models.NotebookSettings
}

// Update merges upd into the notebook and refreshes the update timestamp.
func (s *NotebookStore) Update(id string, upd NotebookUpdate) (*models.Notebook, error) {
	var nb *models.Notebook
	err := s.locks.WithLock(s.layout.NotebookDir(id), func() error {
		cur, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(id))
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("notebook %s: %w", id, apperr.ErrNotFound)
		}
		if upd.Title != nil {
			cur.Title = *upd.Title
		}
		if upd.Settings != nil {
			cur.Settings = upd.Settings
		}
		cur.UpdatedAt = time.Now().UTC()
		// No directory creation: a notebook deleted since the read must not
		// be resurrected by the metadata rewrite.
		if err := s.fs.WriteJSONExisting(s.layout.NotebookMeta(id), cur); err != nil {
			return err
		}
		nb = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nb, nil
}

// Delete removes the notebook tree and every child page's index entry.
// Children are collected before the tree is removed and pruned from the
// index afterwards; if the process dies mid-way the leftover index entries
// point at a missing notebook, which lookups already treat as absent.
func (s *NotebookStore) Delete(id string) error {
	return s.locks.WithLock(storage.RootKey, func() error {
		exists, err := s.fs.DirExists(s.layout.NotebookDir(id))
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("notebook %s: %w", id, apperr.ErrNotFound)
		}
		pageIDs, err := s.fs.ListDir(s.layout.PagesDir(id))
		if err != nil {
			return err
		}
		if err := s.fs.RemoveAll(s.layout.NotebookDir(id)); err != nil {
			return err
		}
		idx, err := s.index.Read()
		if err != nil {
			return err
		}
		for _, pageID := range pageIDs {
			delete(idx, pageID)
		}
		return s.index.Write(idx)
	})
}

// Duplicate deep-copies a notebook under a single lock. The copy gets a
// fresh identifier and a "(Copy)" suffixed title; every copied page gets a
// fresh identifier, a renamed directory, rewritten metadata, a cleared
// transcription status, and an index registration. Directory names, in-file
// identifiers, and the index must leave this function in sync.
func (s *NotebookStore) Duplicate(id string) (*models.Notebook, error) {
	var copyNB *models.Notebook
	err := s.locks.WithLock(storage.RootKey, func() error {
		src, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(id))
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("notebook %s: %w", id, apperr.ErrNotFound)
		}

		now := time.Now().UTC()
		nb := *src
		nb.ID = uuid.NewString()
		nb.Title = src.Title + " (Copy)"
		nb.CreatedAt = now
		nb.UpdatedAt = now

		if err := s.fs.CopyDir(s.layout.NotebookDir(id), s.layout.NotebookDir(nb.ID)); err != nil {
			return err
		}
		if err := s.fs.WriteJSON(s.layout.NotebookMeta(nb.ID), &nb); err != nil {
			return err
		}

		oldPageIDs, err := s.fs.ListDir(s.layout.PagesDir(nb.ID))
		if err != nil {
			return err
		}
		idx, err := s.index.Read()
		if err != nil {
			return err
		}
		for _, oldPageID := range oldPageIDs {
			page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(nb.ID, oldPageID))
			if err != nil {
				return err
			}
			if page == nil {
				// Unreadable copied page: drop it so the index
				// invariant (every page directory is indexed) holds.
				s.log.Warn("duplicate: dropping unreadable page copy",
					slog.String("notebook", nb.ID), slog.String("page", oldPageID))
				if err := s.fs.RemoveAll(s.layout.PageDir(nb.ID, oldPageID)); err != nil {
					return err
				}
				continue
			}
			newPageID := uuid.NewString()
			if err := s.fs.Rename(s.layout.PageDir(nb.ID, oldPageID), s.layout.PageDir(nb.ID, newPageID)); err != nil {
				return err
			}
			page.ID = newPageID
			page.NotebookID = nb.ID
			page.CreatedAt = now
			page.UpdatedAt = now
			// A copy must not be mistaken for an already-transcribed
			// original.
			page.Transcription = nil
			if err := s.fs.WriteJSON(s.layout.PageMeta(nb.ID, newPageID), page); err != nil {
				return err
			}
			if exists, err := s.fs.FileExists(s.layout.TranscriptionText(nb.ID, newPageID)); err == nil && exists {
				if err := s.fs.Remove(s.layout.TranscriptionText(nb.ID, newPageID)); err != nil {
					return err
				}
			}
			idx[newPageID] = nb.ID
		}
		if err := s.index.Write(idx); err != nil {
			return err
		}
		copyNB = &nb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copyNB, nil
}
