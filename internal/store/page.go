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

// PageStore provides CRUD, duplication, and cross-notebook moves for pages.
// Structural operations hold the data-root lock so the page tree and the
// index never diverge; metadata updates lock the page directory only.
type PageStore struct {
	fs     *storage.FS
	layout storage.Layout
	locks  *storage.KeyedLock
	index  *Index
	log    *slog.Logger
}

// NewPageStore creates a PageStore.
func NewPageStore(fs *storage.FS, locks *storage.KeyedLock, index *Index, log *slog.Logger) *PageStore {
	if log == nil {
		log = slog.Default()
	}
	return &PageStore{fs: fs, locks: locks, index: index, log: log}
}

// PageCreate carries the caller-supplied fields for a new page.
type PageCreate struct {
	NotebookID string
	Position   models.Position
	Tags       []string
	Links      []string
}

// Create writes the page metadata and an empty stroke list, then registers
// the page in the index, all in one critical section. The page receives the
// next sequential number in its notebook.
func (s *PageStore) Create(in PageCreate) (*models.Page, error) {
	var page *models.Page
	err := s.locks.WithLock(storage.RootKey, func() error {
		nb, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(in.NotebookID))
		if err != nil {
			return err
		}
		if nb == nil {
			return fmt.Errorf("notebook %s: %w", in.NotebookID, apperr.ErrNotFound)
		}
		existing, err := s.fs.ListDir(s.layout.PagesDir(in.NotebookID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		p := &models.Page{
			ID:         uuid.NewString(),
			NotebookID: in.NotebookID,
			Number:     len(existing) + 1,
			Position:   in.Position,
			Tags:       in.Tags,
			Links:      in.Links,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.fs.WriteJSON(s.layout.PageMeta(in.NotebookID, p.ID), p); err != nil {
			return err
		}
		if err := s.fs.WriteJSON(s.layout.Strokes(in.NotebookID, p.ID), []models.Stroke{}); err != nil {
			return err
		}
		idx, err := s.index.Read()
		if err != nil {
			return err
		}
		idx[p.ID] = in.NotebookID
		if err := s.index.Write(idx); err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Get resolves the owning notebook through the index and reads the page
// document directly, with no directory scanning. A stale index entry pointing at
// a missing page reads as absent.
func (s *PageStore) Get(id string) (*models.Page, error) {
	notebookID, err := s.index.Lookup(id)
	if err != nil {
		return nil, err
	}
	page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, id))
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
	}
	return page, nil
}

// List scans a notebook's pages subdirectory, sorted ascending by page
// number. Absent or corrupt page documents are skipped.
func (s *PageStore) List(notebookID string) ([]*models.Page, error) {
	names, err := s.fs.ListDir(s.layout.PagesDir(notebookID))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Page, 0, len(names))
	for _, name := range names {
		page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, name))
		if err != nil {
			return nil, err
		}
		if page == nil {
			s.log.Warn("page skipped in listing",
				slog.String("notebook", notebookID), slog.String("page", name))
			continue
		}
		out = append(out, page)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// PageUpdate carries the fields a page update may change. Nil fields are
// left untouched.
type PageUpdate struct {
	Position      *models.Position
	Number        *int
	Tags          []string
	Links         []string
	Transcription *models.Transcription
}

// Update merges upd into the page and bumps the update timestamp.
func (s *PageStore) Update(id string, upd PageUpdate) (*models.Page, error) {
	notebookID, err := s.index.Lookup(id)
	if err != nil {
		return nil, err
	}
	var page *models.Page
	err = s.locks.WithLock(s.layout.PageDir(notebookID, id), func() error {
		cur, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, id))
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
		}
		if upd.Position != nil {
			cur.Position = *upd.Position
		}
		if upd.Number != nil {
			cur.Number = *upd.Number
		}
		if upd.Tags != nil {
			cur.Tags = upd.Tags
		}
		if upd.Links != nil {
			cur.Links = upd.Links
		}
		if upd.Transcription != nil {
			cur.Transcription = upd.Transcription
		}
		cur.UpdatedAt = time.Now().UTC()
		// No directory creation: a page deleted since the read must not be
		// resurrected by the metadata rewrite.
		if err := s.fs.WriteJSONExisting(s.layout.PageMeta(notebookID, id), cur); err != nil {
			return err
		}
		page = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// SetTranscription updates only the page's transcription status block.
func (s *PageStore) SetTranscription(id string, t *models.Transcription) error {
	_, err := s.Update(id, PageUpdate{Transcription: t})
	return err
}

// WriteTranscriptionText stores the transcribed content next to the page's
// metadata. The page must still exist; the write never recreates a deleted
// page directory.
func (s *PageStore) WriteTranscriptionText(id, content string) error {
	notebookID, err := s.index.Lookup(id)
	if err != nil {
		return err
	}
	page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, id))
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
	}
	return s.fs.WriteExisting(s.layout.TranscriptionText(notebookID, id), []byte(content))
}

// ReadTranscriptionText returns a page's transcribed content, or
// apperr.ErrNotFound if none has been stored.
func (s *PageStore) ReadTranscriptionText(id string) (string, error) {
	notebookID, err := s.index.Lookup(id)
	if err != nil {
		return "", err
	}
	exists, err := s.fs.FileExists(s.layout.TranscriptionText(notebookID, id))
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("transcription for page %s: %w", id, apperr.ErrNotFound)
	}
	data, err := s.fs.Read(s.layout.TranscriptionText(notebookID, id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Delete removes the page directory and prunes its index entry.
func (s *PageStore) Delete(id string) error {
	return s.locks.WithLock(storage.RootKey, func() error {
		idx, err := s.index.Read()
		if err != nil {
			return err
		}
		notebookID, ok := idx[id]
		if !ok {
			return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
		}
		if err := s.fs.RemoveAll(s.layout.PageDir(notebookID, id)); err != nil {
			return err
		}
		delete(idx, id)
		return s.index.Write(idx)
	})
}

// Duplicate copies one page directory within its notebook. The copy gets the
// next sequential page number, a fresh identifier and timestamps, a cleared
// transcription status, and an index registration.
func (s *PageStore) Duplicate(id string) (*models.Page, error) {
	var page *models.Page
	err := s.locks.WithLock(storage.RootKey, func() error {
		idx, err := s.index.Read()
		if err != nil {
			return err
		}
		notebookID, ok := idx[id]
		if !ok {
			return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
		}
		src, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, id))
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
		}
		existing, err := s.fs.ListDir(s.layout.PagesDir(notebookID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		p := *src
		p.ID = uuid.NewString()
		p.Number = len(existing) + 1
		p.CreatedAt = now
		p.UpdatedAt = now
		p.Transcription = nil

		if err := s.fs.CopyDir(s.layout.PageDir(notebookID, id), s.layout.PageDir(notebookID, p.ID)); err != nil {
			return err
		}
		if err := s.fs.WriteJSON(s.layout.PageMeta(notebookID, p.ID), &p); err != nil {
			return err
		}
		if exists, err := s.fs.FileExists(s.layout.TranscriptionText(notebookID, p.ID)); err == nil && exists {
			if err := s.fs.Remove(s.layout.TranscriptionText(notebookID, p.ID)); err != nil {
				return err
			}
		}
		idx[p.ID] = notebookID
		if err := s.index.Write(idx); err != nil {
			return err
		}
		page = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Move relocates a batch of pages into another notebook under one lock
// acquisition. Pages are renumbered sequentially after the target's existing
// page count, in call order. The whole batch fails up front, before any
// page is touched, if any identifier is unknown or already resident in the
// target notebook.
func (s *PageStore) Move(ids []string, targetNotebookID string) ([]*models.Page, error) {
	var moved []*models.Page
	err := s.locks.WithLock(storage.RootKey, func() error {
		target, err := storage.ReadJSON[models.Notebook](s.fs, s.layout.NotebookMeta(targetNotebookID))
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("notebook %s: %w", targetNotebookID, apperr.ErrNotFound)
		}
		idx, err := s.index.Read()
		if err != nil {
			return err
		}

		// Validate the whole batch before moving anything.
		pages := make([]*models.Page, 0, len(ids))
		for _, id := range ids {
			notebookID, ok := idx[id]
			if !ok {
				return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
			}
			if notebookID == targetNotebookID {
				return fmt.Errorf("page %s already in notebook %s: %w", id, targetNotebookID, apperr.ErrConflict)
			}
			page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, id))
			if err != nil {
				return err
			}
			if page == nil {
				return fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
			}
			pages = append(pages, page)
		}

		existing, err := s.fs.ListDir(s.layout.PagesDir(targetNotebookID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i, page := range pages {
			oldDir := s.layout.PageDir(page.NotebookID, page.ID)
			newDir := s.layout.PageDir(targetNotebookID, page.ID)
			if err := s.fs.Rename(oldDir, newDir); err != nil {
				return err
			}
			page.NotebookID = targetNotebookID
			page.Number = len(existing) + i + 1
			page.UpdatedAt = now
			if err := s.fs.WriteJSON(s.layout.PageMeta(targetNotebookID, page.ID), page); err != nil {
				return err
			}
			idx[page.ID] = targetNotebookID
		}
		if err := s.index.Write(idx); err != nil {
			return err
		}
		moved = pages
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}
