package store

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oakheim/inkwell/internal/apperr"
	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/storage"
)

// StrokeStore manages the per-page stroke list. Strokes live in a single
// document per page: per-page stroke counts are modest, and atomic
// whole-document replacement keeps every mutation a plain
// read-transform-write under the page directory lock.
type StrokeStore struct {
	fs     *storage.FS
	layout storage.Layout
	locks  *storage.KeyedLock
	index  *Index
	log    *slog.Logger
}

// NewStrokeStore creates a StrokeStore.
func NewStrokeStore(fs *storage.FS, locks *storage.KeyedLock, index *Index, log *slog.Logger) *StrokeStore {
	if log == nil {
		log = slog.Default()
	}
	return &StrokeStore{fs: fs, locks: locks, index: index, log: log}
}

// List returns a page's strokes in insertion order. An unknown page returns
// apperr.ErrNotFound; a known page with no strokes returns an empty list.
func (s *StrokeStore) List(pageID string) ([]models.Stroke, error) {
	notebookID, err := s.index.Lookup(pageID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePage(notebookID, pageID); err != nil {
		return nil, err
	}
	strokes, err := storage.ReadJSON[[]models.Stroke](s.fs, s.layout.Strokes(notebookID, pageID))
	if err != nil {
		return nil, err
	}
	if strokes == nil {
		return []models.Stroke{}, nil
	}
	return *strokes, nil
}

// Append adds a stroke to the end of the page's list, assigning an
// identifier if the caller did not. A caller-supplied identifier that is
// already taken on the page is rejected with apperr.ErrAlreadyExists. Order
// is insertion order and is never rearranged except by explicit delete.
func (s *StrokeStore) Append(pageID string, stroke models.Stroke) (*models.Stroke, error) {
	if stroke.ID == "" {
		stroke.ID = uuid.NewString()
	}
	err := s.mutate(pageID, func(strokes []models.Stroke) ([]models.Stroke, error) {
		for _, st := range strokes {
			if st.ID == stroke.ID {
				return nil, fmt.Errorf("stroke %s: %w", stroke.ID, apperr.ErrAlreadyExists)
			}
		}
		return append(strokes, stroke), nil
	})
	if err != nil {
		return nil, err
	}
	return &stroke, nil
}

// Delete removes the stroke with the given id. Removing an id that is not
// present is a no-op; only an unknown page is an error.
func (s *StrokeStore) Delete(pageID, strokeID string) error {
	return s.mutate(pageID, func(strokes []models.Stroke) ([]models.Stroke, error) {
		out := strokes[:0]
		for _, st := range strokes {
			if st.ID != strokeID {
				out = append(out, st)
			}
		}
		return out, nil
	})
}

// Clear removes every stroke from the page.
func (s *StrokeStore) Clear(pageID string) error {
	return s.mutate(pageID, func([]models.Stroke) ([]models.Stroke, error) {
		return []models.Stroke{}, nil
	})
}

// mutate runs the standard stroke sequence: resolve the owning notebook via
// the index, lock the page directory, read the list, transform, write back.
// The write never creates directories, so a page deleted between the
// existence check and the write fails the mutation instead of leaving an
// orphan stroke document under a resurrected directory.
func (s *StrokeStore) mutate(pageID string, transform func([]models.Stroke) ([]models.Stroke, error)) error {
	notebookID, err := s.index.Lookup(pageID)
	if err != nil {
		return err
	}
	return s.locks.WithLock(s.layout.PageDir(notebookID, pageID), func() error {
		if err := s.requirePage(notebookID, pageID); err != nil {
			return err
		}
		cur, err := storage.ReadJSON[[]models.Stroke](s.fs, s.layout.Strokes(notebookID, pageID))
		if err != nil {
			return err
		}
		var strokes []models.Stroke
		if cur != nil {
			strokes = *cur
		}
		strokes, err = transform(strokes)
		if err != nil {
			return err
		}
		if strokes == nil {
			strokes = []models.Stroke{}
		}
		return s.fs.WriteJSONExisting(s.layout.Strokes(notebookID, pageID), strokes)
	})
}

// requirePage confirms the page's metadata still exists, so a stale index
// entry (page deleted concurrently) reads as absent rather than silently
// recreating documents under a removed directory.
func (s *StrokeStore) requirePage(notebookID, pageID string) error {
	page, err := storage.ReadJSON[models.Page](s.fs, s.layout.PageMeta(notebookID, pageID))
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("page %s: %w", pageID, apperr.ErrNotFound)
	}
	return nil
}
