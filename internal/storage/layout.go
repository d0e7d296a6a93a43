package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Layout computes the canonical location of every logical resource inside
// the data root. All paths are relative to the root and use forward slashes;
// they are resolved (and traversal-checked) by FS.
//
// On-disk layout:
//
//	<data-root>/
//	  config.json
//	  page-index.json
//	  queue/pending/<timestamp>_<pageId>.json
//	  queue/failed/<timestamp>_<pageId>.json
//	  notebooks/<notebookId>/
//	    meta.json
//	    pages/<pageId>/
//	      meta.json
//	      strokes.json
//	      transcription.md
//	      thumbnail.png
type Layout struct{}

// RootKey is the lock key covering the data root. All structural operations
// that touch the page index serialize on it.
const RootKey = "."

// Settings returns the path of the user settings document.
func (Layout) Settings() string { return "config.json" }

// PageIndex returns the path of the page index document.
func (Layout) PageIndex() string { return "page-index.json" }

// NotebooksDir returns the directory containing all notebooks.
func (Layout) NotebooksDir() string { return "notebooks" }

// NotebookDir returns a notebook's directory.
func (Layout) NotebookDir(notebookID string) string {
	return path.Join("notebooks", notebookID)
}

// NotebookMeta returns a notebook's metadata document path.
func (l Layout) NotebookMeta(notebookID string) string {
	return path.Join(l.NotebookDir(notebookID), "meta.json")
}

// PagesDir returns the directory containing a notebook's pages.
func (l Layout) PagesDir(notebookID string) string {
	return path.Join(l.NotebookDir(notebookID), "pages")
}

// PageDir returns a page's directory.
func (l Layout) PageDir(notebookID, pageID string) string {
	return path.Join(l.PagesDir(notebookID), pageID)
}

// PageMeta returns a page's metadata document path.
func (l Layout) PageMeta(notebookID, pageID string) string {
	return path.Join(l.PageDir(notebookID, pageID), "meta.json")
}

// Strokes returns a page's stroke list document path.
func (l Layout) Strokes(notebookID, pageID string) string {
	return path.Join(l.PageDir(notebookID, pageID), "strokes.json")
}

// TranscriptionText returns the path of a page's transcribed content.
func (l Layout) TranscriptionText(notebookID, pageID string) string {
	return path.Join(l.PageDir(notebookID, pageID), "transcription.md")
}

// Thumbnail returns the path of a page's rendered thumbnail.
func (l Layout) Thumbnail(notebookID, pageID string) string {
	return path.Join(l.PageDir(notebookID, pageID), "thumbnail.png")
}

// PendingDir returns the pending job directory.
func (Layout) PendingDir() string { return "queue/pending" }

// FailedDir returns the failed (dead-letter) job directory.
func (Layout) FailedDir() string { return "queue/failed" }

// JobFileName builds a job filename. The millisecond timestamp prefix makes
// lexicographic order equal creation order, so the filename doubles as the
// queue's priority key.
func (Layout) JobFileName(createdAt time.Time, pageID string) string {
	return fmt.Sprintf("%013d_%s.json", createdAt.UnixMilli(), pageID)
}

// JobPageID extracts the page identifier from a job filename, or "" if the
// name does not look like one.
func (Layout) JobPageID(name string) string {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return ""
	}
	_, pageID, ok := strings.Cut(base, "_")
	if !ok {
		return ""
	}
	return pageID
}
