// Package models defines the domain types for Inkwell.
package models

import "time"

// Notebook is the metadata document stored at notebooks/<id>/meta.json.
type Notebook struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Settings  *NotebookSettings `json:"settings,omitempty"`
}

// NotebookSettings holds per-notebook editor defaults.
type NotebookSettings struct {
	DefaultTool string   `json:"defaultTool,omitempty"`
	Color       string   `json:"color,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty"`
	GridType    string   `json:"gridType,omitempty"`
	Bookmarks   []string `json:"bookmarks,omitempty"`
}

// Page is the metadata document stored at notebooks/<nb>/pages/<id>/meta.json.
// A page belongs to exactly one notebook at any instant; Number is unique
// within that notebook, not globally.
type Page struct {
	ID            string         `json:"id"`
	NotebookID    string         `json:"notebookId"`
	Number        int            `json:"number"`
	Position      Position       `json:"position"`
	Tags          []string       `json:"tags,omitempty"`
	Links         []string       `json:"links,omitempty"`
	Transcription *Transcription `json:"transcription,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Position is a page's 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transcription status values.
const (
	TranscriptionPending    = "pending"
	TranscriptionProcessing = "processing"
	TranscriptionComplete   = "complete"
	TranscriptionFailed     = "failed"
)

// Transcription is the status block embedded in Page. A nil pointer means
// the page has never been queued ("none"). The transcribed content itself
// lives in a separate transcription.md document, not here.
type Transcription struct {
	Status      string     `json:"status"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Stroke is a single ink stroke. Strokes are stored as an ordered list per
// page; the order is insertion order and is semantically meaningful
// (rendering order).
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Style  string  `json:"style,omitempty"`
}

// Point is a single sampled pen position.
type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
}

// PageIndex maps page identifier to owning notebook identifier. It is
// persisted whole as page-index.json and mutated inside the same locked
// section as the structural filesystem change it describes.
type PageIndex map[string]string

// Job is a persisted transcription job. Identity for de-duplication is the
// page identifier, not the job's filename. The directory it lives in
// (queue/pending vs queue/failed) is its state.
type Job struct {
	PageID     string    `json:"pageId"`
	NotebookID string    `json:"notebookId"`
	CreatedAt  time.Time `json:"createdAt"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	Force      bool      `json:"force,omitempty"`
}

// Settings is the user-facing application settings document stored at the
// data root as config.json.
type Settings struct {
	Theme       string  `json:"theme,omitempty"`
	DefaultTool string  `json:"defaultTool,omitempty"`
	DefaultPen  string  `json:"defaultPen,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}
