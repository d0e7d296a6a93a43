package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/queue"
	"github.com/oakheim/inkwell/internal/storage"
	"github.com/oakheim/inkwell/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	fs        *storage.FS
	layout    storage.Layout
	notebooks *store.NotebookStore
	pages     *store.PageStore
	strokes   *store.StrokeStore
	jobs      *queue.Queue
}

// NewHandler creates a new Handler.
func NewHandler(fs *storage.FS, notebooks *store.NotebookStore, pages *store.PageStore, strokes *store.StrokeStore, jobs *queue.Queue) *Handler {
	return &Handler{fs: fs, notebooks: notebooks, pages: pages, strokes: strokes, jobs: jobs}
}

// --- Notebooks ---

// ListNotebooks handles GET /api/notebooks.
func (h *Handler) ListNotebooks(w http.ResponseWriter, _ *http.Request) {
	nbs, err := h.notebooks.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notebooks": nbs, "total": len(nbs)})
}

// CreateNotebook handles POST /api/notebooks.
func (h *Handler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string                   `json:"title"`
		Settings *models.NotebookSettings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	nb, err := h.notebooks.Create(req.Title, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

// GetNotebook handles GET /api/notebooks/{id}.
func (h *Handler) GetNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := h.notebooks.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// UpdateNotebook handles PATCH /api/notebooks/{id}.
func (h *Handler) UpdateNotebook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    *string                  `json:"title"`
		Settings *models.NotebookSettings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	nb, err := h.notebooks.Update(chi.URLParam(r, "id"), store.NotebookUpdate{
		Title:    req.Title,
		Settings: req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// DeleteNotebook handles DELETE /api/notebooks/{id}.
func (h *Handler) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := h.notebooks.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateNotebook handles POST /api/notebooks/{id}/duplicate.
func (h *Handler) DuplicateNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := h.notebooks.Duplicate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

// ListPages handles GET /api/notebooks/{id}/pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.notebooks.Get(id); err != nil {
		writeError(w, err)
		return
	}
	pages, err := h.pages.List(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages, "total": len(pages)})
}

// --- Pages ---

// CreatePage handles POST /api/pages.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotebookID string          `json:"notebookId"`
		Position   models.Position `json:"position"`
		Tags       []string        `json:"tags"`
		Links      []string        `json:"links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if req.NotebookID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("notebookId is required"))
		return
	}
	page, err := h.pages.Create(store.PageCreate{
		NotebookID: req.NotebookID,
		Position:   req.Position,
		Tags:       req.Tags,
		Links:      req.Links,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

// GetPage handles GET /api/pages/{id}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// UpdatePage handles PATCH /api/pages/{id}.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *models.Position `json:"position"`
		Number   *int             `json:"number"`
		Tags     []string         `json:"tags"`
		Links    []string         `json:"links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	page, err := h.pages.Update(chi.URLParam(r, "id"), store.PageUpdate{
		Position: req.Position,
		Number:   req.Number,
		Tags:     req.Tags,
		Links:    req.Links,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// DeletePage handles DELETE /api/pages/{id}.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicatePage handles POST /api/pages/{id}/duplicate.
func (h *Handler) DuplicatePage(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Duplicate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

// MovePages handles POST /api/pages/move.
func (h *Handler) MovePages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageIDs          []string `json:"pageIds"`
		TargetNotebookID string   `json:"targetNotebookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if len(req.PageIDs) == 0 || req.TargetNotebookID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("pageIds and targetNotebookId are required"))
		return
	}
	moved, err := h.pages.Move(req.PageIDs, req.TargetNotebookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": moved})
}

// --- Strokes ---

// ListStrokes handles GET /api/pages/{id}/strokes.
func (h *Handler) ListStrokes(w http.ResponseWriter, r *http.Request) {
	strokes, err := h.strokes.List(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strokes": strokes, "total": len(strokes)})
}

// AppendStroke handles POST /api/pages/{id}/strokes.
func (h *Handler) AppendStroke(w http.ResponseWriter, r *http.Request) {
	var stroke models.Stroke
	if err := json.NewDecoder(r.Body).Decode(&stroke); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if len(stroke.Points) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("points are required"))
		return
	}
	added, err := h.strokes.Append(chi.URLParam(r, "id"), stroke)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// DeleteStroke handles DELETE /api/pages/{id}/strokes/{strokeId}.
func (h *Handler) DeleteStroke(w http.ResponseWriter, r *http.Request) {
	if err := h.strokes.Delete(chi.URLParam(r, "id"), chi.URLParam(r, "strokeId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearStrokes handles DELETE /api/pages/{id}/strokes.
func (h *Handler) ClearStrokes(w http.ResponseWriter, r *http.Request) {
	if err := h.strokes.Clear(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Transcription ---

// GetTranscription handles GET /api/pages/{id}/transcription.
func (h *Handler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	content, err := h.pages.ReadTranscriptionText(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// EnqueueTranscription handles POST /api/pages/{id}/transcribe.
func (h *Handler) EnqueueTranscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
			return
		}
	}
	id := chi.URLParam(r, "id")
	page, err := h.pages.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.jobs.Enqueue(page.ID, page.NotebookID, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// --- Queue inspection ---

// QueueStats handles GET /api/queue/stats.
func (h *Handler) QueueStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.jobs.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// QueuePending handles GET /api/queue/pending.
func (h *Handler) QueuePending(w http.ResponseWriter, _ *http.Request) {
	jobs, err := h.jobs.ListPending()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

// QueueFailed handles GET /api/queue/failed.
func (h *Handler) QueueFailed(w http.ResponseWriter, _ *http.Request) {
	jobs, err := h.jobs.ListFailed()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
}

// RetryFailed handles POST /api/queue/failed/{pageId}/retry.
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Retry(chi.URLParam(r, "pageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- Settings ---

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := storage.ReadJSON[models.Settings](h.fs, h.layout.Settings())
	if err != nil {
		writeError(w, err)
		return
	}
	if settings == nil {
		settings = &models.Settings{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// PutSettings handles PUT /api/settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if err := h.fs.WriteJSON(h.layout.Settings(), &settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &settings)
}
