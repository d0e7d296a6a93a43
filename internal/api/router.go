package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notebooks.
	r.Get("/notebooks", h.ListNotebooks)
	r.Post("/notebooks", h.CreateNotebook)
	r.Get("/notebooks/{id}", h.GetNotebook)
	r.Patch("/notebooks/{id}", h.UpdateNotebook)
	r.Delete("/notebooks/{id}", h.DeleteNotebook)
	r.Post("/notebooks/{id}/duplicate", h.DuplicateNotebook)
	r.Get("/notebooks/{id}/pages", h.ListPages)

	// Pages.
	r.Post("/pages", h.CreatePage)
	r.Post("/pages/move", h.MovePages)
	r.Get("/pages/{id}", h.GetPage)
	r.Patch("/pages/{id}", h.UpdatePage)
	r.Delete("/pages/{id}", h.DeletePage)
	r.Post("/pages/{id}/duplicate", h.DuplicatePage)

	// Strokes.
	r.Get("/pages/{id}/strokes", h.ListStrokes)
	r.Post("/pages/{id}/strokes", h.AppendStroke)
	r.Delete("/pages/{id}/strokes", h.ClearStrokes)
	r.Delete("/pages/{id}/strokes/{strokeId}", h.DeleteStroke)

	// Transcription.
	r.Get("/pages/{id}/transcription", h.GetTranscription)
	r.Post("/pages/{id}/transcribe", h.EnqueueTranscription)

	// Queue inspection.
	r.Get("/queue/stats", h.QueueStats)
	r.Get("/queue/pending", h.QueuePending)
	r.Get("/queue/failed", h.QueueFailed)
	r.Post("/queue/failed/{pageId}/retry", h.RetryFailed)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
