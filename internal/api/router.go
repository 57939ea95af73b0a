package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/codex/internal/corpus"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *corpus.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Ingestion.
	r.Post("/ingest", h.Upload)
	r.Post("/ingest/remote", h.IngestRemote)

	// Retrieval.
	r.Get("/search", h.Search)
	r.Get("/ground", h.Ground)
	r.Post("/ask", h.Ask)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{id}", h.GetDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// MountHealth registers unauthenticated liveness and readiness probes.
// Readiness pings the store.
func MountHealth(r chi.Router, svc *corpus.Service) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusBody("ok"))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, statusBody("unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, statusBody("ok"))
	})
}
