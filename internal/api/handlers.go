package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/codex/internal/corpus"
)

// Handler holds API route handlers.
type Handler struct {
	svc *corpus.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *corpus.Service) *Handler {
	return &Handler{svc: svc}
}

// queryAndK reads the q and k parameters. ok is false when q is blank.
func queryAndK(r *http.Request) (q string, k int, ok bool) {
	q = strings.TrimSpace(r.URL.Query().Get("q"))
	k, _ = strconv.Atoi(r.URL.Query().Get("k"))
	return q, k, q != ""
}

// Search handles GET /api/search.
//
//	@Summary		Rank chunks by trigram similarity to a query
//	@Tags			retrieval
//	@Produce		json
//	@Param			q	query		string	true	"Query"
//	@Param			k	query		int		false	"Max hits (default 8)"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q, k, ok := queryAndK(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.Search(r.Context(), q, k)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Hits: hits})
}

// Ground handles GET /api/ground.
//
//	@Summary		Render the citation-indexed grounding block for a query
//	@Tags			retrieval
//	@Produce		json
//	@Param			q	query		string	true	"Query"
//	@Param			k	query		int		false	"Max hits (default 8)"
//	@Success		200	{object}	retrieval.Grounding
//	@Failure		400	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ground [get]
func (h *Handler) Ground(w http.ResponseWriter, r *http.Request) {
	q, k, ok := queryAndK(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	g, err := h.svc.Ground(r.Context(), q, k)
	if err != nil {
		writeServiceError(w, "ground", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Ask handles POST /api/ask.
//
//	@Summary		Answer a question from the nearest chunks
//	@Tags			retrieval
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	Answer
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}
	ans, err := h.svc.Ask(r.Context(), req.Query)
	if err != nil {
		writeServiceError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents, newest first
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, total, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a document with its chunks
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	DocumentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Delete a document and its chunks
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats.
//
//	@Summary		Count documents and chunks
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	models.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
