package api

import (
	"github.com/starford/codex/internal/corpus"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/models"
)

// RemoteIngestRequest is the request body for ingesting documents by URL.
type RemoteIngestRequest struct {
	Items []RemoteItem `json:"items" validate:"required"`
}

// RemoteItem names one remote document. Size is the declared size in bytes.
type RemoteItem struct {
	URL    string `json:"url" example:"https://example.com/notes.md" validate:"required"`
	Name   string `json:"name,omitempty" example:"notes.md"`
	Size   int64  `json:"size,omitempty" example:"2048"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
}

// IngestResponse lists per-item outcomes in request order.
type IngestResponse struct {
	Results []ingest.Report `json:"results" validate:"required"`
}

// AskRequest is the request body for asking a question.
type AskRequest struct {
	Query string `json:"query" example:"how do I size the connection pool?" validate:"required"`
}

// SearchResponse wraps ranked chunks.
type SearchResponse struct {
	Hits []models.Hit `json:"hits" validate:"required"`
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.Document `json:"documents" validate:"required"`
	Total     int               `json:"total" example:"42" validate:"required"`
}

// DocumentDetail is a document with its chunks (aliased from the domain layer).
type DocumentDetail = corpus.DocumentDetail

// Answer is the ask response (aliased from the domain layer).
type Answer = corpus.Answer
