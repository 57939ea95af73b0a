// Package models defines the domain types for Codex.
package models

import "time"

// Document is one deduplicated unit of ingested text.
// ContentHash is unique across the store.
type Document struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label returns the title, or the source when the title is empty.
func (d Document) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Source
}

// Chunk is a bounded slice of a Document's content. Seq orders the chunks
// of one document; concatenating them in Seq order yields the content.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Seq        int    `json:"seq"`
	Text       string `json:"text"`
}

// Hit is a chunk ranked against a query. It is never persisted.
type Hit struct {
	DocumentID string  `json:"document_id"`
	Seq        int     `json:"seq"`
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// Label returns the title, or the source when the title is empty.
func (h Hit) Label() string {
	if h.Title != "" {
		return h.Title
	}
	return h.Source
}

// Stats summarises store contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}
