// Package corpus coordinates ingestion, retrieval, and answering over the
// document store. HTTP, MCP, and CLI surfaces all go through Service.
package corpus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/codex/internal/assistant"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/retrieval"
	"github.com/starford/codex/internal/source"
)

// Answer statuses.
const (
	StatusAnswered = "answered"
	StatusPreview  = "preview"
	StatusNoAnswer = "no_answer"
)

// DocumentDetail is a document with its chunks.
type DocumentDetail struct {
	models.Document
	Chunks []models.Chunk `json:"chunks"`
}

// Answer is the reply to a question. Status is StatusAnswered when the
// assistant produced text, StatusPreview when the nearest chunks are shown
// instead, and StatusNoAnswer when neither is available.
type Answer struct {
	Status    string       `json:"status"`
	Text      string       `json:"text"`
	Footnotes []string     `json:"footnotes"`
	Hits      []models.Hit `json:"hits"`
}

// Service coordinates store, ingest, retrieval, and assistant operations.
type Service struct {
	store     index.Store
	ingestor  *ingest.Ingestor
	retriever *retrieval.Retriever
	assistant *assistant.Assistant
	logger    *slog.Logger
}

// NewService creates a new corpus service.
func NewService(store index.Store, in *ingest.Ingestor, r *retrieval.Retriever, a *assistant.Assistant, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ingestor: in, retriever: r, assistant: a, logger: logger}
}

// Ingestor returns the ingestor.
func (s *Service) Ingestor() *ingest.Ingestor { return s.ingestor }

// Ingest ingests items with the default fetcher.
func (s *Service) Ingest(ctx context.Context, items []ingest.Item) []ingest.Result {
	return s.ingestor.IngestBatch(ctx, items)
}

// IngestWith ingests items whose refs are resolved by f.
func (s *Service) IngestWith(ctx context.Context, f source.Fetcher, items []ingest.Item) []ingest.Result {
	return s.ingestor.IngestBatchWith(ctx, f, items)
}

// Search returns the chunks most similar to query.
func (s *Service) Search(ctx context.Context, query string, k int) ([]models.Hit, error) {
	hits, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(hits), nil
}

// Ground returns the grounding block for query.
func (s *Service) Ground(ctx context.Context, query string, k int) (retrieval.Grounding, error) {
	hits, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return retrieval.Grounding{}, err
	}
	g := retrieval.Ground(hits)
	g.Footnotes = nonNilSlice(g.Footnotes)
	return g, nil
}

// Ask answers question from the nearest chunks. When the assistant is
// unavailable, fails, or returns nothing, the chunk preview is used.
// Only a retrieval failure is returned as an error.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	hits, err := s.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		return Answer{}, err
	}
	ans := Answer{
		Status:    StatusNoAnswer,
		Footnotes: nonNilSlice(retrieval.Footnotes(hits)),
		Hits:      nonNilSlice(hits),
	}

	if s.assistant != nil {
		out, askErr := s.assistant.Ask(ctx, question, hits)
		switch {
		case askErr == nil:
			if a, ok := out.(assistant.Answered); ok {
				ans.Status = StatusAnswered
				ans.Text = assistant.Truncate(a.Text, assistant.MaxReplyLen)
				return ans, nil
			}
		case errors.Is(askErr, assistant.ErrUnavailable):
		default:
			s.logger.Warn("ask: assistant failed", slog.String("error", askErr.Error()))
		}
	}

	if preview := retrieval.Preview(hits); preview != "" {
		ans.Status = StatusPreview
		ans.Text = assistant.Truncate(preview, assistant.MaxReplyLen)
	}
	return ans, nil
}

// Document returns a document with its chunks.
func (s *Service) Document(ctx context.Context, id string) (*DocumentDetail, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.Chunks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: *doc, Chunks: nonNilSlice(chunks)}, nil
}

// List returns a page of documents and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Document, int, error) {
	docs, total, err := s.store.ListDocuments(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(docs), total, nil
}

// Delete removes a document and its chunks.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, id)
}

// Stats returns document and chunk counts.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.store.Stats(ctx)
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
