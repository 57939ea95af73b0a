// Package retrieval ranks stored chunks against a query and renders them
// into a citation-indexed grounding block.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/codex/internal/models"
)

// DefaultK is the number of hits returned when no limit is given.
const DefaultK = 8

// Searcher ranks chunks by similarity to a query.
type Searcher interface {
	SearchBySimilarity(ctx context.Context, query string, limit int) ([]models.Hit, error)
}

// Retriever fetches the chunks most relevant to a query.
type Retriever struct {
	searcher Searcher
	k        int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithK sets the default number of hits.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// New creates a Retriever over s.
func New(s Searcher, opts ...Option) *Retriever {
	r := &Retriever{searcher: s, k: DefaultK}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve returns up to k hits ordered by descending score. A non-positive
// k uses the configured default. A blank query yields no hits without
// touching the store. Store failures are returned, never an empty list.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.k
	}
	hits, err := r.searcher.SearchBySimilarity(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}
	return hits, nil
}
