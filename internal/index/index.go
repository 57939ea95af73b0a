package index

import (
	"context"

	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/trigram"
)

// MatchThreshold is the minimum similarity for a chunk to be returned by
// SearchBySimilarity.
const MatchThreshold = trigram.Threshold

// Store is the document store contract shared by the SQLite and PostgreSQL
// implementations. Consumers depend on this interface rather than a
// concrete type.
type Store interface {
	// FindByHash returns the document with the given content hash,
	// or apperr.ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*models.Document, error)

	// InsertDocumentWithChunks writes doc and its chunks in one transaction.
	// When another document already holds doc.ContentHash nothing is
	// written and that document's id is returned with created=false.
	InsertDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) (id string, created bool, err error)

	// SearchBySimilarity ranks chunks against query by trigram similarity,
	// highest first, ties in insertion order. Chunks below MatchThreshold
	// are excluded.
	SearchBySimilarity(ctx context.Context, query string, limit int) ([]models.Hit, error)

	GetDocument(ctx context.Context, id string) (*models.Document, error)
	Chunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, int, error)
	DeleteDocument(ctx context.Context, id string) error
	Stats(ctx context.Context) (models.Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
