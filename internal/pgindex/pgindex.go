// Package pgindex provides the PostgreSQL-backed document and chunk store.
// Ranking uses the pg_trgm extension: similarity() for the score and the
// % operator for the match threshold.
package pgindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/models"
)

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		pos         BIGSERIAL,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		text        TEXT NOT NULL,
		UNIQUE (document_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_text_trgm ON chunks USING gin (text gin_trgm_ops)`,
}

// Options tunes the connection pool. Zero values keep pgxpool defaults.
type Options struct {
	MaxConns    int
	IdleTimeout time.Duration
}

// DB wraps a pgx connection pool with store operations.
type DB struct {
	pool *pgxpool.Pool
}

// Verify *DB satisfies index.Store at compile time.
var _ index.Store = (*DB)(nil)

// Open connects to PostgreSQL and applies the schema.
func Open(ctx context.Context, dsn string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgindex: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.IdleTimeout > 0 {
		cfg.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pgindex: apply schema: %w", err)
		}
	}
	return &DB{pool: pool}, nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// FindByHash returns the document stored under hash.
func (db *DB) FindByHash(ctx context.Context, hash string) (*models.Document, error) {
	var d models.Document
	err := db.pool.QueryRow(ctx, `
		SELECT id, source, title, content_hash, created_at
		FROM documents
		WHERE content_hash = $1
	`, hash).Scan(&d.ID, &d.Source, &d.Title, &d.ContentHash, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find by hash", err)
	}
	return &d, nil
}

// InsertDocumentWithChunks inserts a document and its chunks atomically.
// A concurrent insert of the same hash blocks on the unique index until the
// first transaction finishes, then resolves to the stored id.
func (db *DB) InsertDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) (string, bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return "", false, unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO documents (id, source, title, content, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_hash) DO NOTHING
	`, doc.ID, doc.Source, doc.Title, doc.Content, doc.ContentHash, doc.CreatedAt)
	if err != nil {
		return "", false, writeFailure("insert document", err)
	}
	if tag.RowsAffected() == 0 {
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM documents WHERE content_hash = $1`, doc.ContentHash).Scan(&id); err != nil {
			return "", false, unavailable("resolve conflict", err)
		}
		return id, false, nil
	}

	if len(chunks) > 0 {
		batch := &pgx.Batch{}
		for _, c := range chunks {
			batch.Queue(`INSERT INTO chunks (id, document_id, seq, text) VALUES ($1, $2, $3, $4)`,
				c.ID, doc.ID, c.Seq, c.Text)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", false, writeFailure("insert chunks", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, unavailable("commit", err)
	}
	return doc.ID, true, nil
}

// SearchBySimilarity ranks chunks with pg_trgm. Equal scores keep
// insertion order through the serial pos column.
func (db *DB) SearchBySimilarity(ctx context.Context, query string, limit int) ([]models.Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx, `
		SELECT c.document_id, c.seq, c.text, d.title, d.source,
		       similarity(c.text, $1)::float8 AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.text % $1
		ORDER BY score DESC, c.pos ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var out []models.Hit
	for rows.Next() {
		var h models.Hit
		if err := rows.Scan(&h.DocumentID, &h.Seq, &h.Text, &h.Title, &h.Source, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}
	return out, nil
}

// GetDocument returns a document with its content and chunk count.
func (db *DB) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := db.pool.QueryRow(ctx, `
		SELECT d.id, d.source, d.title, d.content, d.content_hash, d.created_at,
		       (SELECT count(*) FROM chunks c WHERE c.document_id = d.id)::int
		FROM documents d
		WHERE d.id = $1
	`, id).Scan(&d.ID, &d.Source, &d.Title, &d.Content, &d.ContentHash, &d.CreatedAt, &d.ChunkCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get document", err)
	}
	return &d, nil
}

// Chunks returns a document's chunks in seq order.
func (db *DB) Chunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, document_id, seq, text FROM chunks WHERE document_id = $1 ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, unavailable("chunks", err)
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDocuments returns documents without content, newest first, and the total count.
func (db *DB) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := db.pool.QueryRow(ctx, `SELECT count(*)::int FROM documents`).Scan(&total); err != nil {
		return nil, 0, unavailable("count documents", err)
	}
	rows, err := db.pool.Query(ctx, `
		SELECT d.id, d.source, d.title, d.content_hash, d.created_at,
		       (SELECT count(*) FROM chunks c WHERE c.document_id = d.id)::int
		FROM documents d
		ORDER BY d.created_at DESC, d.id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, unavailable("list documents", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Source, &d.Title, &d.ContentHash, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// DeleteDocument removes a document; its chunks go with it.
func (db *DB) DeleteDocument(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgindex: delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Stats counts stored documents and chunks.
func (db *DB) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := db.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM documents)::int, (SELECT count(*) FROM chunks)::int
	`).Scan(&s.Documents, &s.Chunks)
	if err != nil {
		return models.Stats{}, unavailable("stats", err)
	}
	return s, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("pgindex: %s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}

// writeFailure wraps a failed write. Integrity constraint violations
// (SQLSTATE class 23) come from the caller's data, not the store.
func writeFailure(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("pgindex: %s: %w", op, err)
	}
	return unavailable(op, err)
}
