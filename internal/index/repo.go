package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/models"
)

// FindByHash returns the document stored under hash.
func (db *DB) FindByHash(ctx context.Context, hash string) (*models.Document, error) {
	var d models.Document
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, source, title, content_hash, created_at
		FROM documents
		WHERE content_hash = ?
	`, hash).Scan(&d.ID, &d.Source, &d.Title, &d.ContentHash, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find by hash", err)
	}
	return &d, nil
}

// InsertDocumentWithChunks inserts a document and its chunks atomically.
func (db *DB) InsertDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) (string, bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", false, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, source, title, content, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, doc.ID, doc.Source, doc.Title, doc.Content, doc.ContentHash, doc.CreatedAt)
	if err != nil {
		return "", false, writeFailure("insert document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, unavailable("insert document", err)
	}

	// Lost the race: another ingestion already stored this content.
	if n == 0 {
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE content_hash = ?`, doc.ContentHash).Scan(&id); err != nil {
			return "", false, unavailable("resolve conflict", err)
		}
		return id, false, nil
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, document_id, seq, text) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return "", false, unavailable("prepare chunk insert", err)
		}
		defer stmt.Close()
		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.Seq, c.Text); err != nil {
				return "", false, writeFailure("insert chunk", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, unavailable("commit", err)
	}
	return doc.ID, true, nil
}

// GetDocument returns a document with its full content and chunk count.
func (db *DB) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := db.conn.QueryRowContext(ctx, `
		SELECT d.id, d.source, d.title, d.content, d.content_hash, d.created_at,
		       (SELECT count(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.id = ?
	`, id).Scan(&d.ID, &d.Source, &d.Title, &d.Content, &d.ContentHash, &d.CreatedAt, &d.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get document", err)
	}
	return &d, nil
}

// Chunks returns a document's chunks in seq order.
func (db *DB) Chunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, document_id, seq, text
		FROM chunks
		WHERE document_id = ?
		ORDER BY seq
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
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, unavailable("count documents", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.id, d.source, d.title, d.content_hash, d.created_at,
		       (SELECT count(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		ORDER BY d.created_at DESC, d.rowid DESC
		LIMIT ? OFFSET ?
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
	res, err := db.conn.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete document", err)
	}
	if n == 0 {
		return fmt.Errorf("index: delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Stats counts stored documents and chunks.
func (db *DB) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM documents), (SELECT count(*) FROM chunks)
	`).Scan(&s.Documents, &s.Chunks)
	if err != nil {
		return models.Stats{}, unavailable("stats", err)
	}
	return s, nil
}
