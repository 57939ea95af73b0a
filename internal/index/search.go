package index

import (
	"context"
	"strings"

	"github.com/starford/codex/internal/models"
)

// SearchBySimilarity returns up to limit chunks whose trigram similarity to
// query reaches MatchThreshold. Equal scores keep chunk insertion order.
func (db *DB) SearchBySimilarity(ctx context.Context, query string, limit int) ([]models.Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT document_id, seq, text, title, source, score
		FROM (
			SELECT c.rowid AS pos, c.document_id, c.seq, c.text, d.title, d.source,
			       similarity(c.text, ?) AS score
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
		)
		WHERE score >= ?
		ORDER BY score DESC, pos ASC
		LIMIT ?
	`, query, MatchThreshold, limit)
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
