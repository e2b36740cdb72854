//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO notes_fts (id, title, body, tags) VALUES (?, ?, ?, ?)`,
		id, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

// SearchFts performs an FTS5 full-text search over title, body, and tags,
// ranked by bm25 with created-descending tiebreak for determinism.
func (db *DB) SearchFts(query string, typeFilter models.Type, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT n.id, n.type, n.title, n.category, n.status, n.author, n.source_url,
		       n.gist, n.input_source, n.tags, n.links, n.body, n.content_hash,
		       n.file_path, n.created, n.updated,
		       snippet(notes_fts, 2, '<b>', '</b>', '...', 64)
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.id
		WHERE notes_fts MATCH ?`
	args := []any{query}
	if typeFilter != "" {
		q += ` AND n.type = ?`
		args = append(args, string(typeFilter))
	}
	q += `
		ORDER BY notes_fts.rank, n.created DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return collectHits(rows)
}
