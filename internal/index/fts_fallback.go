//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; full-text search uses a LIKE fallback over the
	// notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Body is already stored in the notes table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// SearchFts performs a LIKE-based search (fallback when FTS5 is not compiled
// in). Ordering is created descending, deterministic for identical input.
func (db *DB) SearchFts(query string, typeFilter models.Type, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	q := `
		SELECT id, type, title, category, status, author, source_url, gist,
		       input_source, tags, links, body, content_hash, file_path,
		       created, updated,
		       substr(body, 1, 200)
		FROM notes
		WHERE (title LIKE ? OR body LIKE ? OR tags LIKE ?)`
	args := []any{like, like, like}
	if typeFilter != "" {
		q += ` AND type = ?`
		args = append(args, string(typeFilter))
	}
	q += `
		ORDER BY created DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return collectHits(rows)
}
