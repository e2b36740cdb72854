// Package vector implements the embedding index on sqlite-vec: a vec0
// virtual table holding one fixed-dimension vector per record id, plus a
// side table with the denormalized fields search results display.
package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register the sqlite-vec extension on every new connection.
	sqlite_vec.Auto()
}

// Document is one entry in the vector index. Text is the string that was
// embedded (title + truncated body, not necessarily the full body); Type and
// Title are denormalized for result display.
type Document struct {
	ID     string
	Vector []float32
	Text   string
	Type   string
	Title  string
}

// Hit is one nearest-neighbor result, ranked by similarity descending.
type Hit struct {
	ID    string
	Score float64
	Type  string
	Title string
}

// Index stores fixed-dimension embeddings keyed by record id.
type Index struct {
	db  *sql.DB
	dim int
}

// Open opens (or creates) the vector database with the given dimension. The
// dimension is configured once per deployment; documents of any other
// dimension are rejected.
func Open(dsn string, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector: dimension must be positive, got %d", dimension)
	}
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("vector: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vector: ping: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
			id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);

		CREATE TABLE IF NOT EXISTS record_meta (
			id    TEXT PRIMARY KEY,
			type  TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			text  TEXT NOT NULL DEFAULT ''
		);
	`, dimension)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vector: apply schema: %w", err)
	}

	return &Index{db: db, dim: dimension}, nil
}

// Dimension returns the configured vector dimension.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Upsert inserts or replaces the document's vector and display fields.
func (ix *Index) Upsert(ctx context.Context, doc Document) error {
	if len(doc.Vector) != ix.dim {
		return fmt.Errorf("vector: dimension mismatch: got %d, want %d", len(doc.Vector), ix.dim)
	}

	embeddingJSON, err := json.Marshal(doc.Vector)
	if err != nil {
		return fmt.Errorf("vector: marshal embedding: %w", err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vector: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO vec_records (id, embedding) VALUES (?, ?)`,
		doc.ID, string(embeddingJSON)); err != nil {
		return fmt.Errorf("vector: upsert embedding: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO record_meta (id, type, title, text) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Type, doc.Title, doc.Text); err != nil {
		return fmt.Errorf("vector: upsert meta: %w", err)
	}

	return tx.Commit()
}

// Search returns up to limit nearest neighbors of the query vector, ranked
// by cosine similarity descending. Similarity is reported as 1 - distance.
func (ix *Index) Search(ctx context.Context, query []float32, limit int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("vector: dimension mismatch: got %d, want %d", len(query), ix.dim)
	}
	if limit <= 0 {
		limit = 20
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("vector: marshal query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT v.id,
		       vec_distance_cosine(v.embedding, ?) AS distance,
		       m.type,
		       m.title
		FROM vec_records v
		JOIN record_meta m ON m.id = v.id
		ORDER BY distance ASC
		LIMIT ?
	`, string(queryJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.ID, &distance, &h.Type, &h.Title); err != nil {
			return nil, err
		}
		h.Score = 1.0 - distance
		out = append(out, h)
	}
	return out, rows.Err()
}

// Remove deletes the entry for id. Removing an unknown id is a no-op.
func (ix *Index) Remove(ctx context.Context, id string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vector: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vector: remove embedding: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_meta WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vector: remove meta: %w", err)
	}
	return tx.Commit()
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}
