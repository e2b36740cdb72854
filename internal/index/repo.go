package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// Row is the flattened projection of a record held by the index. ContentHash
// is the SHA-256 of the body, used only for drift detection; FilePath is the
// back-pointer into the file store.
type Row struct {
	ID          string
	Type        models.Type
	Title       string
	Category    string
	Status      models.Status
	Author      string
	SourceURL   string
	Gist        string
	InputSource string
	Tags        []string
	Links       []string
	Body        string
	ContentHash string
	FilePath    string
	Created     time.Time
	Updated     time.Time
}

// Ref is the minimal projection used by reconciliation.
type Ref struct {
	ContentHash string
	FilePath    string
}

// SearchHit is one full-text search result.
type SearchHit struct {
	Row     Row
	Snippet string
}

// ListOptions filters ListNotes. Filters are AND-combined; date bounds are
// inclusive and compare on created.
type ListOptions struct {
	Type     models.Type
	Status   models.Status
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// maxListLimit bounds list responses regardless of caller request.
const maxListLimit = 100

const rowColumns = `id, type, title, category, status, author, source_url, gist,
	input_source, tags, links, body, content_hash, file_path, created, updated`

// UpsertNote inserts or replaces a row keyed by id, together with its FTS
// entry and link edges, within one transaction.
func (db *DB) UpsertNote(row Row) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(row.Tags))
	linksJSON, _ := json.Marshal(nonNil(row.Links))

	_, err = tx.Exec(`
		INSERT INTO notes (id, type, title, category, status, author, source_url,
			gist, input_source, tags, links, body, content_hash, file_path, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type         = excluded.type,
			title        = excluded.title,
			category     = excluded.category,
			status       = excluded.status,
			author       = excluded.author,
			source_url   = excluded.source_url,
			gist         = excluded.gist,
			input_source = excluded.input_source,
			tags         = excluded.tags,
			links        = excluded.links,
			body         = excluded.body,
			content_hash = excluded.content_hash,
			file_path    = excluded.file_path,
			created      = excluded.created,
			updated      = excluded.updated
	`, row.ID, string(row.Type), row.Title, row.Category, string(row.Status),
		row.Author, row.SourceURL, row.Gist, row.InputSource,
		string(tagsJSON), string(linksJSON), row.Body, row.ContentHash,
		row.FilePath, row.Created, row.Updated)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, row.ID, row.Title, row.Body, row.Tags); err != nil {
		return err
	}

	// Replace link edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, row.ID)
	if len(row.Links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range row.Links {
			if _, err := stmt.Exec(row.ID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetNote returns the row for id, or (nil, nil) when absent.
func (db *DB) GetNote(id string) (*Row, error) {
	r := db.conn.QueryRow(`SELECT `+rowColumns+` FROM notes WHERE id = ?`, id)
	row, err := scanRow(r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return row, nil
}

// DeleteNote removes a note, its FTS entry, and its link edges. It reports
// whether a row existed.
func (db *DB) DeleteNote(id string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, id)
	res, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("index: delete note: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListNotes returns rows matching the AND-combined filters, sorted by created
// descending. Limit is capped at maxListLimit.
func (db *DB) ListNotes(opts ListOptions) ([]Row, error) {
	var where []string
	var args []any
	if opts.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if !opts.DateFrom.IsZero() {
		where = append(where, "created >= ?")
		args = append(args, opts.DateFrom)
	}
	if !opts.DateTo.IsZero() {
		where = append(where, "created <= ?")
		args = append(args, opts.DateTo)
	}

	q := `SELECT ` + rowColumns + ` FROM notes`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created DESC LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// AllRefs returns the content hash and file path of every indexed row,
// keyed by id.
func (db *DB) AllRefs() (map[string]Ref, error) {
	rows, err := db.conn.Query(`SELECT id, content_hash, file_path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all refs: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Ref)
	for rows.Next() {
		var id string
		var ref Ref
		if err := rows.Scan(&id, &ref.ContentHash, &ref.FilePath); err != nil {
			return nil, err
		}
		out[id] = ref
	}
	return out, rows.Err()
}

// Backlinks returns the ids of all records that link to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanRow.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*Row, error) {
	var row Row
	var typ, status, tagsJSON, linksJSON string
	err := s.Scan(&row.ID, &typ, &row.Title, &row.Category, &status,
		&row.Author, &row.SourceURL, &row.Gist, &row.InputSource,
		&tagsJSON, &linksJSON, &row.Body, &row.ContentHash, &row.FilePath,
		&row.Created, &row.Updated)
	if err != nil {
		return nil, err
	}
	row.Type = models.Type(typ)
	row.Status = models.Status(status)
	_ = json.Unmarshal([]byte(tagsJSON), &row.Tags)
	_ = json.Unmarshal([]byte(linksJSON), &row.Links)
	return &row, nil
}

func collectRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func collectHits(rows *sql.Rows) ([]SearchHit, error) {
	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var typ, status, tagsJSON, linksJSON string
		err := rows.Scan(&hit.Row.ID, &typ, &hit.Row.Title, &hit.Row.Category,
			&status, &hit.Row.Author, &hit.Row.SourceURL, &hit.Row.Gist,
			&hit.Row.InputSource, &tagsJSON, &linksJSON, &hit.Row.Body,
			&hit.Row.ContentHash, &hit.Row.FilePath, &hit.Row.Created,
			&hit.Row.Updated, &hit.Snippet)
		if err != nil {
			return nil, err
		}
		hit.Row.Type = models.Type(typ)
		hit.Row.Status = models.Status(status)
		_ = json.Unmarshal([]byte(tagsJSON), &hit.Row.Tags)
		_ = json.Unmarshal([]byte(linksJSON), &hit.Row.Links)
		out = append(out, hit)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RowFromRecord flattens a record into its index projection.
func RowFromRecord(rec *models.Record, filePath, contentHash string) Row {
	return Row{
		ID:          rec.ID,
		Type:        rec.Type,
		Title:       rec.Title,
		Category:    rec.Category,
		Status:      rec.Status,
		Author:      rec.Author,
		SourceURL:   rec.SourceURL,
		Gist:        rec.Gist,
		InputSource: rec.InputSource,
		Tags:        rec.Tags,
		Links:       rec.Links,
		Body:        rec.Body,
		ContentHash: contentHash,
		FilePath:    filePath,
		Created:     rec.Created,
		Updated:     rec.Updated,
	}
}

// Record reconstructs a record from the row's denormalized content. Used as
// the fallback when the backing file is missing.
func (row *Row) Record() *models.Record {
	return &models.Record{
		ID:          row.ID,
		Type:        row.Type,
		Title:       row.Title,
		Created:     row.Created,
		Updated:     row.Updated,
		Tags:        row.Tags,
		Links:       row.Links,
		Category:    row.Category,
		SourceURL:   row.SourceURL,
		Author:      row.Author,
		Gist:        row.Gist,
		Status:      row.Status,
		InputSource: row.InputSource,
		Body:        row.Body,
	}
}
