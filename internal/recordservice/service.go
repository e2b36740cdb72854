// Package recordservice orchestrates the write path across the three stores.
// Within every mutation the write order is file → index → vector: the file
// store is authoritative and must be durably committed before the secondary
// stores are touched, so a crash between steps is always recoverable by the
// next reconciliation pass.
package recordservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/vector"
)

// embedTimeout bounds the best-effort embedding call on the write path.
const embedTimeout = 30 * time.Second

// Service coordinates file store, index, and vector operations.
type Service struct {
	files  *filestore.FileStore
	idx    index.Store
	vec    *vector.Index
	embed  embedding.Embedder
	logger *slog.Logger
}

// New creates a record service.
func New(files *filestore.FileStore, idx index.Store, vec *vector.Index, embed embedding.Embedder, logger *slog.Logger) *Service {
	return &Service{files: files, idx: idx, vec: vec, embed: embed, logger: logger}
}

// Create writes a new record to all three stores. A missing id is generated;
// a known id is a conflict.
func (s *Service) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if _, exists := s.files.PathFor(rec.ID); exists {
		return nil, fmt.Errorf("recordservice: create %s: %w", rec.ID, apperr.ErrAlreadyExists)
	}
	if !rec.Type.Valid() {
		return nil, fmt.Errorf("recordservice: unknown record type %q", rec.Type)
	}
	if rec.Status == "" {
		rec.Status = models.StatusSaved
	}

	path, err := s.files.Save(rec)
	if err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, rec, path); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get resolves a record by id, preferring the file store. A row-only record
// (file deleted out of band, not yet reconciled) is reconstructed from the
// index with a logged warning. An unknown id is a hard error.
func (s *Service) Get(ctx context.Context, id string) (*models.Record, error) {
	rec, err := s.files.ReadByID(id)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	row, err := s.idx.GetNote(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("recordservice: get %s: %w", id, apperr.ErrNotFound)
	}
	s.logger.Warn("recordservice: file missing, using index fallback", slog.String("id", id))
	return row.Record(), nil
}

// Update merges partial metadata (and optionally a new body) onto the record
// and re-propagates it to the index and vector stores.
func (s *Service) Update(ctx context.Context, id string, patch filestore.Patch, newBody *string) (*models.Record, error) {
	path, ok := s.files.PathFor(id)
	if !ok {
		return nil, fmt.Errorf("recordservice: update %s: %w", id, apperr.ErrNotFound)
	}
	rec, err := s.files.Update(path, patch, newBody)
	if err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, rec, path); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record from all three stores in file → index → vector
// order. An unknown id is a hard error.
func (s *Service) Delete(ctx context.Context, id string) error {
	path, ok := s.files.PathFor(id)
	if !ok {
		return fmt.Errorf("recordservice: delete %s: %w", id, apperr.ErrNotFound)
	}
	if err := s.files.Remove(path); err != nil {
		return err
	}
	if _, err := s.idx.DeleteNote(id); err != nil {
		return err
	}
	if err := s.vec.Remove(ctx, id); err != nil {
		// Dangling vector entries are pruned by the next reconciliation.
		s.logger.Warn("recordservice: vector remove failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	return nil
}

// List returns filtered rows from the index.
func (s *Service) List(_ context.Context, opts index.ListOptions) ([]index.Row, error) {
	return s.idx.ListNotes(opts)
}

// Related returns the union of the record's outgoing links and the ids that
// link back to it, sorted for determinism.
func (s *Service) Related(ctx context.Context, id string) ([]string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	back, err := s.idx.Backlinks(id)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, other := range append(append([]string{}, rec.Links...), back...) {
		if other == id {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	sort.Strings(out)
	return out, nil
}

// propagate upserts the index row (hard error) and the vector entry
// (best-effort: an embedding failure leaves the record keyword-searchable
// until the next reconciliation pass succeeds).
func (s *Service) propagate(ctx context.Context, rec *models.Record, path string) error {
	hash := checksum.Sum([]byte(rec.Body))
	if err := s.idx.UpsertNote(index.RowFromRecord(rec, path, hash)); err != nil {
		return err
	}

	ectx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()
	text := embedding.Text(rec.Title, rec.Body)
	vec, err := s.embed.Embed(ectx, text)
	if err != nil {
		s.logger.Warn("recordservice: embedding failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
		return nil
	}
	doc := vector.Document{
		ID:     rec.ID,
		Vector: vec,
		Text:   text,
		Type:   string(rec.Type),
		Title:  rec.Title,
	}
	if err := s.vec.Upsert(ctx, doc); err != nil {
		s.logger.Warn("recordservice: vector upsert failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
	}
	return nil
}
