// Package search composes the keyword index and the vector index into
// keyword, semantic, and hybrid queries.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/vector"
)

// Result pairs a resolved record with a score. Score semantics differ by
// mode: keyword results carry a uniform score (ordering comes from the
// store), semantic results carry the raw similarity, hybrid results carry the
// fused RRF score.
type Result struct {
	Record  *models.Record `json:"record"`
	Score   float64        `json:"score"`
	Snippet string         `json:"snippet,omitempty"`
}

// Service runs searches against the index and vector stores, resolving full
// records through the file store with index-row fallback.
type Service struct {
	files  *filestore.FileStore
	idx    index.Store
	vec    *vector.Index
	embed  embedding.Embedder
	logger *slog.Logger
}

// New creates a search service. The embedder is injected, not owned.
func New(files *filestore.FileStore, idx index.Store, vec *vector.Index, embed embedding.Embedder, logger *slog.Logger) *Service {
	return &Service{files: files, idx: idx, vec: vec, embed: embed, logger: logger}
}

// Keyword delegates to the index's full-text search. Ordering comes from the
// store and is deterministic for identical input.
func (s *Service) Keyword(ctx context.Context, query string, typeFilter models.Type, limit int) ([]Result, error) {
	hits, err := s.idx.SearchFts(query, typeFilter, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for i := range hits {
		out = append(out, Result{
			Record:  s.resolve(&hits[i].Row),
			Snippet: hits[i].Snippet,
		})
	}
	return out, nil
}

// Semantic embeds the query, runs nearest-neighbor search, drops hits whose
// denormalized type does not match the filter, and resolves the survivors
// through the index. Ids with no index row are dangling and skipped.
func (s *Service) Semantic(ctx context.Context, query string, typeFilter models.Type, limit int) ([]Result, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	hits, err := s.vec.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if typeFilter != "" && h.Type != string(typeFilter) {
			continue
		}
		row, err := s.idx.GetNote(h.ID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			// Dangling vector entry; pruned by the next reconciliation.
			s.logger.Warn("search: skipping dangling vector id", slog.String("id", h.ID))
			continue
		}
		out = append(out, Result{Record: s.resolve(row), Score: h.Score})
	}
	return out, nil
}

// Hybrid runs keyword and vector search concurrently, over-fetching limit*2
// candidates from each, and fuses them with reciprocal rank fusion. If the
// semantic leg fails it degrades to keyword-only with a logged warning.
func (s *Service) Hybrid(ctx context.Context, query string, typeFilter models.Type, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	type kwOut struct {
		hits []index.SearchHit
		err  error
	}
	type vecOut struct {
		hits []vector.Hit
		err  error
	}
	kwCh := make(chan kwOut, 1)
	vecCh := make(chan vecOut, 1)

	go func() {
		hits, err := s.idx.SearchFts(query, typeFilter, limit*2)
		kwCh <- kwOut{hits, err}
	}()
	go func() {
		queryVec, err := s.embed.Embed(ctx, query)
		if err != nil {
			vecCh <- vecOut{nil, err}
			return
		}
		hits, err := s.vec.Search(ctx, queryVec, limit*2)
		vecCh <- vecOut{hits, err}
	}()

	kw := <-kwCh
	vc := <-vecCh

	if kw.err != nil && vc.err != nil {
		return nil, fmt.Errorf("search: both rankers failed: keyword: %v; vector: %w", kw.err, vc.err)
	}
	if kw.err != nil {
		s.logger.Warn("search: keyword leg failed, using vector only", slog.String("error", kw.err.Error()))
	}
	if vc.err != nil {
		s.logger.Warn("search: semantic leg failed, using keyword only", slog.String("error", vc.err.Error()))
	}

	// Ranked id lists. Vector hits are type-filtered before ranking.
	rows := make(map[string]*index.Row)
	snippets := make(map[string]string)
	var kwIDs, vecIDs []string
	for i := range kw.hits {
		row := kw.hits[i].Row
		kwIDs = append(kwIDs, row.ID)
		rows[row.ID] = &row
		snippets[row.ID] = kw.hits[i].Snippet
	}
	for _, h := range vc.hits {
		if typeFilter != "" && h.Type != string(typeFilter) {
			continue
		}
		vecIDs = append(vecIDs, h.ID)
	}

	fused := fuseRRF(kwIDs, vecIDs)

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if fused[ids[i]] != fused[ids[j]] {
			return fused[ids[i]] > fused[ids[j]]
		}
		return ids[i] < ids[j]
	})

	out := make([]Result, 0, limit)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		row, ok := rows[id]
		if !ok {
			r, err := s.idx.GetNote(id)
			if err != nil {
				return nil, err
			}
			if r == nil {
				s.logger.Warn("search: skipping dangling vector id", slog.String("id", id))
				continue
			}
			row = r
		}
		out = append(out, Result{
			Record:  s.resolve(row),
			Score:   fused[id],
			Snippet: snippets[id],
		})
	}
	return out, nil
}

// resolve prefers reading the full record from the file store by the row's
// stored path. When the file is missing or no longer holds the same id, the
// record is reconstructed from the row's denormalized content with a logged
// warning — search never hard-fails because a file was deleted out of band.
func (s *Service) resolve(row *index.Row) *models.Record {
	rec, err := s.files.Read(row.FilePath)
	if err == nil && rec != nil && rec.ID == row.ID {
		return rec
	}
	if err != nil {
		s.logger.Warn("search: file read failed, using index fallback",
			slog.String("id", row.ID),
			slog.String("path", row.FilePath),
			slog.String("error", err.Error()))
	} else {
		s.logger.Warn("search: file missing, using index fallback",
			slog.String("id", row.ID),
			slog.String("path", row.FilePath))
	}
	return row.Record()
}
