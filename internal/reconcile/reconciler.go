// Package reconcile drives the index and vector stores toward convergence
// with the file store. The file store is the authority; this is the
// correctness backstop that heals drift from crashes mid-write, manual file
// edits, and failed embedding calls.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/vector"
)

// Stats aggregates the outcome of one reconciliation pass. Unreadable files
// count toward Scanned but none of the other buckets.
type Stats struct {
	Scanned int `json:"scanned"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}

// defaultEmbedTimeout bounds each embedding call during a pass; a timeout is
// treated like any other embedding failure.
const defaultEmbedTimeout = 30 * time.Second

// Reconciler diffs the file store against the index using content hashes and
// repairs the index and vector stores to match.
type Reconciler struct {
	files        *filestore.FileStore
	idx          index.Store
	vec          *vector.Index
	embed        embedding.Embedder
	logger       *slog.Logger
	embedTimeout time.Duration
}

// New creates a reconciler. The embedder is injected, not owned.
func New(files *filestore.FileStore, idx index.Store, vec *vector.Index, embed embedding.Embedder, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		files:        files,
		idx:          idx,
		vec:          vec,
		embed:        embed,
		logger:       logger,
		embedTimeout: defaultEmbedTimeout,
	}
}

// Run walks the vault once and brings the index and vector stores up to
// date. Running twice with no intervening file changes yields
// added=0, updated=0, deleted=0 and skipped=scanned on the second pass.
func (r *Reconciler) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	refs, err := r.idx.AllRefs()
	if err != nil {
		return stats, err
	}
	files, err := r.files.Files()
	if err != nil {
		return stats, err
	}

	seen := make(map[string]struct{}, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		rec, err := r.files.Read(rel)
		if err != nil {
			r.logger.Warn("reconcile: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if rec == nil {
			// Unparseable or missing id; counted in Scanned only.
			r.logger.Warn("reconcile: skipping unparseable file", slog.String("path", rel))
			continue
		}

		hash := checksum.Sum([]byte(rec.Body))
		seen[rec.ID] = struct{}{}

		ref, exists := refs[rec.ID]
		switch {
		case !exists:
			if err := r.upsert(rec, rel, hash); err != nil {
				r.logger.Warn("reconcile: index add failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
				continue
			}
			r.embedUpsert(ctx, rec)
			stats.Added++
			r.logger.Debug("reconcile: added", slog.String("id", rec.ID), slog.String("path", rel))

		case ref.ContentHash != hash:
			if err := r.upsert(rec, rel, hash); err != nil {
				r.logger.Warn("reconcile: index update failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
				continue
			}
			r.embedUpsert(ctx, rec)
			stats.Updated++
			r.logger.Debug("reconcile: updated", slog.String("id", rec.ID), slog.String("path", rel))

		case ref.FilePath != rel:
			// Moved without a content change; the existing vector stays valid.
			if err := r.upsert(rec, rel, hash); err != nil {
				r.logger.Warn("reconcile: path update failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
				continue
			}
			stats.Updated++
			r.logger.Debug("reconcile: path updated", slog.String("id", rec.ID), slog.String("path", rel))

		default:
			stats.Skipped++
		}
	}

	// Deletion sweep: anything indexed but no longer on disk.
	for id := range refs {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := r.idx.DeleteNote(id); err != nil {
			r.logger.Warn("reconcile: index delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		if err := r.vec.Remove(ctx, id); err != nil {
			r.logger.Warn("reconcile: vector delete failed", slog.String("id", id), slog.String("error", err.Error()))
		}
		r.files.Unregister(id)
		stats.Deleted++
		r.logger.Debug("reconcile: deleted", slog.String("id", id))
	}

	return stats, nil
}

func (r *Reconciler) upsert(rec *models.Record, rel, hash string) error {
	if err := r.idx.UpsertNote(index.RowFromRecord(rec, rel, hash)); err != nil {
		return err
	}
	r.files.Register(rec.ID, rel)
	return nil
}

// embedUpsert re-embeds a record and upserts the vector store. Best-effort:
// failures and timeouts are logged, leaving the record keyword-searchable but
// not semantically searchable until a later pass succeeds.
func (r *Reconciler) embedUpsert(ctx context.Context, rec *models.Record) {
	ectx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	text := embedding.Text(rec.Title, rec.Body)
	vec, err := r.embed.Embed(ectx, text)
	if err != nil {
		r.logger.Warn("reconcile: embedding failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
		return
	}
	doc := vector.Document{
		ID:     rec.ID,
		Vector: vec,
		Text:   text,
		Type:   string(rec.Type),
		Title:  rec.Title,
	}
	if err := r.vec.Upsert(ctx, doc); err != nil {
		r.logger.Warn("reconcile: vector upsert failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
	}
}
