package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/vector"
)

// stubEmbedder returns a fixed vector for every text, or a fixed error.
type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.vec) }

type fixture struct {
	svc *Service
	idx *index.DB
	vec *vector.Index
}

func newFixture(t *testing.T, embed *stubEmbedder) *fixture {
	t.Helper()
	_, files := testutil.TestVault(t)
	idx := testutil.TestIndex(t)
	vec := testutil.TestVector(t, 3)
	return &fixture{
		svc: New(files, idx, vec, embed, testutil.Logger()),
		idx: idx,
		vec: vec,
	}
}

// seed puts a record into the index (and optionally the vector store)
// without a backing file, exercising the index fallback on resolve.
func (f *fixture) seed(t *testing.T, id, title, body string, typ models.Type, v []float32) {
	t.Helper()
	row := index.Row{
		ID:          id,
		Type:        typ,
		Title:       title,
		Category:    "general",
		Status:      models.StatusSaved,
		Body:        body,
		ContentHash: checksum.Sum([]byte(body)),
		FilePath:    "missing/" + id + ".md",
		Created:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Updated:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	if err := f.idx.UpsertNote(row); err != nil {
		t.Fatalf("seed index %s: %v", id, err)
	}
	if v != nil {
		doc := vector.Document{ID: id, Vector: v, Type: string(typ), Title: title}
		if err := f.vec.Upsert(context.Background(), doc); err != nil {
			t.Fatalf("seed vector %s: %v", id, err)
		}
	}
}

func TestKeyword(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-a", "Raft consensus", "Leader election in raft.", models.TypeNote, nil)
	f.seed(t, "rec-b", "Gardening", "Tomatoes need sun.", models.TypeNote, nil)

	results, err := f.svc.Keyword(context.Background(), "raft", "", 10)
	if err != nil {
		t.Fatalf("Keyword: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "rec-a" {
		t.Errorf("results = %v", results)
	}
	if results[0].Score != 0 {
		t.Errorf("keyword score = %v, want 0", results[0].Score)
	}
}

func TestKeywordResolvesFromIndexWhenFileMissing(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-a", "Orphan row", "Indexed but file deleted out of band.", models.TypeNote, nil)

	results, err := f.svc.Keyword(context.Background(), "orphan", "", 10)
	if err != nil {
		t.Fatalf("Keyword: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	rec := results[0].Record
	if rec.ID != "rec-a" || rec.Body != "Indexed but file deleted out of band." {
		t.Errorf("fallback record = %+v", rec)
	}
}

func TestSemantic(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-close", "Close", "near the query", models.TypeNote, []float32{0.9, 0.1, 0})
	f.seed(t, "rec-far", "Far", "unrelated", models.TypeNote, []float32{0, 0, 1})

	results, err := f.svc.Semantic(context.Background(), "anything", "", 10)
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Record.ID != "rec-close" {
		t.Errorf("top hit = %s, want rec-close", results[0].Record.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSemanticTypeFilter(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-note", "Note", "x", models.TypeNote, []float32{1, 0, 0})
	f.seed(t, "rec-article", "Article", "y", models.TypeArticle, []float32{0.9, 0.1, 0})

	results, err := f.svc.Semantic(context.Background(), "q", models.TypeArticle, 10)
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "rec-article" {
		t.Errorf("results = %v", results)
	}
}

func TestSemanticEmbedFailure(t *testing.T) {
	f := newFixture(t, &stubEmbedder{err: errors.New("provider down")})
	if _, err := f.svc.Semantic(context.Background(), "q", "", 10); err == nil {
		t.Error("expected error when embedding fails")
	}
}

func TestSemanticSkipsDanglingVector(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	// Vector entry with no index row.
	doc := vector.Document{ID: "ghost", Vector: []float32{1, 0, 0}, Type: "note"}
	if err := f.vec.Upsert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	f.seed(t, "rec-real", "Real", "x", models.TypeNote, []float32{0.9, 0.1, 0})

	results, err := f.svc.Semantic(context.Background(), "q", "", 10)
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "rec-real" {
		t.Errorf("results = %v", results)
	}
}

func TestHybridBothListsFused(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	// A matches the keyword query only; C is close in vector space only;
	// B is both: second keyword hit and top vector hit.
	f.seed(t, "rec-a", "Hybrid search design", "hybrid ranking notes", models.TypeNote, []float32{0, 1, 0})
	f.seed(t, "rec-b", "Also hybrid", "mentions hybrid once", models.TypeNote, []float32{1, 0, 0})
	f.seed(t, "rec-c", "Vector only", "nothing matching", models.TypeNote, []float32{0.9, 0.1, 0})

	results, err := f.svc.Hybrid(context.Background(), "hybrid", "", 10)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// rec-b appears in both rankings, so it must come first.
	if results[0].Record.ID != "rec-b" {
		t.Errorf("top = %s, want rec-b", results[0].Record.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Errorf("scores not descending at %d: %v", i, results)
		}
	}
}

func TestHybridDegradesWhenEmbeddingFails(t *testing.T) {
	f := newFixture(t, &stubEmbedder{err: errors.New("provider down")})
	f.seed(t, "rec-a", "Keyword target", "findable text", models.TypeNote, nil)

	results, err := f.svc.Hybrid(context.Background(), "findable", "", 10)
	if err != nil {
		t.Fatalf("Hybrid should degrade, got error: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "rec-a" {
		t.Errorf("results = %v", results)
	}
}

func TestHybridLimitTruncates(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-a", "Topic one", "common term here", models.TypeNote, []float32{1, 0, 0})
	f.seed(t, "rec-b", "Topic two", "common term here", models.TypeNote, []float32{0.9, 0.1, 0})
	f.seed(t, "rec-c", "Topic three", "common term here", models.TypeNote, []float32{0.8, 0.2, 0})

	results, err := f.svc.Hybrid(context.Background(), "common", "", 2)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestHybridTypeFilter(t *testing.T) {
	f := newFixture(t, &stubEmbedder{vec: []float32{1, 0, 0}})
	f.seed(t, "rec-note", "Shared term", "shared", models.TypeNote, []float32{1, 0, 0})
	f.seed(t, "rec-article", "Shared term too", "shared", models.TypeArticle, []float32{0.9, 0.1, 0})

	results, err := f.svc.Hybrid(context.Background(), "shared", models.TypeArticle, 10)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	for _, r := range results {
		if r.Record.Type != models.TypeArticle {
			t.Errorf("type filter leaked: %+v", r.Record)
		}
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}
