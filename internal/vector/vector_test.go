package vector

import (
	"context"
	"os"
	"testing"
)

func testIndex(t *testing.T, dim int) *Index {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-vec-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	ix, err := Open(f.Name(), dim)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestOpenRejectsBadDimension(t *testing.T) {
	if _, err := Open(":memory:", 0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ix := testIndex(t, 3)
	err := ix.Upsert(context.Background(), Document{ID: "a", Vector: []float32{1, 0}})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ix := testIndex(t, 3)
	ctx := context.Background()

	docs := []Document{
		{ID: "exact", Vector: []float32{1, 0, 0}, Type: "note", Title: "Exact"},
		{ID: "close", Vector: []float32{0.9, 0.1, 0}, Type: "note", Title: "Close"},
		{ID: "far", Vector: []float32{0, 0, 1}, Type: "article", Title: "Far"},
	}
	for _, d := range docs {
		if err := ix.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert %s: %v", d.ID, err)
		}
	}

	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	if hits[0].ID != "exact" || hits[1].ID != "close" || hits[2].ID != "far" {
		t.Errorf("order = %s, %s, %s", hits[0].ID, hits[1].ID, hits[2].ID)
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Errorf("scores not descending: %v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("exact match score = %f, want ~1", hits[0].Score)
	}
	if hits[0].Type != "note" || hits[0].Title != "Exact" {
		t.Errorf("display fields = %+v", hits[0])
	}
}

func TestSearchLimit(t *testing.T) {
	ix := testIndex(t, 3)
	ctx := context.Background()
	for _, d := range []Document{
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "b", Vector: []float32{0, 1, 0}},
		{ID: "c", Vector: []float32{0, 0, 1}},
	} {
		if err := ix.Upsert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("hits = %d, want 2", len(hits))
	}
}

func TestUpsertReplaces(t *testing.T) {
	ix := testIndex(t, 3)
	ctx := context.Background()

	if err := ix.Upsert(ctx, Document{ID: "a", Vector: []float32{1, 0, 0}, Title: "Old"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Upsert(ctx, Document{ID: "a", Vector: []float32{0, 1, 0}, Title: "New"}); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" || hits[0].Title != "New" {
		t.Errorf("hits = %v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("replaced vector not used, score = %f", hits[0].Score)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	ix := testIndex(t, 3)
	ctx := context.Background()

	if err := ix.Upsert(ctx, Document{ID: "a", Vector: []float32{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits after remove = %v", hits)
	}
	if err := ix.Remove(ctx, "a"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if err := ix.Remove(ctx, "never-existed"); err != nil {
		t.Errorf("Remove unknown: %v", err)
	}
}
