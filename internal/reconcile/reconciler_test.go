package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/vector"
)

type fixture struct {
	dir   string
	files *filestore.FileStore
	idx   *index.DB
	vec   *vector.Index
	embed *testutil.FakeEmbedder
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, files := testutil.TestVault(t)
	idx := testutil.TestIndex(t)
	vec := testutil.TestVector(t, 4)
	embed := testutil.NewFakeEmbedder(4)
	return &fixture{
		dir:   dir,
		files: files,
		idx:   idx,
		vec:   vec,
		embed: embed,
		rec:   New(files, idx, vec, embed, testutil.Logger()),
	}
}

func (f *fixture) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(f.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func recordFile(id, title, body string) string {
	return "---\nid: " + id + "\ntype: note\ntitle: " + title + "\ncategory: general\n---\n" + body + "\n"
}

func TestRunAddsNewFiles(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "body a"))
	f.writeFile(t, "note/general/b.md", recordFile("rec-b", "B", "body b"))

	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Scanned != 2 || stats.Added != 2 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Errorf("stats = %+v", stats)
	}

	row, err := f.idx.GetNote("rec-a")
	if err != nil || row == nil {
		t.Fatalf("rec-a not indexed: %v, %v", row, err)
	}
	if row.FilePath != "note/general/a.md" {
		t.Errorf("file path = %q", row.FilePath)
	}
	if _, ok := f.files.PathFor("rec-a"); !ok {
		t.Error("rec-a not registered in file store")
	}
	if len(f.embed.Calls()) != 2 {
		t.Errorf("embed calls = %d, want 2", len(f.embed.Calls()))
	}
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "body a"))

	if _, err := f.rec.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Added != 0 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Errorf("second pass not idempotent: %+v", stats)
	}
	if stats.Skipped != stats.Scanned {
		t.Errorf("skipped = %d, scanned = %d", stats.Skipped, stats.Scanned)
	}
}

func TestRunDetectsContentChange(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "original body"))
	if _, err := f.rec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	embedsBefore := len(f.embed.Calls())

	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "edited body"))
	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Updated != 1 || stats.Added != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := len(f.embed.Calls()) - embedsBefore; got != 1 {
		t.Errorf("embed calls for one change = %d, want 1", got)
	}

	row, err := f.idx.GetNote("rec-a")
	if err != nil || row == nil {
		t.Fatal("row missing")
	}
	if row.Body != "edited body" {
		t.Errorf("body = %q", row.Body)
	}
}

func TestRunPathOnlyMoveSkipsEmbedding(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "stable body"))
	if _, err := f.rec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	embedsBefore := len(f.embed.Calls())

	// Move the file without touching its content.
	oldAbs := filepath.Join(f.dir, "note/general/a.md")
	newAbs := filepath.Join(f.dir, "note/general/renamed.md")
	if err := os.Rename(oldAbs, newAbs); err != nil {
		t.Fatal(err)
	}

	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := len(f.embed.Calls()) - embedsBefore; got != 0 {
		t.Errorf("embed calls for path-only move = %d, want 0", got)
	}

	row, err := f.idx.GetNote("rec-a")
	if err != nil || row == nil {
		t.Fatal("row missing")
	}
	if row.FilePath != "note/general/renamed.md" {
		t.Errorf("file path = %q", row.FilePath)
	}
}

func TestRunDeletionSweep(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "body"))
	f.writeFile(t, "note/general/b.md", recordFile("rec-b", "B", "body"))
	if _, err := f.rec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(f.dir, "note/general/b.md")); err != nil {
		t.Fatal(err)
	}

	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Deleted != 1 {
		t.Errorf("stats = %+v", stats)
	}

	row, err := f.idx.GetNote("rec-b")
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Error("rec-b survived deletion sweep")
	}
	if _, ok := f.files.PathFor("rec-b"); ok {
		t.Error("rec-b still registered")
	}

	hits, err := f.vec.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.ID == "rec-b" {
			t.Error("rec-b vector survived deletion sweep")
		}
	}
}

func TestRunCountsUnparseableInScannedOnly(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/good.md", recordFile("rec-a", "A", "body"))
	f.writeFile(t, "note/general/junk.md", "no frontmatter at all\n")

	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Scanned != 2 {
		t.Errorf("scanned = %d, want 2", stats.Scanned)
	}
	if stats.Added != 1 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunSurvivesEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embed.Err = os.ErrDeadlineExceeded
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "body"))

	stats, err := f.rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("stats = %+v", stats)
	}
	// Keyword-searchable even though embedding failed.
	row, err := f.idx.GetNote("rec-a")
	if err != nil || row == nil {
		t.Error("record not indexed despite embedding failure")
	}
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "note/general/a.md", recordFile("rec-a", "A", "body"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.rec.Run(ctx); err == nil {
		t.Error("expected context error")
	}
}
