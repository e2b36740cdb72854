package index

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRow(id, title string) Row {
	return Row{
		ID:          id,
		Type:        "note",
		Title:       title,
		Category:    "general",
		Status:      "saved",
		Tags:        []string{"go"},
		Body:        "body of " + title,
		ContentHash: "hash-" + id,
		FilePath:    "note/general/" + id + ".md",
		Created:     time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Updated:     time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)

	row := testRow("rec-1", "First")
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	got, err := db.GetNote("rec-1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got == nil {
		t.Fatal("GetNote returned nil")
	}
	if got.Title != "First" || got.ContentHash != "hash-rec-1" {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"go"}) {
		t.Errorf("tags = %v", got.Tags)
	}

	// Upsert replaces in place.
	row.Title = "Renamed"
	row.ContentHash = "hash-2"
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote again: %v", err)
	}
	got, err = db.GetNote("rec-1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Renamed" || got.ContentHash != "hash-2" {
		t.Errorf("after upsert: %+v", got)
	}
}

func TestGetAbsent(t *testing.T) {
	db := testDB(t)
	got, err := db.GetNote("nope")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got != nil {
		t.Errorf("GetNote = %+v, want nil", got)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertNote(testRow("rec-1", "First")); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	existed, err := db.DeleteNote("rec-1")
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if !existed {
		t.Error("DeleteNote reported not existed")
	}

	got, err := db.GetNote("rec-1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got != nil {
		t.Error("note survived delete")
	}

	existed, err = db.DeleteNote("rec-1")
	if err != nil {
		t.Fatalf("second DeleteNote: %v", err)
	}
	if existed {
		t.Error("second delete reported existed")
	}
}

func TestListNotesFilters(t *testing.T) {
	db := testDB(t)

	a := testRow("rec-a", "A")
	a.Created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := testRow("rec-b", "B")
	b.Created = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	c := testRow("rec-c", "C")
	c.Type = "journal"
	c.Status = "archived"
	c.Created = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []Row{a, b, c} {
		if err := db.UpsertNote(r); err != nil {
			t.Fatalf("UpsertNote %s: %v", r.ID, err)
		}
	}

	rows, err := db.ListNotes(ListOptions{})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ListNotes = %d rows, want 3", len(rows))
	}
	if rows[0].ID != "rec-c" || rows[2].ID != "rec-a" {
		t.Errorf("order = %s..%s, want newest first", rows[0].ID, rows[2].ID)
	}

	rows, err = db.ListNotes(ListOptions{Type: "note"})
	if err != nil {
		t.Fatalf("ListNotes type: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("ListNotes(note) = %d rows, want 2", len(rows))
	}

	rows, err = db.ListNotes(ListOptions{Status: "archived"})
	if err != nil {
		t.Fatalf("ListNotes status: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "rec-c" {
		t.Errorf("ListNotes(archived) = %v", rows)
	}

	rows, err = db.ListNotes(ListOptions{
		DateFrom: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ListNotes dates: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "rec-b" {
		t.Errorf("ListNotes(date window) = %v", rows)
	}

	rows, err = db.ListNotes(ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListNotes page: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "rec-b" {
		t.Errorf("ListNotes(page) = %v", rows)
	}
}

func TestListLimitCapped(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 3; i++ {
		r := testRow(string(rune('a'+i)), "T")
		if err := db.UpsertNote(r); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := db.ListNotes(ListOptions{Limit: 10000})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d", len(rows))
	}
	// The oversized limit must not leak into the query verbatim; a cap of
	// maxListLimit still returns everything here.
	if maxListLimit != 100 {
		t.Errorf("maxListLimit = %d, want 100", maxListLimit)
	}
}

func TestAllRefs(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertNote(testRow("rec-1", "A")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertNote(testRow("rec-2", "B")); err != nil {
		t.Fatal(err)
	}

	refs, err := db.AllRefs()
	if err != nil {
		t.Fatalf("AllRefs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %v", refs)
	}
	if refs["rec-1"].ContentHash != "hash-rec-1" || refs["rec-1"].FilePath != "note/general/rec-1.md" {
		t.Errorf("ref = %+v", refs["rec-1"])
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)

	a := testRow("rec-a", "A")
	a.Links = []string{"rec-b"}
	b := testRow("rec-b", "B")
	c := testRow("rec-c", "C")
	c.Links = []string{"rec-b", "rec-a"}
	for _, r := range []Row{a, b, c} {
		if err := db.UpsertNote(r); err != nil {
			t.Fatal(err)
		}
	}

	back, err := db.Backlinks("rec-b")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("backlinks = %v", back)
	}

	// Upsert replaces edges.
	a.Links = nil
	if err := db.UpsertNote(a); err != nil {
		t.Fatal(err)
	}
	back, err = db.Backlinks("rec-b")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(back) != 1 || back[0] != "rec-c" {
		t.Errorf("backlinks after unlink = %v", back)
	}
}

func TestSearchFts(t *testing.T) {
	db := testDB(t)

	a := testRow("rec-a", "Distributed consensus")
	a.Body = "Raft handles leader election."
	b := testRow("rec-b", "Gardening tips")
	b.Body = "Tomatoes need sun."
	c := testRow("rec-c", "Consensus reading list")
	c.Type = "article"
	c.Body = "Papers about consensus protocols."
	for _, r := range []Row{a, b, c} {
		if err := db.UpsertNote(r); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := db.SearchFts("consensus", "", 10)
	if err != nil {
		t.Fatalf("SearchFts: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	for _, h := range hits {
		if h.Row.ID == "rec-b" {
			t.Error("unrelated record matched")
		}
	}

	hits, err = db.SearchFts("consensus", "article", 10)
	if err != nil {
		t.Fatalf("SearchFts typed: %v", err)
	}
	if len(hits) != 1 || hits[0].Row.ID != "rec-c" {
		t.Errorf("typed hits = %v", hits)
	}

	hits, err = db.SearchFts("zebra", "", 10)
	if err != nil {
		t.Fatalf("SearchFts miss: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("miss hits = %v", hits)
	}
}
