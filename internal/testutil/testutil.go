// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/vector"
)

// Logger returns a logger that only surfaces errors during tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestIndex creates a temporary SQLite metadata index that is automatically cleaned up.
func TestIndex(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a FileStore over it.
func TestVault(t *testing.T) (string, *filestore.FileStore) {
	t.Helper()
	vaultDir := t.TempDir()
	files, err := filestore.New(vaultDir, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, files
}

// TestVector creates a temporary vector index with the given dimension.
func TestVector(t *testing.T, dimension int) *vector.Index {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-vec-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	vec, err := vector.Open(dbFile.Name(), dimension)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { vec.Close() })
	return vec
}

// FakeEmbedder is a deterministic in-memory embedding provider for tests.
// It records every embedded text and can be made to fail on demand.
type FakeEmbedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls []string
}

// NewFakeEmbedder returns a FakeEmbedder with the given dimension.
func NewFakeEmbedder(dimension int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dimension}
}

// Embed returns a deterministic vector derived from the text length,
// or the configured error.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, fmt.Errorf("embedding: %w", f.Err)
	}

	v := make([]float32, f.Dim)
	for i := range v {
		v[i] = float32((len(text)+i)%7) / 7.0
	}
	// Keep the vector non-zero so cosine distance is defined.
	v[0] += 1
	return v, nil
}

// Dimension returns the vector dimension.
func (f *FakeEmbedder) Dimension() int { return f.Dim }

// Calls returns the texts embedded so far.
func (f *FakeEmbedder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
