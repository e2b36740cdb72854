// Package filestore implements the durable, human-editable source of truth:
// one Markdown file per record under baseDir/{type}/{category}/, plus an
// in-memory id→path index rebuilt by a directory scan at construction time.
package filestore

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// FileStore owns a directory tree of record files. The id→path index is
// exclusively owned by the instance; other components reach it only through
// methods.
type FileStore struct {
	root   string // absolute path to the vault directory
	logger *slog.Logger

	mu    sync.RWMutex
	paths map[string]string // id → relative path
}

// New creates a FileStore rooted at the given directory and populates the
// id→path index with a recursive scan. The directory must already exist.
// Malformed files are skipped with a logged warning, never fatal.
func New(root string, logger *slog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("filestore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filestore: root is not a directory: %s", abs)
	}
	f := &FileStore{
		root:   abs,
		logger: logger,
		paths:  make(map[string]string),
	}
	if err := f.scan(); err != nil {
		return nil, err
	}
	return f, nil
}

// Root returns the absolute vault root.
func (f *FileStore) Root() string {
	return f.root
}

// scan walks the vault once and registers every parseable record.
func (f *FileStore) scan() error {
	files, err := f.Files()
	if err != nil {
		return err
	}
	for _, rel := range files {
		rec, err := f.Read(rel)
		if err != nil {
			return err
		}
		if rec == nil {
			f.logger.Warn("filestore: skipping malformed file", slog.String("path", rel))
			continue
		}
		f.mu.Lock()
		if prev, ok := f.paths[rec.ID]; ok && prev != rel {
			f.logger.Warn("filestore: duplicate id, keeping first",
				slog.String("id", rec.ID),
				slog.String("kept", prev),
				slog.String("ignored", rel))
		} else {
			f.paths[rec.ID] = rel
		}
		f.mu.Unlock()
	}
	return nil
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FileStore) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("filestore: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("filestore: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("filestore: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// Files returns the relative path of every .md file under the vault root.
func (f *FileStore) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: walk: %w", err)
	}
	return out, nil
}

// Save writes rec to its canonical path and registers the id. Records that
// already have a registered path are rewritten in place, so a title change
// never forks a second file for the same id. Writing the canonical path of a
// different id fails with ErrConflict.
func (f *FileStore) Save(rec *models.Record) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("filestore: record has no id")
	}
	now := time.Now().UTC()
	if rec.Created.IsZero() {
		rec.Created = now
	}
	if rec.Updated.IsZero() {
		rec.Updated = now
	}
	if rec.Category == "" {
		rec.Category = models.DefaultCategory
	}

	f.mu.RLock()
	rel, exists := f.paths[rec.ID]
	f.mu.RUnlock()
	if !exists {
		rel = RecordPath(rec)
		if owner := f.ownerOf(rel); owner != "" && owner != rec.ID {
			return "", fmt.Errorf("filestore: path %s belongs to record %s: %w", rel, owner, apperr.ErrConflict)
		}
	}

	data, err := Encode(rec)
	if err != nil {
		return "", err
	}
	if err := f.writeAtomic(rel, data); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.paths[rec.ID] = rel
	f.mu.Unlock()
	return rel, nil
}

// ownerOf returns the id registered at rel, or empty string.
func (f *FileStore) ownerOf(rel string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, p := range f.paths {
		if p == rel {
			return id
		}
	}
	return ""
}

// Read parses the record at path. A missing or unparseable file yields
// (nil, nil) — "absent", not a hard failure.
func (f *FileStore) Read(path string) (*models.Record, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: read %s: %w", path, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadByID resolves id through the in-memory index and delegates to Read.
func (f *FileStore) ReadByID(id string) (*models.Record, error) {
	f.mu.RLock()
	rel, ok := f.paths[id]
	f.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return f.Read(rel)
}

// PathFor returns the registered relative path for id.
func (f *FileStore) PathFor(id string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rel, ok := f.paths[id]
	return rel, ok
}

// Register records an id→path mapping discovered outside the write path
// (reconciliation after an out-of-band file creation or move).
func (f *FileStore) Register(id, path string) {
	f.mu.Lock()
	f.paths[id] = path
	f.mu.Unlock()
}

// Unregister drops an id from the index.
func (f *FileStore) Unregister(id string) {
	f.mu.Lock()
	delete(f.paths, id)
	f.mu.Unlock()
}

// Patch holds partial metadata for Update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Tags        *[]string
	Links       *[]string
	Category    *string
	SourceURL   *string
	Author      *string
	Gist        *string
	Status      *models.Status
	InputSource *string
	ImagePath   *string
	OCRText     *string
}

func (p Patch) apply(rec *models.Record) {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Tags != nil {
		rec.Tags = *p.Tags
	}
	if p.Links != nil {
		rec.Links = *p.Links
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.SourceURL != nil {
		rec.SourceURL = *p.SourceURL
	}
	if p.Author != nil {
		rec.Author = *p.Author
	}
	if p.Gist != nil {
		rec.Gist = *p.Gist
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.InputSource != nil {
		rec.InputSource = *p.InputSource
	}
	if p.ImagePath != nil {
		rec.ImagePath = *p.ImagePath
	}
	if p.OCRText != nil {
		rec.OCRText = *p.OCRText
	}
}

// Update merges partial metadata (and optionally a new body) onto the record
// at path, bumps updated, and rewrites the file in place. Unlike reads, an
// unknown path is a hard error: the caller's intent cannot be satisfied.
func (f *FileStore) Update(path string, patch Patch, newBody *string) (*models.Record, error) {
	rec, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("filestore: update %s: %w", path, apperr.ErrNotFound)
	}

	patch.apply(rec)
	if newBody != nil {
		rec.Body = *newBody
	}
	rec.Updated = time.Now().UTC()

	data, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := f.writeAtomic(path, data); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the file at path and its index entry. Removing a
// non-existent path is a no-op.
func (f *FileStore) Remove(path string) error {
	rec, err := f.Read(path)
	if err != nil {
		return err
	}
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %s: %w", path, err)
	}
	if rec != nil {
		f.Unregister(rec.ID)
	}
	return nil
}

// List returns all records, optionally filtered by type, sorted by created
// descending. Malformed files are skipped with a logged warning.
func (f *FileStore) List(typeFilter models.Type) ([]*models.Record, error) {
	files, err := f.Files()
	if err != nil {
		return nil, err
	}
	var out []*models.Record
	for _, rel := range files {
		rec, err := f.Read(rel)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			f.logger.Warn("filestore: skipping malformed file", slog.String("path", rel))
			continue
		}
		if typeFilter != "" && rec.Type != typeFilter {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// writeAtomic writes content at rel: tmp file → fsync → rename.
func (f *FileStore) writeAtomic(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("filestore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	success = true
	return nil
}
