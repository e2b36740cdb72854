package index

import "github.com/starford/ansuz/internal/models"

// Store defines the interface for index operations. Consumers should depend
// on this interface rather than the concrete *DB type to facilitate testing
// with mocks.
type Store interface {
	UpsertNote(row Row) error
	GetNote(id string) (*Row, error)
	DeleteNote(id string) (bool, error)
	ListNotes(opts ListOptions) ([]Row, error)
	SearchFts(query string, typeFilter models.Type, limit int) ([]SearchHit, error)
	AllRefs() (map[string]Ref, error)
	Backlinks(target string) ([]string, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
