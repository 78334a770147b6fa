// Package store persists run history and classified entities in LevelDB.
// Keys: "run:<id>" for run records, "entity:<runID>:<kind>:<name>" for
// entity records. Exported files live on disk and are only referenced here.
package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store wraps a LevelDB handle.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
