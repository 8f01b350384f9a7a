package database

import (
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// SQLiteStore manages a timeline store in a SQLite file.
// It implements the Store interface.
type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite opens an existing SQLite timeline store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// sql.Open would create a missing file
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db, err := open(&SQLiteDialect{}, path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db}, nil
}

// CreateSQLite creates or extends a SQLite timeline store.
// indexFields specifies which canonical fields to index. Pass nil to use DefaultIndexFields.
func CreateSQLite(path string, indexFields []string) (*SQLiteStore, error) {
	db, err := create(&SQLiteDialect{}, path, indexFields)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db}, nil
}
