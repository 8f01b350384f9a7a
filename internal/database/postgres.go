package database

import (
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore manages a timeline store in a PostgreSQL database.
// It implements the Store interface.
type PostgresStore struct {
	*sqlStore
}

// OpenPostgres opens an existing PostgreSQL timeline store.
func OpenPostgres(connStr string) (*PostgresStore, error) {
	db, err := open(&PostgresDialect{}, connStr)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db}, nil
}

// CreatePostgres creates the timeline schema on a PostgreSQL database.
// The database itself must already exist; this creates the table and indexes.
func CreatePostgres(connStr string, indexFields []string) (*PostgresStore, error) {
	db, err := create(&PostgresDialect{}, connStr, indexFields)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db}, nil
}
