// Package db stores artists, shows, venues, genres, and track snapshots
// in sqlite.
//
// Writes go through a single handle guarded by a mutex, since sqlite
// allows one writer at a time. Reads use a separate handle and can
// proceed concurrently with writes in WAL mode.
package db

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the store refused a write. Callers
	// holding restricted credentials see this on upserts against rows
	// they may not replace.
	ErrPermissionDenied = errors.New("permission denied")
)

type DB struct {
	mu sync.Mutex
	ro *gorm.DB
	rw *gorm.DB
}

// Open opens the sqlite database at the given path, creating it and its
// schema if necessary.
func Open(filename string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", filename)

	rw, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database '%s' for writing: %w", filename, err)
	}
	if err := rw.Exec(schema).Error; err != nil {
		return nil, fmt.Errorf("error creating schema in '%s': %w", filename, err)
	}

	ro, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database '%s' for reading: %w", filename, err)
	}

	return &DB{ro: ro, rw: rw}, nil
}

func (db *DB) Close() error {
	for _, handle := range []*gorm.DB{db.ro, db.rw} {
		sqldb, err := handle.DB()
		if err != nil {
			return fmt.Errorf("error getting database handle: %w", err)
		}
		if err := sqldb.Close(); err != nil {
			return fmt.Errorf("error closing database: %w", err)
		}
	}
	return nil
}

// hold serializes writers. Use as `defer db.hold()()`.
func (db *DB) hold() func() {
	db.mu.Lock()
	return db.mu.Unlock
}

// mapErr folds driver and orm errors into the package's sentinel
// errors so that callers can branch with errors.Is. It lives in
// errmap_cgo.go / errmap_nocgo.go because the driver's error type is
// only compiled when cgo is enabled.
