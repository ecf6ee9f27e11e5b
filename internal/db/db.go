// Package db persists completed analytics snapshots in SQLite.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it when
// schema.sql changes shape.
const schemaVersion = 1

// ErrNewerSchema is returned by Open for a database written by a
// newer estateview.
var ErrNewerSchema = errors.New("database schema is newer than this build")

// DB holds one writer connection and a small read-only pool over
// the same WAL-mode file, so dashboard reads never queue behind a
// snapshot write.
type DB struct {
	path   string
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // one write transaction at a time
}

func dsn(path string, readOnly bool) string {
	q := url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
		"_cache_size":   {"-8000"},
	}
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_synchronous", "NORMAL")
	}
	return path + "?" + q.Encode()
}

// Open opens the snapshot store at path, creating the file, its
// directory and the schema as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", dsn(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	db := &DB{path: path, writer: writer}
	// The read-only pool cannot open a file without a schema.
	if err := db.migrate(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("preparing %s: %w", path, err)
	}

	reader, err := sql.Open("sqlite3", dsn(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	db.reader = reader
	return db, nil
}

// migrate applies schema.sql to a fresh file and refuses files
// stamped with a newer schema version.
func (db *DB) migrate() error {
	var v int
	if err := db.writer.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	switch {
	case v > schemaVersion:
		return fmt.Errorf("%w (version %d, supported %d)",
			ErrNewerSchema, v, schemaVersion)
	case v == schemaVersion:
		return nil
	}
	return db.Update(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(schemaSQL); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
		return err
	})
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the writer and the read pool.
func (db *DB) Close() error {
	var rerr error
	if db.reader != nil {
		rerr = db.reader.Close()
	}
	return errors.Join(db.writer.Close(), rerr)
}

// Update runs fn in a write transaction, committing when fn
// returns nil.
func (db *DB) Update(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
