// Package storage persists conversation sessions in SQLite.
//
// The database uses WAL mode with a single writer connection and a separate
// reader pool, so readers never queue behind a write.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/kewalaka/muffinbot/internal/config"
)

const memoryPath = ":memory:"

// DB wraps the SQLite writer and reader connections.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string
	now    func() time.Time
}

// New opens (creating if needed) the database at dbPath and initializes the
// schema. Use ":memory:" for a private in-memory database.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != memoryPath {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time; an in-memory database only exists
	// on the connection that created it.
	writer.SetMaxOpenConns(1)
	writer.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	reader := writer
	if dbPath != memoryPath {
		reader, err = sql.Open("sqlite", dsn(dbPath))
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open reader: %w", err)
		}
		reader.SetMaxOpenConns(4)
		reader.SetMaxIdleConns(2)
		reader.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)
	}

	db := &DB{
		writer: writer,
		reader: reader,
		path:   dbPath,
		now:    time.Now,
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// dsn builds a modernc DSN that applies the pragmas to every pooled connection.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.DatabaseBusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if dbPath != memoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}

// NewTestDB creates an in-memory database for tests.
func NewTestDB(ctx context.Context) (*DB, error) {
	return New(ctx, memoryPath)
}

// Close closes both connection pools.
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping checks both pools are usable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.writer.PingContext(ctx); err != nil {
		return err
	}
	return db.reader.PingContext(ctx)
}

// Reader returns the pool used for queries.
func (db *DB) Reader() *sql.DB {
	return db.reader
}

// Writer returns the single writer connection.
func (db *DB) Writer() *sql.DB {
	return db.writer
}

// CreateSnapshot writes a consistent copy of the database to destPath using
// VACUUM INTO. destPath must not exist.
func (db *DB) CreateSnapshot(ctx context.Context, destPath string) error {
	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	if _, err := db.writer.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}
