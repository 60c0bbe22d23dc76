package export

import (
	"context"
	"database/sql"
	"fmt"

	// Blind import support for sqlite3.
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS frames (
		"ID"          INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"Identifier"  TEXT NOT NULL,
		"Source"      TEXT NOT NULL,
		"Mode"        TEXT NOT NULL,
		"Seq"         INTEGER,
		"Time"        INTEGER,
		"Length"      INTEGER,
		"Data"        TEXT
	);`
	sqliteInsertFrameTmpl = `INSERT INTO frames (
		Identifier,
		Source,
		Mode,
		Seq,
		Time,
		Length,
		Data
	) VALUES (?, ?, ?, ?, ?, ?, ?);`
)

// SQLite stores one row per frame in a sqlite database.
type SQLite struct {
	*sqlStore
}

// OpenSQLite opens (or creates) the sqlite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %w", path, err)
	}
	return db, nil
}

// NewSQLite creates the frames table if needed. The exporter takes
// ownership of db and closes it on Close.
func NewSQLite(ctx context.Context, db *sql.DB, identifier, source string) (*SQLite, error) {
	s, err := newSQLStore(ctx, "sqlite", db, sqliteCreateTableTmpl, sqliteInsertFrameTmpl, identifier, source)
	if err != nil {
		return nil, err
	}
	return &SQLite{s}, nil
}
