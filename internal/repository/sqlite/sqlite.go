package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// In-process access goes through one connection. WAL and the busy timeout keep
// outside readers (sqlite3 shell, backups) from failing the writers with SQLITE_BUSY.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000"

const schema = `
CREATE TABLE IF NOT EXISTS potholes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	damage_percentage REAL DEFAULT 0,
	created_by TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_potholes_session ON potholes(session_id);
CREATE INDEX IF NOT EXISTS idx_potholes_created_at ON potholes(created_at);
`

// DB is a single-connection SQLite handle. Writers take the embedded lock
// exclusively, readers share it.
type DB struct {
	sync.RWMutex
	conn *sql.DB
}

// New opens (creating if needed) the database file at dbPath and applies the schema.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the pool to repositories in this package and to tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}
