// Package sqlite is the durable store: alerts, drawings, trigger history,
// closed candles and indicator snapshots.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/alerts.db"
}

// Store is the SQLite-backed implementation of model.AlertStore,
// model.DrawingStore and model.SnapshotStore.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT    PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			active     INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			data       TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts (symbol);

		CREATE TABLE IF NOT EXISTS drawings (
			id     TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			data   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_drawings_symbol ON drawings (symbol);

		CREATE TABLE IF NOT EXISTS alert_history (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT    NOT NULL,
			symbol   TEXT    NOT NULL,
			message  TEXT    NOT NULL,
			target   REAL    NOT NULL,
			price    REAL    NOT NULL,
			ts       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS indicator_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
