// Package history provides a SQLite archive of finished workflow sessions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eaeptdev/eaept/internal/log"
)

// schema is the SQL schema for the history database.
const schema = `
-- Finished workflow sessions
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    task TEXT NOT NULL,
    status TEXT NOT NULL,
    phases_completed INTEGER NOT NULL DEFAULT 0,
    total_duration_minutes REAL NOT NULL DEFAULT 0,
    total_resource_usage INTEGER NOT NULL DEFAULT 0,
    average_confidence REAL NOT NULL DEFAULT 0,
    average_quality REAL NOT NULL DEFAULT 0,
    optimizations INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished_at);
`

// Record is one archived workflow session.
type Record struct {
	ID                   string
	Task                 string
	Status               string
	PhasesCompleted      int
	TotalDurationMinutes float64
	TotalResourceUsage   int
	AverageConfidence    float64
	AverageQuality       float64
	Optimizations        int
	StartedAt            time.Time
	FinishedAt           time.Time
}

// DB holds the history database connection.
type DB struct {
	conn *sql.DB
}

// New opens the history database, creating the parent directory and schema
// as needed. The path ":memory:" opens an in-memory database.
func New(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to run history migrations: %w", err)
	}
	return db, nil
}

// migrate creates the schema if it does not exist.
func (d *DB) migrate() error {
	_, err := d.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Insert archives a finished session.
func (d *DB) Insert(record *Record) error {
	_, err := d.conn.Exec(`
		INSERT INTO sessions (
			id, task, status, phases_completed, total_duration_minutes,
			total_resource_usage, average_confidence, average_quality,
			optimizations, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Task, record.Status, record.PhasesCompleted,
		record.TotalDurationMinutes, record.TotalResourceUsage,
		record.AverageConfidence, record.AverageQuality,
		record.Optimizations, record.StartedAt, record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}

// List returns the most recently finished sessions, newest first.
func (d *DB) List(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.conn.Query(`
		SELECT id, task, status, phases_completed, total_duration_minutes,
		       total_resource_usage, average_confidence, average_quality,
		       optimizations, started_at, finished_at
		FROM sessions
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "List", "error", closeErr)
		}
	}()

	var records []*Record
	for rows.Next() {
		record := &Record{}
		if err := rows.Scan(
			&record.ID, &record.Task, &record.Status, &record.PhasesCompleted,
			&record.TotalDurationMinutes, &record.TotalResourceUsage,
			&record.AverageConfidence, &record.AverageQuality,
			&record.Optimizations, &record.StartedAt, &record.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
