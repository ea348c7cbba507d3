package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one launch or dispatcher invocation
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "launch", "exec" or "compose"
	Name       string    `json:"name"` // service name or dispatcher op
	Argv       string    `json:"argv"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	ExitCode   int       `json:"exit_code"`
	Reason     string    `json:"reason,omitempty"`
}

// History is a SQLite-backed record of what the tool has run
type History struct {
	db *sql.DB
	mu sync.Mutex
}

// DefaultPath returns the history database location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "finstack-history.db"
	}
	return filepath.Join(home, ".finstack", "history.db")
}

// Open opens (and initializes) the history database.
// WAL and a single writer keep concurrent CLI invocations from tripping
// over SQLITE_BUSY.
func Open(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return h, nil
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		argv TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		exit_code INTEGER,
		reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Append stores a completed record, assigning an ID when missing
func (h *History) Append(rec *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	var finished interface{}
	if !rec.FinishedAt.IsZero() {
		finished = rec.FinishedAt
	}

	_, err := h.db.Exec(
		`INSERT INTO runs (id, kind, name, argv, started_at, finished_at, exit_code, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Name, rec.Argv, rec.StartedAt, finished, rec.ExitCode, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first
func (h *History) List(limit int) ([]*Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.Query(
		`SELECT id, kind, name, argv, started_at, finished_at, exit_code, reason
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var finished sql.NullTime
		var exitCode sql.NullInt64
		var reason sql.NullString

		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Name, &rec.Argv,
			&rec.StartedAt, &finished, &exitCode, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		if exitCode.Valid {
			rec.ExitCode = int(exitCode.Int64)
		}
		if reason.Valid {
			rec.Reason = reason.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}

// FormatArgv joins argv for storage
func FormatArgv(argv []string) string {
	return strings.Join(argv, " ")
}
