// ABOUTME: Append-only SQLite log of build attempts for post-mortem inspection.
// ABOUTME: Observational only; the supervisor's in-memory registry stays the source of truth.
package history

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/greenroom/supervisor"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	app_id      TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	healed      INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	port        INTEGER NOT NULL DEFAULT 0,
	error_tail  TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_app ON attempts(app_id);
`

// Attempt is one recorded build-and-start attempt.
type Attempt struct {
	ID        string    `json:"id"`
	AppID     string    `json:"app_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Healed    int       `json:"healed"`
	Duration  int64     `json:"duration_ms"`
	Port      int       `json:"port"`
	ErrorTail string    `json:"error_tail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed attempt log. It implements
// supervisor.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the attempt database at path. ":memory:"
// works for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordAttempt stamps a ULID on the attempt and appends it. Recording is
// best-effort: a failed insert is logged, never raised, so a broken log
// cannot take down a Start call.
func (s *Store) RecordAttempt(a supervisor.Attempt) {
	id := ulid.Make().String()
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, app_id, kind, status, healed, duration_ms, port, error_tail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.AppID, a.Kind, a.Status, a.Healed, a.Duration.Milliseconds(), a.Port, a.ErrorTail,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("history record app=%s status=%s failed: %v", a.AppID, a.Status, err)
		return
	}
	log.Printf("history record id=%s app=%s status=%s healed=%d duration_ms=%d", id, a.AppID, a.Status, a.Healed, a.Duration.Milliseconds())
}

// Recent returns up to limit attempts, newest first. ULIDs sort
// lexicographically by creation time, so ordering by id is ordering by
// time.
func (s *Store) Recent(limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, app_id, kind, status, healed, duration_ms, port, error_tail, created_at
		 FROM attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var createdAt string
		if err := rows.Scan(&a.ID, &a.AppID, &a.Kind, &a.Status, &a.Healed, &a.Duration, &a.Port, &a.ErrorTail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ForApp returns up to limit attempts for one appID, newest first.
func (s *Store) ForApp(appID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, app_id, kind, status, healed, duration_ms, port, error_tail, created_at
		 FROM attempts WHERE app_id = ? ORDER BY id DESC LIMIT ?`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts for %s: %w", appID, err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var createdAt string
		if err := rows.Scan(&a.ID, &a.AppID, &a.Kind, &a.Status, &a.Healed, &a.Duration, &a.Port, &a.ErrorTail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
