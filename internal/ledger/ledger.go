// Package ledger keeps the sqlite run history. Each collection run
// appends one row with its counts and outcome; the safety guard reads
// the last published total, and the status command reads recent rows.
// The exported dataset itself is never stored here.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE schema_version (
	version INTEGER NOT NULL
);
CREATE TABLE runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL UNIQUE,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	source_counts TEXT,
	total         INTEGER NOT NULL,
	merged        INTEGER NOT NULL,
	published     INTEGER NOT NULL,
	abort_reason  TEXT
);
CREATE INDEX idx_runs_published ON runs(published, id);
`

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// SourceCount holds one source's record counts for a run.
type SourceCount struct {
	Fetched int `json:"fetched"`
	Kept    int `json:"kept"`
}

// Run is one ledger row.
type Run struct {
	ID           int64
	RunID        string
	StartedAt    string
	FinishedAt   string
	SourceCounts map[string]SourceCount
	Total        int
	Merged       int
	Published    bool
	AbortReason  string
}

// Ledger is the sqlite-backed run history.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and runs migrations.
// Creates the parent directory (e.g. .keeptrack) if it does not exist.
func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	var tableCount int
	err := l.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := l.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := l.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = l.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := l.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun appends one run row and returns its id. Empty timestamps
// default to now.
func (l *Ledger) RecordRun(r Run) (int64, error) {
	if r.RunID == "" {
		return 0, errors.New("run id is empty")
	}
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	if r.FinishedAt == "" {
		r.FinishedAt = nowUTC()
	}
	var counts []byte
	if r.SourceCounts != nil {
		var err error
		counts, err = json.Marshal(r.SourceCounts)
		if err != nil {
			return 0, fmt.Errorf("marshal source counts: %w", err)
		}
	}
	published := 0
	if r.Published {
		published = 1
	}
	res, err := l.db.Exec(
		`INSERT INTO runs(run_id, started_at, finished_at, source_counts, total, merged, published, abort_reason)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt, r.FinishedAt, counts, r.Total, r.Merged, published, nullIfEmpty(r.AbortReason),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LastPublishedCount returns the total of the most recent published
// run. ok is false when no run has ever published.
func (l *Ledger) LastPublishedCount() (count int, ok bool, err error) {
	err = l.db.QueryRow(
		"SELECT total FROM runs WHERE published = 1 ORDER BY id DESC LIMIT 1",
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("last published count: %w", err)
	}
	return count, true, nil
}

// RecentRuns returns up to n runs, newest first.
func (l *Ledger) RecentRuns(n int) ([]Run, error) {
	rows, err := l.db.Query(
		`SELECT id, run_id, started_at, finished_at, source_counts, total, merged, published, abort_reason
		 FROM runs ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		var r Run
		var counts []byte
		var published int
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.StartedAt, &r.FinishedAt, &counts, &r.Total, &r.Merged, &published, &reason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(counts) > 0 {
			if err := json.Unmarshal(counts, &r.SourceCounts); err != nil {
				return nil, fmt.Errorf("unmarshal source counts: %w", err)
			}
		}
		r.Published = published == 1
		r.AbortReason = nullStr(reason)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
