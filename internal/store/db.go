package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justyntemme/razorops/internal/debug"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Record is one file operation as it appears in the journal.
type Record struct {
	ID          string
	Kind        string
	Label       string
	Sources     []string
	Destination string
	State       string
	Transferred int64
	Total       int64
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Journal persists operation records in SQLite. Writes can be made directly
// with Record or queued on RequestChan for the Start loop.
type Journal struct {
	conn        *sql.DB
	RequestChan chan Record
}

// sourcesSep joins source paths in one column; NUL never occurs in a path.
const sourcesSep = "\x00"

func NewJournal() *Journal {
	return &Journal{
		RequestChan: make(chan Record, 64),
	}
}

// Open initializes the database connection and schema
func (j *Journal) Open(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return err
	}

	query := `
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		sources TEXT NOT NULL,
		destination TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		transferred INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL DEFAULT 0,
		finished_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS operations_started ON operations (started_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return err
	}

	j.conn = db
	debug.Log(debug.STORE, "journal opened at %s", dbPath)
	return nil
}

// Start records queued entries until RequestChan is closed.
func (j *Journal) Start() {
	for rec := range j.RequestChan {
		if err := j.Record(context.Background(), rec); err != nil {
			debug.Log(debug.STORE, "Store Error: recording %s: %v", rec.ID, err)
		}
	}
}

// Record inserts rec or replaces the row with the same ID.
func (j *Journal) Record(ctx context.Context, rec Record) error {
	if j.conn == nil {
		return errors.New("journal not open")
	}
	_, err := j.conn.ExecContext(ctx, `
	INSERT OR REPLACE INTO operations
		(id, kind, label, sources, destination, state, transferred, total, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Label, strings.Join(rec.Sources, sourcesSep), rec.Destination,
		rec.State, rec.Transferred, rec.Total, rec.Error,
		unixNano(rec.StartedAt), unixNano(rec.FinishedAt))
	return err
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Record, error) {
	if j.conn == nil {
		return nil, errors.New("journal not open")
	}
	rows, err := j.conn.QueryContext(ctx, `
	SELECT id, kind, label, sources, destination, state, transferred, total, error, started_at, finished_at
	FROM operations ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec               Record
			sources           string
			started, finished int64
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Label, &sources, &rec.Destination,
			&rec.State, &rec.Transferred, &rec.Total, &rec.Error, &started, &finished); err != nil {
			return nil, err
		}
		if sources != "" {
			rec.Sources = strings.Split(sources, sourcesSep)
		}
		rec.StartedAt = fromUnixNano(started)
		rec.FinishedAt = fromUnixNano(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (j *Journal) Close() {
	if j.conn != nil {
		j.conn.Close()
	}
}
