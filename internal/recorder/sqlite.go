package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the load history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets `stocklens history` read while a warm run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS load_events (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			ticker     TEXT NOT NULL,
			source     TEXT NOT NULL,
			start_date TEXT,
			end_date   TEXT,
			row_count  INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_load_ts ON load_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_load_ticker ON load_events(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *SQLiteRecorder) RecordLoad(evt *LoadEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO load_events
		(id, timestamp, ticker, source, start_date, end_date, row_count, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.ID, at.UnixMilli(), evt.Ticker, evt.Source,
		formatDate(evt.Start), formatDate(evt.End), evt.Rows, evt.Err,
	)
	return err
}

// RecentLoads returns up to limit events, newest first.
func (r *SQLiteRecorder) RecentLoads(limit int) ([]LoadEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, ticker, source, start_date, end_date, row_count, error
		FROM load_events ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query load events: %w", err)
	}
	defer rows.Close()

	var out []LoadEvent
	for rows.Next() {
		var (
			evt        LoadEvent
			ts         int64
			start, end sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Ticker, &evt.Source, &start, &end, &evt.Rows, &errMsg); err != nil {
			return nil, fmt.Errorf("scan load event: %w", err)
		}
		evt.At = time.UnixMilli(ts)
		evt.Start = parseDate(start.String)
		evt.End = parseDate(end.String)
		evt.Err = errMsg.String
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
