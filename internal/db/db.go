// Package db provides SQLite storage for the mailpurge run history.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/daviddao/mailpurge/internal/types"
)

// DB wraps a SQLite connection for mailpurge operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a history database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// GenID generates a new run ID.
func GenID() string {
	return uuid.NewString()
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// RecordRun inserts a completed run. Missing ID and timestamps are filled in.
func (d *DB) RecordRun(r *types.Run) error {
	if r.ID == "" {
		r.ID = GenID()
	}
	if r.FinishedAt == "" {
		r.FinishedAt = Now()
	}
	if r.StartedAt == "" {
		r.StartedAt = r.FinishedAt
	}

	_, err := d.conn.Exec(`
		INSERT INTO runs
			(id, sender, query, estimate, max_results, found, deleted, failed_batches, elapsed_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Sender, r.Query, r.Estimate, r.Limit, r.Found, r.Deleted,
		r.FailedBatches, r.Elapsed.Milliseconds(), r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty sender lists
// every sender; limit <= 0 means no limit.
func (d *DB) ListRuns(sender string, limit int) ([]*types.Run, error) {
	query := `
		SELECT id, sender, query, estimate, max_results, found, deleted,
		       failed_batches, elapsed_ms, started_at, finished_at
		FROM runs`
	args := []any{}
	if sender != "" {
		query += ` WHERE sender = ?`
		args = append(args, sender)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*types.Run
	for rows.Next() {
		r := &types.Run{}
		var elapsedMS int64
		if err := rows.Scan(
			&r.ID, &r.Sender, &r.Query, &r.Estimate, &r.Limit, &r.Found, &r.Deleted,
			&r.FailedBatches, &elapsedMS, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SenderTotals aggregates deleted counts per sender, largest first.
func (d *DB) SenderTotals(limit int) ([]types.SenderTotal, error) {
	query := `
		SELECT sender, COUNT(*), COALESCE(SUM(deleted), 0), MAX(started_at)
		FROM runs
		GROUP BY sender
		ORDER BY SUM(deleted) DESC, sender ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []types.SenderTotal
	for rows.Next() {
		var t types.SenderTotal
		if err := rows.Scan(&t.Sender, &t.Runs, &t.Deleted, &t.LastRun); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TotalDeleted returns the number of messages deleted across runs. An empty
// sender counts every sender.
func (d *DB) TotalDeleted(sender string) int {
	query, args := scoped("SELECT COALESCE(SUM(deleted), 0) FROM runs", sender)
	var n int
	d.conn.QueryRow(query, args...).Scan(&n)
	return n
}

// RunCount returns the number of recorded runs. An empty sender counts every
// sender.
func (d *DB) RunCount(sender string) int {
	query, args := scoped("SELECT COUNT(*) FROM runs", sender)
	var n int
	d.conn.QueryRow(query, args...).Scan(&n)
	return n
}

func scoped(query, sender string) (string, []any) {
	if sender == "" {
		return query, nil
	}
	return query + " WHERE sender = ?", []any{sender}
}
