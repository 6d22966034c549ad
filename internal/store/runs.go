package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusDryRun  = "dry-run"
)

// Run is one sync invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	RangeStart time.Time
	RangeEnd   time.Time
	Updated    int
	Skipped    int
	Failed     int
	Status     string
	Error      string
}

// WrittenCell is one cell a run wrote.
type WrittenCell struct {
	RunID string
	Date  string
	Range string
	Value string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores a finished run and the cells it wrote in one transaction.
// A run without an ID is given one.
func (db *DB) RecordRun(r *Run, cells []WrittenCell) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, range_start, range_end, updated, skipped, failed, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.RangeStart.UTC().Format(time.RFC3339),
		r.RangeEnd.UTC().Format(time.RFC3339),
		r.Updated, r.Skipped, r.Failed, r.Status, nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, c := range cells {
		if _, err := tx.Exec(
			"INSERT INTO written_cells (run_id, date, cell_range, value) VALUES (?, ?, ?, ?)",
			r.ID, c.Date, c.Range, c.Value,
		); err != nil {
			return fmt.Errorf("inserting written cell %s: %w", c.Range, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		KeyLastRunID, r.ID,
	); err != nil {
		return fmt.Errorf("updating state: %w", err)
	}
	if r.Status == StatusOK || r.Status == StatusPartial {
		if _, err := tx.Exec(
			"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			KeyLastSuccessfulSync, r.FinishedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("updating state: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(
		`SELECT id, started_at, finished_at, range_start, range_end, updated, skipped, failed, status, error
		 FROM runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finishedStr, errStr sql.NullString
		var startedStr, rangeStartStr, rangeEndStr string

		if err := rows.Scan(
			&r.ID, &startedStr, &finishedStr, &rangeStartStr, &rangeEndStr,
			&r.Updated, &r.Skipped, &r.Failed, &r.Status, &errStr,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		r.Error = errStr.String
		r.StartedAt = parseTime(startedStr)
		r.FinishedAt = parseTime(finishedStr.String)
		r.RangeStart = parseTime(rangeStartStr)
		r.RangeEnd = parseTime(rangeEndStr)

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// CellsForRun returns the cells a run wrote in insertion order.
func (db *DB) CellsForRun(runID string) ([]WrittenCell, error) {
	rows, err := db.Query(
		"SELECT run_id, date, cell_range, value FROM written_cells WHERE run_id = ? ORDER BY id ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying written cells: %w", err)
	}
	defer rows.Close()

	var cells []WrittenCell
	for rows.Next() {
		var c WrittenCell
		if err := rows.Scan(&c.RunID, &c.Date, &c.Range, &c.Value); err != nil {
			return nil, fmt.Errorf("scanning written cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
