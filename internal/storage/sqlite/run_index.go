// Package sqlite stores the run index in a local SQLite file for single-node
// deployments and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/site-analyzer/internal/store"
)

// FileName is the database file created inside the configured directory.
const FileName = "analyzer.db"

// RunIndex implements store.RunIndex on SQLite.
type RunIndex struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the index in dir.
func Open(dir string) (*RunIndex, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	// one writer; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idx := &RunIndex{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := idx.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Path returns the database file path.
func (s *RunIndex) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *RunIndex) Close() error {
	return s.db.Close()
}

func (s *RunIndex) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	domain        TEXT NOT NULL,
	full_mode     INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	status        TEXT NOT NULL,
	pages_visited INTEGER NOT NULL DEFAULT 0,
	pages_failed  INTEGER NOT NULL DEFAULT 0,
	links_found   INTEGER NOT NULL DEFAULT 0,
	last_update   TEXT NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_started ON analysis_runs(started_at DESC);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// UpsertRunStart inserts the run; a repeated start is a no-op.
func (s *RunIndex) UpsertRunStart(ctx context.Context, run store.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_runs (id, url, domain, full_mode, started_at, status, last_update)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`,
		run.ID.String(), run.URL, run.Domain, run.FullMode,
		formatTime(run.StartedAt), string(store.RunRunning), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// AddPageStats applies page deltas.
func (s *RunIndex) AddPageStats(ctx context.Context, id uuid.UUID, deltaVisited, deltaFailed int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE analysis_runs
SET pages_visited = pages_visited + ?,
	pages_failed = pages_failed + ?,
	last_update = MAX(last_update, ?)
WHERE id = ?`, deltaVisited, deltaFailed, formatTime(at), id.String())
	if err != nil {
		return fmt.Errorf("add page stats: %w", err)
	}
	return requireRow(res, "add page stats", id)
}

// CompleteRun marks the run finished.
func (s *RunIndex) CompleteRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	links int64,
	errMsg *string,
) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE analysis_runs
SET finished_at = ?, status = ?, links_found = ?, error_message = ?, last_update = ?
WHERE id = ?`,
		formatTime(finishedAt), string(status), links, errMsg, formatTime(finishedAt), id.String())
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return requireRow(res, "complete run", id)
}

const runColumns = `id, url, domain, full_mode, started_at, finished_at, status,
	pages_visited, pages_failed, links_found, last_update, error_message`

// GetRun retrieves a single run by id.
func (s *RunIndex) GetRun(ctx context.Context, id uuid.UUID) (store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RunRecord{}, store.ErrNotFound
		}
		return store.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *RunIndex) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error) {
	var filter any
	if status != nil {
		filter = string(*status)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+` FROM analysis_runs
WHERE (?1 IS NULL OR status = ?1)
ORDER BY started_at DESC
LIMIT ?2 OFFSET ?3`, filter, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []store.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.RunRecord, error) {
	var (
		run        store.RunRecord
		id         string
		status     string
		started    string
		lastUpdate string
		finished   sql.NullString
		errMsg     sql.NullString
	)
	if err := row.Scan(
		&id, &run.URL, &run.Domain, &run.FullMode, &started, &finished, &status,
		&run.PagesVisited, &run.PagesFailed, &run.LinksFound, &lastUpdate, &errMsg,
	); err != nil {
		return store.RunRecord{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = parsed
	run.Status = store.RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return store.RunRecord{}, err
	}
	if run.LastUpdate, err = parseTime(lastUpdate); err != nil {
		return store.RunRecord{}, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return store.RunRecord{}, err
		}
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		msg := errMsg.String
		run.ErrorMessage = &msg
	}
	return run, nil
}

func requireRow(res sql.Result, op string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, store.ErrNotFound)
	}
	return nil
}

// timeLayout sorts lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
