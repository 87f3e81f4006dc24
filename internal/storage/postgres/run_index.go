// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/site-analyzer/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "analysis_runs"

// Config controls the Postgres connection pool used for the run index.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool used here; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunIndex implements store.RunIndex on Postgres.
type RunIndex struct {
	pool  pool
	table string
}

// NewRunIndex connects to Postgres using cfg.
func NewRunIndex(ctx context.Context, cfg Config) (*RunIndex, error) {
	if cfg.DSN == "" {
		return nil, errors.New("index.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewRunIndexWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return idx, nil
}

// NewRunIndexWithPool constructs an index from an existing pool (primarily for testing).
func NewRunIndexWithPool(p pool, table string) (*RunIndex, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunIndex{pool: p, table: table}, nil
}

// Migrate creates the run table when it does not exist.
func (s *RunIndex) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            UUID PRIMARY KEY,
	url           TEXT NOT NULL,
	domain        TEXT NOT NULL,
	full_mode     BOOLEAN NOT NULL DEFAULT FALSE,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	pages_visited BIGINT NOT NULL DEFAULT 0,
	pages_failed  BIGINT NOT NULL DEFAULT 0,
	links_found   BIGINT NOT NULL DEFAULT 0,
	last_update   TIMESTAMPTZ NOT NULL,
	error_message TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RunIndex) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// UpsertRunStart inserts the run; a repeated start is a no-op.
func (s *RunIndex) UpsertRunStart(ctx context.Context, run store.RunRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, url, domain, full_mode, started_at, status, last_update)
VALUES ($1, $2, $3, $4, $5, $6, $5)
ON CONFLICT (id) DO NOTHING`, s.table)
	_, err := s.pool.Exec(ctx, query, run.ID, run.URL, run.Domain, run.FullMode, run.StartedAt, string(store.RunRunning))
	if err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// AddPageStats applies page deltas.
func (s *RunIndex) AddPageStats(ctx context.Context, id uuid.UUID, deltaVisited, deltaFailed int64, at time.Time) error {
	query := fmt.Sprintf(`
UPDATE %s
SET pages_visited = pages_visited + $1,
	pages_failed = pages_failed + $2,
	last_update = GREATEST(last_update, $3)
WHERE id = $4`, s.table)
	tag, err := s.pool.Exec(ctx, query, deltaVisited, deltaFailed, at, id)
	if err != nil {
		return fmt.Errorf("add page stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("add page stats %s: %w", id, store.ErrNotFound)
	}
	return nil
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
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, links_found = $3, error_message = $4, last_update = $1
WHERE id = $5`, s.table)
	tag, err := s.pool.Exec(ctx, query, finishedAt, string(status), links, errMsg, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", id, store.ErrNotFound)
	}
	return nil
}

const runColumns = `id, url, domain, full_mode, started_at, finished_at, status,
	pages_visited, pages_failed, links_found, last_update, error_message`

// GetRun retrieves a single run by id.
func (s *RunIndex) GetRun(ctx context.Context, id uuid.UUID) (store.RunRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, runColumns, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RunRecord{}, store.ErrNotFound
		}
		return store.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *RunIndex) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE ($1::text IS NULL OR status = $1)
ORDER BY started_at DESC
LIMIT $2 OFFSET $3`, runColumns, s.table)
	var filter any
	if status != nil {
		filter = string(*status)
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

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

func scanRun(row pgx.Row) (store.RunRecord, error) {
	var (
		run    store.RunRecord
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.URL,
		&run.Domain,
		&run.FullMode,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.PagesVisited,
		&run.PagesFailed,
		&run.LinksFound,
		&run.LastUpdate,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.RunRecord{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
