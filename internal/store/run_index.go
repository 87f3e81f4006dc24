package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the analysis_runs status column.
type RunStatus string

// Run statuses persisted in analysis_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// ParseRunStatus validates a status filter value.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch RunStatus(s) {
	case RunRunning, RunSuccess, RunError:
		return RunStatus(s), true
	}
	return "", false
}

// RunRecord is one row of the run index. It is a queryable summary; the
// authoritative step-by-step record is the run's progress log.
type RunRecord struct {
	ID     uuid.UUID
	URL    string
	Domain string
	// FullMode records whether the extended budget was used.
	FullMode   bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	// PagesVisited and PagesFailed accumulate page events.
	PagesVisited int64
	PagesFailed  int64
	// LinksFound is the unique link total reported at completion.
	LinksFound   int64
	LastUpdate   time.Time
	ErrorMessage *string
}

// RunIndex persists run summaries.
type RunIndex interface {
	// UpsertRunStart inserts the run in running status; repeated calls are
	// idempotent.
	UpsertRunStart(ctx context.Context, run RunRecord) error
	// AddPageStats applies page deltas to a run.
	AddPageStats(ctx context.Context, id uuid.UUID, deltaVisited, deltaFailed int64, at time.Time) error
	// CompleteRun marks the run finished.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, links int64, errMsg *string) error
	// GetRun loads one run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error)
	// ListRuns returns runs newest first, filtered by optional status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]RunRecord, error)
	Close() error
}
