package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// Journal appends entries to one run's progress log, stamping them with the
// injected clock.
type Journal struct {
	store analyzer.LogStore
	id    string
	clock analyzer.Clock
}

// NewJournal binds store to the run identified by id.
func NewJournal(store analyzer.LogStore, id string, clock analyzer.Clock) *Journal {
	return &Journal{store: store, id: id, clock: clock}
}

// ID returns the analysis id the journal writes to.
func (j *Journal) ID() string { return j.id }

// Now returns the journal clock's current time.
func (j *Journal) Now() time.Time { return j.clock.Now() }

// Merge applies u to the stored run.
func (j *Journal) Merge(ctx context.Context, u analyzer.Update) (analyzer.Run, error) {
	run, err := j.store.Merge(ctx, j.id, u)
	if err != nil {
		return analyzer.Run{}, fmt.Errorf("merge progress log %s: %w", j.id, err)
	}
	return run, nil
}

// Status moves the run to status at progress and appends actions.
func (j *Journal) Status(ctx context.Context, status analyzer.Status, progress float64, actions ...string) (analyzer.Run, error) {
	u := analyzer.StatusUpdate(status, progress)
	now := j.Now()
	for _, a := range actions {
		u = u.WithAction(now, a)
	}
	return j.Merge(ctx, u)
}

// Action appends a single action entry.
func (j *Journal) Action(ctx context.Context, action string) error {
	_, err := j.Merge(ctx, analyzer.Update{}.WithAction(j.Now(), action))
	return err
}
