package analyzer

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w") and test with
// errors.Is at the boundaries.
var (
	// ErrInput marks a missing or invalid URL or query.
	ErrInput = errors.New("invalid input")
	// ErrNavigation marks a single page that failed to load.
	ErrNavigation = errors.New("navigation failed")
	// ErrBudgetExceeded marks a crawl cut short by its time or page budget.
	// It is informational and never fails a run.
	ErrBudgetExceeded = errors.New("crawl budget exceeded")
	// ErrEnhancement marks a model or parse failure while enhancing descriptions.
	ErrEnhancement = errors.New("description enhancement failed")
	// ErrFatalRun marks any failure that aborts a run.
	ErrFatalRun = errors.New("analysis run failed")
	// ErrNotFound marks an unknown analysis id or domain.
	ErrNotFound = errors.New("not found")
	// ErrIO marks a storage read or write failure.
	ErrIO = errors.New("storage i/o failed")
	// ErrParse marks stored data that could not be decoded.
	ErrParse = errors.New("stored data could not be parsed")
	// ErrRunFinalized is returned when merging into a completed or failed run.
	ErrRunFinalized = errors.New("analysis run already finalized")
	// ErrQueueFull is returned when no run slot is available.
	ErrQueueFull = errors.New("analysis queue is full")
)
