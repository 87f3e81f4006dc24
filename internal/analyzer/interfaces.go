package analyzer

import (
	"context"
	"time"
)

// Session is one browser session owned by a single run. Calls are sequential.
type Session interface {
	// Navigate loads url, honoring ctx's deadline.
	Navigate(ctx context.Context, url string) error
	// Extract returns the title, meta description and classified links of
	// the currently loaded page.
	Extract(ctx context.Context) (PageData, error)
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Launcher acquires browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Summarizer condenses recent actions into one sentence.
type Summarizer interface {
	Summarize(ctx context.Context, actions []Action) (string, error)
}

// Enhancer rewrites link descriptions for one batch. The returned slice is
// aligned with links; an empty entry keeps the original description.
type Enhancer interface {
	Enhance(ctx context.Context, links []Link) ([]string, error)
}

// Ranked is one model-scored search candidate.
type Ranked struct {
	Link
	Relevance float64
}

// Ranker scores links against a free-text query.
type Ranker interface {
	Rank(ctx context.Context, query string, links []Link) ([]Ranked, error)
}

// LogStore persists progress log entries keyed by analysis id.
type LogStore interface {
	Create(ctx context.Context, run Run) error
	Merge(ctx context.Context, id string, update Update) (Run, error)
	Read(ctx context.Context, id string) (Run, error)
}

// ArtifactStore persists one SiteRecord per domain.
type ArtifactStore interface {
	Save(ctx context.Context, record SiteRecord) (string, error)
	Load(ctx context.Context, domain string) (SiteRecord, error)
}

// Publisher pushes completion notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces analysis ids.
type IDGenerator interface {
	NewID() (string, error)
}
