package analyzer

import (
	"time"
)

// Status represents the lifecycle state of an analysis run.
type Status string

// Run status values written to the progress log.
const (
	StatusStarting                  Status = "starting"
	StatusLaunchingBrowser          Status = "launching_browser"
	StatusNavigatingToURL           Status = "navigating_to_url"
	StatusExtractingInitialMetadata Status = "extracting_initial_metadata"
	StatusCrawlingLinks             Status = "crawling_links"
	StatusCrawlingInProgress        Status = "crawling_in_progress"
	StatusFinalizing                Status = "finalizing"
	StatusCompleted                 Status = "completed"
	StatusError                     Status = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Action is one human-readable step appended to a run's log.
type Action struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
}

// Summary is a natural-language digest of recent actions.
type Summary struct {
	Time    time.Time `json:"time"`
	Summary string    `json:"summary"`
}

// Run is the persisted progress log entry for one analysis.
type Run struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Domain    string     `json:"domain"`
	FullMode  bool       `json:"fullMode"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Status    Status     `json:"status"`
	Progress  float64    `json:"progress"`
	Actions   []Action   `json:"actions"`
	Summaries []Summary  `json:"summaries"`
	Error     string     `json:"error,omitempty"`
}

// Update is a typed partial applied to a Run by Apply. Non-nil scalar fields
// overwrite; Actions and Summaries are appended.
type Update struct {
	Status    *Status
	Progress  *float64
	EndTime   *time.Time
	Error     *string
	Actions   []Action
	Summaries []Summary
}

// StatusUpdate builds an Update that moves the run to status at progress.
func StatusUpdate(status Status, progress float64) Update {
	return Update{Status: &status, Progress: &progress}
}

// ProgressUpdate builds an Update that only touches progress.
func ProgressUpdate(progress float64) Update {
	return Update{Progress: &progress}
}

// WithAction appends an action entry to the update.
func (u Update) WithAction(at time.Time, action string) Update {
	u.Actions = append(u.Actions, Action{Time: at, Action: action})
	return u
}

// WithSummary appends a summary entry to the update.
func (u Update) WithSummary(at time.Time, summary string) Update {
	u.Summaries = append(u.Summaries, Summary{Time: at, Summary: summary})
	return u
}

// WithEnd stamps the update with an end time.
func (u Update) WithEnd(at time.Time) Update {
	u.EndTime = &at
	return u
}

// WithError records the failure message.
func (u Update) WithError(msg string) Update {
	u.Error = &msg
	return u
}

// Apply merges u into a copy of r. Progress never decreases.
func (r Run) Apply(u Update) Run {
	out := r
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > out.Progress {
		out.Progress = *u.Progress
	}
	if u.EndTime != nil {
		end := *u.EndTime
		out.EndTime = &end
	}
	if u.Error != nil {
		out.Error = *u.Error
	}
	if len(u.Actions) > 0 {
		out.Actions = append(append(make([]Action, 0, len(r.Actions)+len(u.Actions)), r.Actions...), u.Actions...)
	}
	if len(u.Summaries) > 0 {
		out.Summaries = append(append(make([]Summary, 0, len(r.Summaries)+len(u.Summaries)), r.Summaries...), u.Summaries...)
	}
	return out
}

// RecentActions returns up to n of the newest actions, oldest first.
func (r Run) RecentActions(n int) []Action {
	if n <= 0 || len(r.Actions) == 0 {
		return nil
	}
	if len(r.Actions) <= n {
		return append([]Action(nil), r.Actions...)
	}
	return append([]Action(nil), r.Actions[len(r.Actions)-n:]...)
}

// Link is one entry of a site map.
type Link struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// SiteRecord is the durable per-domain artifact produced by a successful run.
type SiteRecord struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"lastUpdated"`
	Links       []Link    `json:"links"`
}

// HasLink reports whether a link targeting url is already recorded.
func (r *SiteRecord) HasLink(url string) bool {
	for _, l := range r.Links {
		if l.URL == url {
			return true
		}
	}
	return false
}

// AddLink appends l unless its URL is already present. It reports whether
// the link was added.
func (r *SiteRecord) AddLink(l Link) bool {
	if r.HasLink(l.URL) {
		return false
	}
	r.Links = append(r.Links, l)
	return true
}

// LinkKind classifies where on a page a link was found.
type LinkKind string

// Link classifications produced by page extraction.
const (
	LinkNavigation LinkKind = "navigation"
	LinkContent    LinkKind = "content"
	LinkButton     LinkKind = "button"
	LinkFooter     LinkKind = "footer"
)

// ExtractedLink is a raw link discovered on a rendered page.
type ExtractedLink struct {
	URL      string
	Text     string
	Kind     LinkKind
	Location string
}

// Describe returns the default description recorded for the link.
func (l ExtractedLink) Describe() string {
	return string(l.Kind) + " link found in " + l.Location
}

// PageData is what extraction returns for one loaded page.
type PageData struct {
	URL         string
	Title       string
	Description string
	Links       []ExtractedLink
}

// Job is a queued analysis run.
type Job struct {
	ID       string
	URL      string
	Domain   string
	FullMode bool
}
