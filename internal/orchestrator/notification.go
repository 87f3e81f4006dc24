package orchestrator

import (
	"strconv"
	"time"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// Notification is published when a run reaches a terminal status.
type Notification struct {
	AnalysisID   string          `json:"analysisId"`
	URL          string          `json:"url"`
	Domain       string          `json:"domain"`
	FullMode     bool            `json:"fullMode"`
	Status       analyzer.Status `json:"status"`
	ArtifactURI  string          `json:"artifactUri,omitempty"`
	PagesVisited int             `json:"pagesVisited"`
	PagesFailed  int             `json:"pagesFailed"`
	LinksFound   int             `json:"linksFound"`
	Error        string          `json:"error,omitempty"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// Attributes exposes routing metadata to message brokers.
func (n Notification) Attributes() map[string]string {
	return map[string]string{
		"analysisId": n.AnalysisID,
		"domain":     n.Domain,
		"status":     string(n.Status),
		"fullMode":   strconv.FormatBool(n.FullMode),
	}
}
