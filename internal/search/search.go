// Package search answers free-text queries against a stored site record.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// MatchType names the strategy that produced a result.
type MatchType string

// Match types, in the order they are tried.
const (
	MatchDirect   MatchType = "direct"
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
)

const (
	// MaxResults caps every response.
	MaxResults = 10
	// MinRelevance is the exclusive lower bound for semantic matches.
	MinRelevance = 30
)

// Result is one matching link.
type Result struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	MatchType   MatchType `json:"matchType"`
	Relevance   *float64  `json:"relevance,omitempty"`
}

// Response is the search payload returned to clients.
type Response struct {
	Domain  string   `json:"domain"`
	URL     string   `json:"url"`
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Service searches artifacts. The ranker is optional; without it queries
// that have no direct match use keyword matching.
type Service struct {
	artifacts analyzer.ArtifactStore
	ranker    analyzer.Ranker
	logger    *zap.Logger
}

// New builds a Service.
func New(artifacts analyzer.ArtifactStore, ranker analyzer.Ranker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{artifacts: artifacts, ranker: ranker, logger: logger}
}

// Search looks up query in the links of the record stored for domain.
func (s *Service) Search(ctx context.Context, domain, query string) (Response, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return Response{}, fmt.Errorf("%w: Domain is required", analyzer.ErrInput)
	}
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("%w: Search query is required", analyzer.ErrInput)
	}
	record, err := s.artifacts.Load(ctx, domain)
	if err != nil {
		return Response{}, err
	}

	results := Direct(record.Links, query)
	if len(results) == 0 {
		results, err = s.semantic(ctx, query, record.Links)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			s.logger.Warn("semantic search failed, using keywords",
				zap.String("domain", domain), zap.Error(err))
			results = Keyword(record.Links, query)
		}
	}
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return Response{
		Domain:  record.Domain,
		URL:     record.URL,
		Query:   query,
		Results: results,
	}, nil
}

var errNoRanker = errors.New("no ranker configured")

func (s *Service) semantic(ctx context.Context, query string, links []analyzer.Link) ([]Result, error) {
	if s.ranker == nil {
		return nil, errNoRanker
	}
	ranked, err := s.ranker.Rank(ctx, query, links)
	if err != nil {
		return nil, err
	}
	return Semantic(ranked), nil
}

// Direct returns links whose title or description contains query, ignoring
// case.
func Direct(links []analyzer.Link, query string) []Result {
	fold := cases.Fold()
	needle := fold.String(query)
	var out []Result
	for _, l := range links {
		if strings.Contains(fold.String(l.Title), needle) || strings.Contains(fold.String(l.Description), needle) {
			out = append(out, result(l, MatchDirect))
		}
	}
	return out
}

// Semantic keeps model picks scoring above MinRelevance, best first.
func Semantic(ranked []analyzer.Ranked) []Result {
	kept := make([]analyzer.Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Relevance > MinRelevance {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Relevance > kept[j].Relevance })

	out := make([]Result, 0, len(kept))
	for _, r := range kept {
		res := result(r.Link, MatchSemantic)
		relevance := r.Relevance
		res.Relevance = &relevance
		out = append(out, res)
	}
	return out
}

// Keyword returns links matching any whitespace-separated token of query.
func Keyword(links []analyzer.Link, query string) []Result {
	fold := cases.Fold()
	tokens := strings.Fields(fold.String(query))
	var out []Result
	for _, l := range links {
		title, desc := fold.String(l.Title), fold.String(l.Description)
		for _, tok := range tokens {
			if strings.Contains(title, tok) || strings.Contains(desc, tok) {
				out = append(out, result(l, MatchKeyword))
				break
			}
		}
	}
	return out
}

func result(l analyzer.Link, kind MatchType) Result {
	return Result{Title: l.Title, Description: l.Description, URL: l.URL, MatchType: kind}
}
