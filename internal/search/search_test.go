package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/artifact"
	"github.com/JakeFAU/site-analyzer/internal/storage/memory"
)

var errModel = errors.New("model unavailable")

type fakeRanker struct {
	ranked []analyzer.Ranked
	err    error
	calls  int
}

func (f *fakeRanker) Rank(context.Context, string, []analyzer.Link) ([]analyzer.Ranked, error) {
	f.calls++
	return f.ranked, f.err
}

func seedRecord(t *testing.T, links []analyzer.Link) *artifact.Store {
	t.Helper()
	store := artifact.New(memory.NewBlobStore())
	_, err := store.Save(context.Background(), analyzer.SiteRecord{
		URL:    "https://example.com",
		Domain: "example",
		Title:  "Example",
		Links:  links,
	})
	require.NoError(t, err)
	return store
}

func siteLinks() []analyzer.Link {
	return []analyzer.Link{
		{Title: "Pricing", Description: "Plans and PRICES for teams", URL: "https://example.com/pricing"},
		{Title: "About us", Description: "Company history", URL: "https://example.com/about"},
		{Title: "Careers", Description: "Open positions", URL: "https://example.com/jobs"},
	}
}

func TestSearchDirectMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	ranker := &fakeRanker{}
	svc := New(seedRecord(t, siteLinks()), ranker, zap.NewNop())

	resp, err := svc.Search(context.Background(), "example", "prices")
	require.NoError(t, err)
	assert.Equal(t, "example", resp.Domain)
	assert.Equal(t, "https://example.com", resp.URL)
	assert.Equal(t, "prices", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, MatchDirect, resp.Results[0].MatchType)
	assert.Nil(t, resp.Results[0].Relevance)
	assert.Zero(t, ranker.calls, "direct hits skip the model")
}

func TestSearchSemanticFiltersAndCaps(t *testing.T) {
	t.Parallel()

	var ranked []analyzer.Ranked
	for i := range 15 {
		ranked = append(ranked, analyzer.Ranked{
			Link:      analyzer.Link{Title: fmt.Sprintf("r%d", i), URL: fmt.Sprintf("https://example.com/%d", i)},
			Relevance: float64(25 + i*5),
		})
	}
	ranked = append(ranked, analyzer.Ranked{Link: analyzer.Link{Title: "edge"}, Relevance: 30})
	svc := New(seedRecord(t, siteLinks()), &fakeRanker{ranked: ranked}, nil)

	resp, err := svc.Search(context.Background(), "example", "work here")
	require.NoError(t, err)
	require.Len(t, resp.Results, MaxResults)
	prev := 101.0
	for _, r := range resp.Results {
		assert.Equal(t, MatchSemantic, r.MatchType)
		require.NotNil(t, r.Relevance)
		assert.Greater(t, *r.Relevance, float64(MinRelevance))
		assert.LessOrEqual(t, *r.Relevance, prev)
		prev = *r.Relevance
	}
	assert.Equal(t, "r14", resp.Results[0].Title)
}

func TestSearchSemanticNothingRelevant(t *testing.T) {
	t.Parallel()

	ranker := &fakeRanker{ranked: []analyzer.Ranked{{Link: analyzer.Link{Title: "weak"}, Relevance: 12}}}
	svc := New(seedRecord(t, siteLinks()), ranker, nil)

	resp, err := svc.Search(context.Background(), "example", "open history")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchKeywordFallbackOnModelError(t *testing.T) {
	t.Parallel()

	svc := New(seedRecord(t, siteLinks()), &fakeRanker{err: errModel}, nil)

	resp, err := svc.Search(context.Background(), "example", "open history")
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "About us", resp.Results[0].Title)
	assert.Equal(t, "Careers", resp.Results[1].Title)
	for _, r := range resp.Results {
		assert.Equal(t, MatchKeyword, r.MatchType)
	}
}

func TestSearchWithoutRankerUsesKeywords(t *testing.T) {
	t.Parallel()

	svc := New(seedRecord(t, siteLinks()), nil, nil)

	resp, err := svc.Search(context.Background(), "example", "teams positions")
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	svc := New(seedRecord(t, siteLinks()), nil, nil)

	_, err := svc.Search(context.Background(), "", "q")
	require.ErrorIs(t, err, analyzer.ErrInput)
	assert.Contains(t, err.Error(), "Domain is required")

	_, err = svc.Search(context.Background(), "example", "  ")
	require.ErrorIs(t, err, analyzer.ErrInput)
	assert.Contains(t, err.Error(), "Search query is required")

	_, err = svc.Search(context.Background(), "missing", "q")
	require.ErrorIs(t, err, analyzer.ErrNotFound)
}

func TestDirectCapsAtTen(t *testing.T) {
	t.Parallel()

	var links []analyzer.Link
	for i := range 14 {
		links = append(links, analyzer.Link{Title: fmt.Sprintf("Doc %d", i), URL: fmt.Sprintf("https://example.com/%d", i)})
	}
	svc := New(seedRecord(t, links), nil, nil)

	resp, err := svc.Search(context.Background(), "example", "DOC")
	require.NoError(t, err)
	assert.Len(t, resp.Results, MaxResults)
}

func TestKeywordIgnoresBlankTokens(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Keyword(siteLinks(), "   "))
	assert.Len(t, Keyword(siteLinks(), "  CAREERS  "), 1)
}
