package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

const (
	rankSystemPrompt = `You are an AI assistant helping to find relevant links on a website.
You'll be given website data and a search query. Return the most relevant links as JSON.
Each result should include: title, description, url, and relevance (0-100).
Return only valid JSON of the form {"results": [...]} with no markdown or other text.`
	rankUserPrompt  = "Query: %q\n\nFind the most relevant links from this data:\n%s"
	rankTemperature = 0.3
	// rankCandidates bounds the prompt size.
	rankCandidates = 50
)

// Ranker scores links against a query.
type Ranker struct {
	client *Client
}

// NewRanker returns a Ranker backed by client.
func NewRanker(client *Client) *Ranker {
	return &Ranker{client: client}
}

// Rank sends the first 50 links to the model and returns its scored picks
// unfiltered and in model order.
func (r *Ranker) Rank(ctx context.Context, query string, links []analyzer.Link) ([]analyzer.Ranked, error) {
	if len(links) > rankCandidates {
		links = links[:rankCandidates]
	}
	data, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("marshal links: %w", err)
	}
	content, err := r.client.complete(ctx, completion{
		purpose:     "rank",
		system:      rankSystemPrompt,
		user:        fmt.Sprintf(rankUserPrompt, query, data),
		temperature: rankTemperature,
		jsonObject:  true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title       string  `json:"title"`
			Description string  `json:"description"`
			URL         string  `json:"url"`
			Relevance   float64 `json:"relevance"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	out := make([]analyzer.Ranked, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		out = append(out, analyzer.Ranked{
			Link:      analyzer.Link{Title: res.Title, Description: res.Description, URL: res.URL},
			Relevance: res.Relevance,
		})
	}
	return out, nil
}
