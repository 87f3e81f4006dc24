package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

const (
	summarySystemPrompt = "You are an AI assistant that summarizes web crawling actions into a single, concise sentence."
	summaryUserPrompt   = "Summarize these recent web crawling actions into a single, short sentence that describes what the crawler is currently doing. Actions: %s"
	summaryTemperature  = 0.3
	summaryMaxTokens    = 50
)

// Summarizer condenses crawl actions into one sentence.
type Summarizer struct {
	client *Client
}

// NewSummarizer returns a Summarizer backed by client.
func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

// Summarize asks the model for a one-sentence digest of actions.
func (s *Summarizer) Summarize(ctx context.Context, actions []analyzer.Action) (string, error) {
	payload, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}
	out, err := s.client.complete(ctx, completion{
		purpose:     "summary",
		system:      summarySystemPrompt,
		user:        fmt.Sprintf(summaryUserPrompt, payload),
		temperature: summaryTemperature,
		maxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("empty summary")
	}
	return out, nil
}
