package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

const (
	enhanceSystemPrompt = "You are an AI assisting with website analysis. For each link, provide a concise, improved description based on the link text and type. Keep descriptions under 100 characters."
	enhanceUserPrompt   = "Improve these link descriptions: %s"
	enhanceTemperature  = 0.3
	enhanceMaxTokens    = 1000
)

// Enhancer rewrites link descriptions in batches.
type Enhancer struct {
	client *Client
}

// NewEnhancer returns an Enhancer backed by client.
func NewEnhancer(client *Client) *Enhancer {
	return &Enhancer{client: client}
}

// Enhance returns one description per link. Entries the model did not
// answer are left empty.
func (e *Enhancer) Enhance(ctx context.Context, links []analyzer.Link) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}
	batch, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal batch: %w", analyzer.ErrEnhancement, err)
	}
	content, err := e.client.complete(ctx, completion{
		purpose:     "enhance",
		system:      enhanceSystemPrompt,
		user:        fmt.Sprintf(enhanceUserPrompt, batch),
		temperature: enhanceTemperature,
		maxTokens:   enhanceMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", analyzer.ErrEnhancement, err)
	}

	if out, ok := parseDescriptionArray(content, len(links)); ok {
		return out, nil
	}
	titles := make([]string, len(links))
	for i, l := range links {
		titles[i] = l.Title
	}
	return ParseFallbackDescriptions(content, titles), nil
}

// parseDescriptionArray accepts a JSON array of {"description": ...} whose
// length matches want.
func parseDescriptionArray(content string, want int) ([]string, bool) {
	var items []struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &items); err != nil {
		return nil, false
	}
	if len(items) != want {
		return nil, false
	}
	out := make([]string, want)
	for i, it := range items {
		out[i] = strings.TrimSpace(it.Description)
	}
	return out, true
}

// ParseFallbackDescriptions scans free-form model output line by line. For
// each title it takes the first line mentioning the title, either quoted or
// as a whole word (case-insensitive), and returns the text after the first
// colon. Titles with no usable line yield an empty entry.
func ParseFallbackDescriptions(content string, titles []string) []string {
	lines := strings.Split(content, "\n")
	out := make([]string, len(titles))
	for i, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		re, err := titlePattern(title)
		if err != nil {
			continue
		}
		for _, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			_, after, found := strings.Cut(line, ":")
			if !found {
				break
			}
			out[i] = strings.Trim(strings.TrimSpace(after), `",`)
			break
		}
	}
	return out
}

func titlePattern(title string) (*regexp.Regexp, error) {
	q := regexp.QuoteMeta(title)
	return regexp.Compile(`(?i)"` + q + `"|\b` + q + `\b`)
}
