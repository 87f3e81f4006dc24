// Package llm talks to an OpenAI-compatible chat completion API to summarize
// crawl activity, rewrite link descriptions and rank search candidates.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/metrics"
	"github.com/JakeFAU/site-analyzer/internal/telemetry"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = openai.GPT4o

// ErrNotConfigured is returned by every call when no API key was supplied.
var ErrNotConfigured = errors.New("llm: api key not configured")

// Completer is the subset of the go-openai client used here.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls the chat completion client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client issues chat completions. A Client with no API key answers every
// call with ErrNotConfigured so callers fall back to their defaults.
type Client struct {
	api     Completer
	model   string
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New builds a Client from cfg.
func New(cfg Config, logger *zap.Logger) *Client {
	var api Completer
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		api = openai.NewClientWithConfig(oc)
	}
	return NewWithCompleter(api, cfg.Model, cfg.Timeout, logger)
}

// NewWithCompleter builds a Client around an existing Completer.
func NewWithCompleter(api Completer, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, model: model, timeout: timeout, logger: logger, tracer: telemetry.Tracer()}
}

// Enabled reports whether the client has a backend to call.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

type completion struct {
	// purpose labels the request in metrics.
	purpose     string
	system      string
	user        string
	temperature float32
	maxTokens   int
	jsonObject  bool
}

func (c *Client) complete(ctx context.Context, in completion) (_ string, err error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.String("llm.purpose", in.purpose),
	))
	defer func() { telemetry.End(span, err) }()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: in.system},
			{Role: openai.ChatMessageRoleUser, Content: in.user},
		},
		Temperature: in.temperature,
		MaxTokens:   in.maxTokens,
	}
	if in.jsonObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ObserveLLMRequest(in.purpose, "error")
		c.logger.Debug("chat completion failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveLLMRequest(in.purpose, "empty")
		return "", errors.New("chat completion: no choices returned")
	}
	metrics.ObserveLLMRequest(in.purpose, "ok")
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripFences removes a surrounding markdown code fence, which some models
// emit even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
