// Package ai classifies feed items with an OpenAI-compatible chat model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"curator/internal/model"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Status is the terminal state of one classification attempt.
type Status int

const (
	// Failed means the backend call did not yield a usable JSON object.
	Failed Status = iota
	// Skipped means the backend rejected the item.
	Skipped
	// Approved means the item should be queued.
	Approved
)

func (s Status) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Approved:
		return "approved"
	default:
		return "failed"
	}
}

// ErrEmptyResponse is returned when the backend answers without content.
var ErrEmptyResponse = errors.New("ai: empty response")

// Outcome is the total result of Classify. Result is only meaningful for
// Approved; Raw holds the backend text for auditing.
type Outcome struct {
	Status Status
	Result model.Classification
	Raw    string
	Err    error
}

// Config configures NewOpenAI.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // optional
	Temperature float32
	Timeout     time.Duration
	// MinInterval paces consecutive calls; zero disables pacing.
	MinInterval time.Duration
	// Policy overrides CuratorPolicy.
	Policy string
}

// OpenAIClassifier implements classification using the Chat Completions API
// in JSON mode.
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	policy      string
}

func NewOpenAI(cfg Config) (*OpenAIClassifier, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ai: model must be specified")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	policy := cfg.Policy
	if strings.TrimSpace(policy) == "" {
		policy = CuratorPolicy
	}
	return &OpenAIClassifier{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(limit, 1),
		policy:      policy,
	}, nil
}

// Classify sends exactly one request for item. Transport errors and
// unparseable responses yield Failed; malformed fields are normalized.
func (c *OpenAIClassifier) Classify(ctx context.Context, item model.FeedItem) Outcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return Outcome{Status: Failed, Err: fmt.Errorf("ai: rate limiter: %w", err)}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content := strings.TrimSpace(item.Summary)
	if content == "" {
		content = item.Title
	}
	if r := []rune(content); len(r) > 1500 {
		content = string(r[:1500])
	}
	user := fmt.Sprintf(userPrompt, item.Title, content, item.Link)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.policy},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Error("ai: classify request failed", "link", item.Link, "error", err)
		return Outcome{Status: Failed, Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Outcome{Status: Failed, Err: ErrEmptyResponse}
	}
	raw := resp.Choices[0].Message.Content
	return Decide(raw, item)
}

// Decide parses a raw backend answer for item into an Outcome.
func Decide(raw string, item model.FeedItem) Outcome {
	res, err := Parse(raw)
	if err != nil {
		return Outcome{Status: Failed, Raw: raw, Err: err}
	}
	if res.Skip {
		return Outcome{Status: Skipped, Result: res, Raw: raw}
	}
	return Outcome{Status: Approved, Result: Normalize(res, item), Raw: raw}
}
