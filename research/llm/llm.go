// Package llm wraps the OpenAI-compatible chat API behind a small
// model-tier abstraction. The orchestrator uses three tiers: reasoning for
// planning, gap analysis and the final report; default for insight
// extraction; light for cheap sanity checks.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// Tier selects a model capability class.
type Tier string

const (
	TierReasoning Tier = "reasoning"
	TierDefault   Tier = "default"
	TierLight     Tier = "light"
)

// Config maps tiers to concrete model IDs on an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string

	ReasoningModel string
	DefaultModel   string
	LightModel     string

	// CallTimeout bounds every individual chat completion call.
	CallTimeout time.Duration
}

// DefaultTimeout is applied when Config.CallTimeout is unset.
const DefaultTimeout = 45 * time.Second

// Caller is the interface every LLM-consuming component depends on, so
// tests can substitute canned responses.
type Caller interface {
	Generate(ctx context.Context, tier Tier, system, user string) (string, error)
}

// Client implements Caller over langchaingo's OpenAI bindings, holding one
// model handle per tier.
type Client struct {
	models  map[Tier]llms.Model
	timeout time.Duration
}

var _ Caller = (*Client)(nil)

// NewClient builds a tiered client. Missing tier model IDs fall back to the
// default model.
func NewClient(cfg Config) (*Client, error) {
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("llm: default model is required")
	}
	if cfg.ReasoningModel == "" {
		cfg.ReasoningModel = cfg.DefaultModel
	}
	if cfg.LightModel == "" {
		cfg.LightModel = cfg.DefaultModel
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultTimeout
	}

	models := make(map[Tier]llms.Model, 3)
	for tier, modelID := range map[Tier]string{
		TierReasoning: cfg.ReasoningModel,
		TierDefault:   cfg.DefaultModel,
		TierLight:     cfg.LightModel,
	} {
		opts := []openai.Option{openai.WithModel(modelID)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: create %s model: %w", tier, err)
		}
		models[tier] = model
	}

	return &Client{models: models, timeout: cfg.CallTimeout}, nil
}

// NewClientWithModels builds a client from pre-constructed models, used by
// tests to inject mocks per tier.
func NewClientWithModels(models map[Tier]llms.Model, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{models: models, timeout: timeout}
}

// Generate runs one chat completion on the given tier with an optional
// system prompt, bounded by the per-call timeout.
func (c *Client) Generate(ctx context.Context, tier Tier, system, user string) (string, error) {
	model, ok := c.models[tier]
	if !ok {
		model, ok = c.models[TierDefault]
		if !ok {
			return "", fmt.Errorf("llm: no model configured for tier %s", tier)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, user))

	resp, err := model.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm: %s generation: %w", tier, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %s generation returned no choices", tier)
	}
	return resp.Choices[0].Content, nil
}
