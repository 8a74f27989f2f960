// Package anthropic adapts the Anthropic Messages API to the decide.Backend
// interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	"github.com/hupe1980/dialmesh/intent"
)

// Options configure the Anthropic backend adapter (model id, max tokens,
// API key).
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Backend wraps the Anthropic Messages API behind decide.Backend.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 50,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 50,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Decide implements decide.Backend with a non-streaming classification call.
func (b *Backend) Decide(ctx context.Context, utterance string, slots map[string]any) (decide.Decision, error) {
	prompt := decide.BuildPrompt(utterance, slots)

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.opts.Model,
		MaxTokens: b.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return decide.Decision{}, fmt.Errorf("anthropic decide: %w", core.ErrProviderTimeout)
		}
		return decide.Decision{}, fmt.Errorf("anthropic decide: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return parseDecision(text), nil
}

// Info implements decide.Backend.
func (b *Backend) Info() decide.Info {
	return decide.Info{Name: string(b.opts.Model), Provider: "anthropic"}
}

func parseDecision(raw string) decide.Decision {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")

	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return decide.Decision{Intent: intent.Clarify}
	}
	return decide.Sanitize(decide.Decision{Intent: parsed.Intent, Confidence: 0.7})
}
