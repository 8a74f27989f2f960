// Package openai adapts the OpenAI Chat Completions API to the decide.Backend
// interface. The model is used purely as an intent classifier over a closed
// vocabulary; responses outside the vocabulary are coerced to clarify.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	"github.com/hupe1980/dialmesh/intent"
)

// Options configure the OpenAI backend adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model     string
	MaxTokens int64
}

// Backend wraps the OpenAI Chat Completions API behind decide.Backend.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     openai.ChatModelGPT4oMini,
		MaxTokens: 50,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Decide implements decide.Backend with a non-streaming classification call.
// Temperature is pinned to zero so repeated classifications agree.
func (b *Backend) Decide(ctx context.Context, utterance string, slots map[string]any) (decide.Decision, error) {
	prompt := decide.BuildPrompt(utterance, slots)

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               b.opts.Model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(b.opts.MaxTokens),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return decide.Decision{}, fmt.Errorf("openai decide: %w", core.ErrProviderTimeout)
		}
		return decide.Decision{}, fmt.Errorf("openai decide: %w", err)
	}
	if len(resp.Choices) == 0 {
		return decide.Decision{Intent: intent.Clarify}, nil
	}
	return parseDecision(resp.Choices[0].Message.Content), nil
}

// Info implements decide.Backend.
func (b *Backend) Info() decide.Info {
	return decide.Info{Name: b.opts.Model, Provider: "openai"}
}

// parseDecision extracts {"intent": ...} out of a possibly fenced response.
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
