// Package decide defines the decision-backend contract consumed by the
// conversation machine: given an utterance and the accumulated slot state,
// produce a structured intent with a candidate action and a confidence. The
// deterministic in-process RuleBackend serves most campaigns; the openai and
// anthropic subpackages adapt hosted models for utterances the rules cannot
// settle.
package decide

import (
	"context"
	"fmt"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/intent"
)

// AllowedIntents enumerates the intents a backend may return. Anything else
// is coerced to clarify.
var AllowedIntents = []string{
	intent.AddItem, intent.UpdateItem, intent.RemoveItem,
	intent.ShowCart, intent.ConfirmOrder, intent.Greeting,
	intent.Exit, intent.Clarify,
}

// Decision is the structured result of interpreting one utterance.
type Decision struct {
	Intent     string       `json:"intent"`
	Action     *core.Action `json:"action,omitempty"`
	Confidence float64      `json:"confidence"`
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "rule", "openai", "anthropic", "mock"
}

// Backend is the minimal interface required by the conversation machine to
// interpret ambiguous utterances. Implementations must respect ctx
// cancellation; a deadline overrun surfaces as a wrapped
// core.ErrProviderTimeout and is always recovered by the caller.
type Backend interface {
	Decide(ctx context.Context, utterance string, slots map[string]any) (Decision, error)

	// Info returns information about the backend implementation.
	Info() Info
}

// Sanitize coerces an out-of-vocabulary intent to clarify.
func Sanitize(d Decision) Decision {
	for _, allowed := range AllowedIntents {
		if d.Intent == allowed {
			return d
		}
	}
	d.Intent = intent.Clarify
	d.Action = nil
	return d
}

// RuleBackend interprets utterances with the deterministic classifier and
// item parser alone. It never reaches the network, which makes it the
// default backend for tests and for campaigns that forbid model calls.
type RuleBackend struct{}

// NewRuleBackend constructs the deterministic backend.
func NewRuleBackend() *RuleBackend { return &RuleBackend{} }

// Decide implements Backend using keyword rules only.
func (b *RuleBackend) Decide(_ context.Context, utterance string, _ map[string]any) (Decision, error) {
	res := intent.Classify(utterance, intent.Context{})
	d := Decision{Intent: res.Intent, Confidence: 0.5}
	if !res.Ambiguous {
		d.Confidence = 0.9
	}
	if res.Intent == intent.AddItem || res.Intent == intent.UpdateItem || res.Intent == intent.RemoveItem {
		if p := intent.ParseItem(utterance); p.HasAny() {
			item := core.OrderItem{Name: p.Name, Unit: p.Unit}
			if p.Quantity != nil {
				item.Quantity = *p.Quantity
			}
			d.Action = &core.Action{Kind: res.Intent, Item: &item, Utterance: utterance}
		}
	}
	return Sanitize(d), nil
}

// Info implements Backend.
func (b *RuleBackend) Info() Info { return Info{Name: "rules", Provider: "rule"} }

// Mock is a lightweight in-memory Backend useful for tests. Unscripted
// utterances fall back to the rule backend so tests only script what they
// assert on.
type Mock struct {
	rules     *RuleBackend
	decisions map[string]Decision
	errs      map[string]error
}

// NewMock constructs an empty mock backend.
func NewMock() *Mock {
	return &Mock{
		rules:     NewRuleBackend(),
		decisions: map[string]Decision{},
		errs:      map[string]error{},
	}
}

// AddDecision registers a canned decision for an utterance.
func (m *Mock) AddDecision(utterance string, d Decision) { m.decisions[utterance] = d }

// AddError registers a canned failure for an utterance.
func (m *Mock) AddError(utterance string, err error) { m.errs[utterance] = err }

// Decide implements Backend.
func (m *Mock) Decide(ctx context.Context, utterance string, slots map[string]any) (Decision, error) {
	if err, ok := m.errs[utterance]; ok {
		return Decision{}, err
	}
	if d, ok := m.decisions[utterance]; ok {
		return Sanitize(d), nil
	}
	return m.rules.Decide(ctx, utterance, slots)
}

// Info implements Backend.
func (m *Mock) Info() Info { return Info{Name: "mock", Provider: "mock"} }

// BuildPrompt renders the classifier prompt shared by the hosted-model
// adapters.
func BuildPrompt(utterance string, slots map[string]any) string {
	cart := "empty"
	if items, ok := slots["items"].([]string); ok && len(items) > 0 {
		cart = fmt.Sprintf("%v", items)
	}
	return fmt.Sprintf(`You are an intent classifier for a ration ordering phone agent.
Classify the user message into exactly one intent.

Current cart: %s
User message: %q

Respond with ONLY valid JSON, no explanation, no markdown:
{"intent": "<one of: add_item, update_item, remove_item, show_cart, confirm_order, greeting, exit, clarify>"}`, cart, utterance)
}
