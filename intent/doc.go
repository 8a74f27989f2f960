// Package intent implements deterministic, phase-aware utterance
// classification and the stateless item parser used by the conversation
// machine. Keyword rules run first on every utterance; only genuinely
// ambiguous inputs are marked for the decision backend, which keeps model
// usage bounded and makes most turns reproducible.
package intent
