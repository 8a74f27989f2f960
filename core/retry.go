package core

import "time"

// RetryDecision maps a terminated call session to a re-scheduling action.
// Produced by the retry engine, consumed by the scheduler.
type RetryDecision struct {
	SessionID  string  `json:"session_id"`
	ContactID  string  `json:"contact_id"`
	CampaignID string  `json:"campaign_id"`
	Outcome    Outcome `json:"outcome"`

	// Retry is true when the contact should be re-enqueued at RetryAt.
	Retry   bool      `json:"retry"`
	RetryAt time.Time `json:"retry_at,omitempty"`

	// Exhausted is the terminal-drop flag: the outcome was retryable but
	// the campaign's attempt budget is spent. Surfaced to analytics, never
	// silently discarded.
	Exhausted bool `json:"exhausted,omitempty"`

	Reason string `json:"reason,omitempty"`
}
