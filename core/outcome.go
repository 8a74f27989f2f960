package core

// Outcome is the terminal classification of a finished call session. A
// session transitions outcome exactly once; outcomes are immutable
// thereafter and drive the retry policy.
type Outcome string

const (
	// OutcomeCompleted means the call goal was achieved (e.g. order
	// confirmed). Never retried.
	OutcomeCompleted Outcome = "completed"

	// OutcomeDeclined means the contact explicitly declined. Not retried
	// under default policy.
	OutcomeDeclined Outcome = "declined_by_contact"

	// OutcomeNoAnswer means the call was never picked up.
	OutcomeNoAnswer Outcome = "no_answer"

	// OutcomeBusy means the line was busy.
	OutcomeBusy Outcome = "busy"

	// OutcomeNetworkFailure means the carrier or media path failed.
	OutcomeNetworkFailure Outcome = "network_failure"

	// OutcomeInterrupted means the session was cut short by a hangup, a
	// hard timeout or an operator abort mid-conversation.
	OutcomeInterrupted Outcome = "interrupted"

	// OutcomeEscalated means the dialogue was handed to a human queue.
	// Never retried automatically.
	OutcomeEscalated Outcome = "escalated"

	// OutcomeFailed means a systemic error ended the session.
	OutcomeFailed Outcome = "failed"
)

// String returns the wire representation of the outcome.
func (o Outcome) String() string { return string(o) }

// Terminal reports whether o is a recognized terminal outcome.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeDeclined, OutcomeNoAnswer, OutcomeBusy,
		OutcomeNetworkFailure, OutcomeInterrupted, OutcomeEscalated, OutcomeFailed:
		return true
	}
	return false
}

// NeedsFollowUp reports whether the outcome routes the contact to the human
// follow-up queue surfaced by analytics.
func (o Outcome) NeedsFollowUp() bool {
	return o == OutcomeEscalated || o == OutcomeFailed
}

// DefaultRetryableOutcomes is the retryable set applied when a campaign's
// retry policy does not name its own.
var DefaultRetryableOutcomes = []Outcome{
	OutcomeNoAnswer,
	OutcomeBusy,
	OutcomeNetworkFailure,
}
