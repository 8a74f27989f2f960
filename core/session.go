package core

import (
	"sync"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	// SpeakerCaller is the called party.
	SpeakerCaller Speaker = "caller"
	// SpeakerAgent is the automated agent.
	SpeakerAgent Speaker = "agent"
)

// Turn is one exchange inside a conversation transcript. Turns are
// append-only and ordered.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CallSession is one concrete telephony interaction with one contact.
//
// Contract:
//   - exclusively owned by the session manager for its lifetime
//   - the transcript is append-only; Transcript returns a defensive copy
//   - the outcome is set exactly once (SetOutcome returns
//     ErrOutcomeAlreadySet on a second terminal transition)
type CallSession struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contact_id"`
	CampaignID string    `json:"campaign_id"`
	Phone      string    `json:"phone"`
	LegID      string    `json:"leg_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`

	mu         sync.RWMutex
	endedAt    time.Time
	outcome    Outcome
	outcomeSet bool
	transcript []Turn
}

// NewCallSession creates a session for a contact with a fresh ID.
func NewCallSession(contact Contact) *CallSession {
	return &CallSession{
		ID:         NewID(),
		ContactID:  contact.ID,
		CampaignID: contact.CampaignID,
		Phone:      contact.Phone,
		StartedAt:  time.Now().UTC(),
	}
}

// SetLeg records the opaque telephony leg handle owned by the bridge.
func (s *CallSession) SetLeg(legID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LegID = legID
}

// AppendTurn appends one exchange to the transcript.
func (s *CallSession) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	s.transcript = append(s.transcript, t)
}

// Transcript returns a copy of the ordered transcript to prevent callers
// from mutating internal state.
func (s *CallSession) Transcript() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TurnCount returns the number of recorded turns.
func (s *CallSession) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// SetOutcome records the terminal outcome and end timestamp. A second call
// fails with ErrOutcomeAlreadySet; the first outcome stands.
func (s *CallSession) SetOutcome(o Outcome, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomeSet {
		return ErrOutcomeAlreadySet
	}
	s.outcome = o
	s.outcomeSet = true
	s.endedAt = endedAt
	return nil
}

// Outcome returns the terminal outcome and whether it has been set.
func (s *CallSession) Outcome() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, s.outcomeSet
}

// EndedAt returns the end timestamp recorded with the outcome (zero until
// terminated).
func (s *CallSession) EndedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// OutcomeStore persists terminal session results. Implementations live in
// the analytics package. Recording is fire-and-forget from the session
// manager's perspective: failures are logged, never block teardown.
type OutcomeStore interface {
	RecordOutcome(session *CallSession) error
}
