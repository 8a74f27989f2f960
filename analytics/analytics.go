// Package analytics persists terminated call sessions and retry
// exhaustions for campaign reporting. Two backends: an in-memory store for
// tests and simulations, and a SQLite store for real runs.
package analytics

import (
	"sync"
	"time"

	"github.com/hupe1980/dialmesh/core"
)

// Record is one persisted call session.
type Record struct {
	SessionID  string       `json:"session_id"`
	ContactID  string       `json:"contact_id"`
	CampaignID string       `json:"campaign_id"`
	Phone      string       `json:"phone"`
	Outcome    core.Outcome `json:"outcome"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
	Turns      int          `json:"turns"`
	Transcript []core.Turn  `json:"transcript,omitempty"`
}

// Store is the reporting sink: every terminated session is recorded, and so
// is every contact dropped with retries exhausted.
type Store interface {
	core.OutcomeStore
	RecordFollowUp(decision core.RetryDecision) error
}

// newRecord flattens a terminated session.
func newRecord(session *core.CallSession) Record {
	outcome, _ := session.Outcome()
	transcript := session.Transcript()
	return Record{
		SessionID:  session.ID,
		ContactID:  session.ContactID,
		CampaignID: session.CampaignID,
		Phone:      session.Phone,
		Outcome:    outcome,
		StartedAt:  session.StartedAt,
		EndedAt:    session.EndedAt(),
		Turns:      len(transcript),
		Transcript: transcript,
	}
}

// InMemoryStore keeps records in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   []Record
	followUps []core.RetryDecision
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// RecordOutcome implements core.OutcomeStore.
func (s *InMemoryStore) RecordOutcome(session *core.CallSession) error {
	rec := newRecord(session)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// RecordFollowUp implements Store.
func (s *InMemoryStore) RecordFollowUp(decision core.RetryDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followUps = append(s.followUps, decision)
	return nil
}

// Outcomes returns the records for a campaign, or all records when
// campaignID is empty.
func (s *InMemoryStore) Outcomes(campaignID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if campaignID == "" || r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out
}

// Summary counts a campaign's records per outcome.
func (s *InMemoryStore) Summary(campaignID string) map[core.Outcome]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := make(map[core.Outcome]int)
	for _, r := range s.records {
		if campaignID == "" || r.CampaignID == campaignID {
			summary[r.Outcome]++
		}
	}
	return summary
}

// FollowUps returns the recorded retry decisions.
func (s *InMemoryStore) FollowUps() []core.RetryDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RetryDecision(nil), s.followUps...)
}
