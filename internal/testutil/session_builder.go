package testutil

import (
	"time"

	"github.com/hupe1980/dialmesh/core"
)

// ContactBuilder helps construct contacts with fluent chaining for tests.
type ContactBuilder struct {
	contact core.Contact
}

// NewContactBuilder creates a builder for a contact with the given phone.
func NewContactBuilder(phone string) *ContactBuilder {
	return &ContactBuilder{contact: core.NewContact("", phone, "")}
}

// ID overrides the generated contact ID (chainable).
func (b *ContactBuilder) ID(id string) *ContactBuilder {
	b.contact.ID = id
	return b
}

// Name sets the contact name (chainable).
func (b *ContactBuilder) Name(name string) *ContactBuilder {
	b.contact.Name = name
	return b
}

// Campaign binds the contact to a campaign (chainable).
func (b *ContactBuilder) Campaign(campaignID string) *ContactBuilder {
	b.contact.CampaignID = campaignID
	return b
}

// Context sets one personalization key/value pair (chainable).
func (b *ContactBuilder) Context(key, value string) *ContactBuilder {
	if b.contact.Context == nil {
		b.contact.Context = map[string]string{}
	}
	b.contact.Context[key] = value
	return b
}

// Attempts sets the recorded attempt count (chainable).
func (b *ContactBuilder) Attempts(n int) *ContactBuilder {
	b.contact.AttemptCount = n
	return b
}

// Build returns the configured core.Contact.
func (b *ContactBuilder) Build() core.Contact {
	return b.contact
}

// SessionBuilder helps construct terminated call sessions for retry and
// analytics tests.
type SessionBuilder struct {
	contact core.Contact
	turns   []core.Turn
	outcome core.Outcome
	endedAt time.Time
	hasEnd  bool
}

// NewSessionBuilder creates a builder for a session belonging to contact.
func NewSessionBuilder(contact core.Contact) *SessionBuilder {
	return &SessionBuilder{contact: contact}
}

// Turn appends one transcript exchange (chainable).
func (b *SessionBuilder) Turn(speaker core.Speaker, text string) *SessionBuilder {
	b.turns = append(b.turns, core.Turn{Speaker: speaker, Text: text})
	return b
}

// IntentTurn appends one transcript exchange with its classified intent
// (chainable).
func (b *SessionBuilder) IntentTurn(speaker core.Speaker, text, intent string) *SessionBuilder {
	b.turns = append(b.turns, core.Turn{Speaker: speaker, Text: text, Intent: intent})
	return b
}

// Outcome records the terminal outcome (chainable).
func (b *SessionBuilder) Outcome(o core.Outcome) *SessionBuilder {
	b.outcome = o
	return b
}

// EndedAt sets the termination timestamp used with Outcome (chainable).
func (b *SessionBuilder) EndedAt(t time.Time) *SessionBuilder {
	b.endedAt = t
	b.hasEnd = true
	return b
}

// Build returns a *core.CallSession with pre-populated transcript and, if an
// outcome was set, a recorded terminal outcome.
func (b *SessionBuilder) Build() *core.CallSession {
	session := core.NewCallSession(b.contact)
	for _, turn := range b.turns {
		session.AppendTurn(turn)
	}
	if b.outcome != "" {
		endedAt := b.endedAt
		if !b.hasEnd {
			endedAt = time.Now().UTC()
		}
		if err := session.SetOutcome(b.outcome, endedAt); err != nil {
			panic(err)
		}
	}
	return session
}
