package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/internal/testutil"
)

func endedSession(t *testing.T, campaignID string, outcome core.Outcome) *core.CallSession {
	t.Helper()
	contact := testutil.NewContactBuilder("+15550100").Name("Asha").Campaign(campaignID).Build()
	return testutil.NewSessionBuilder(contact).
		Turn(core.SpeakerAgent, "Hello!").
		IntentTurn(core.SpeakerCaller, "goodbye", "exit").
		Outcome(outcome).
		Build()
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.RecordOutcome(endedSession(t, "camp-1", core.OutcomeCompleted)))
	require.NoError(t, store.RecordOutcome(endedSession(t, "camp-1", core.OutcomeNoAnswer)))
	require.NoError(t, store.RecordOutcome(endedSession(t, "camp-2", core.OutcomeCompleted)))

	assert.Len(t, store.Outcomes("camp-1"), 2)
	assert.Len(t, store.Outcomes(""), 3)

	summary := store.Summary("camp-1")
	assert.Equal(t, 1, summary[core.OutcomeCompleted])
	assert.Equal(t, 1, summary[core.OutcomeNoAnswer])

	require.NoError(t, store.RecordFollowUp(core.RetryDecision{
		SessionID: "s1", ContactID: "c1", CampaignID: "camp-1",
		Outcome: core.OutcomeBusy, Exhausted: true,
	}))
	followUps := store.FollowUps()
	require.Len(t, followUps, 1)
	assert.True(t, followUps[0].Exhausted)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer store.Close()

	s1 := endedSession(t, "camp-1", core.OutcomeCompleted)
	require.NoError(t, store.RecordOutcome(s1))
	require.NoError(t, store.RecordOutcome(endedSession(t, "camp-1", core.OutcomeBusy)))

	records, err := store.Outcomes("camp-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Turns)

	transcript, err := store.Transcript(s1.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, core.SpeakerAgent, transcript[0].Speaker)
	assert.Equal(t, "exit", transcript[1].Intent)

	summary, err := store.Summary("camp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary[core.OutcomeCompleted])
	assert.Equal(t, 1, summary[core.OutcomeBusy])

	require.NoError(t, store.RecordFollowUp(core.RetryDecision{
		SessionID: s1.ID, ContactID: s1.ContactID, CampaignID: "camp-1",
		Outcome: core.OutcomeBusy, Retry: true, RetryAt: time.Now().Add(time.Minute),
	}))

	// Recording the same session twice replaces, not duplicates.
	require.NoError(t, store.RecordOutcome(s1))
	records, err = store.Outcomes("camp-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
