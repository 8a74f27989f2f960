package dialmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/dialmesh/analytics"
	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDialMesh_CampaignRun(t *testing.T) {
	simBridge := sim.New()
	simBridge.SetBehavior("+1-order", sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     []string{"2 kg rice please", "yes", "no", "yes"},
	})
	simBridge.SetBehavior("+1-decline", sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     []string{"goodbye"},
	})
	simBridge.SetBehavior("+1-busy", sim.Behavior{
		Disposition: sim.DispositionBusy,
	})

	store := analytics.NewInMemoryStore()
	dm := New(func(o *Options) {
		o.Bridge = simBridge
		o.Analytics = store
	})

	campaign := testutil.NewCampaignBuilder("promo").
		Concurrency(3).
		MaxAttempts(2).
		Backoff(0).
		Running().
		Build()
	contacts := []core.Contact{
		testutil.NewContactBuilder("+1-order").Campaign(campaign.ID).Name("Ada").Build(),
		testutil.NewContactBuilder("+1-decline").Campaign(campaign.ID).Build(),
		testutil.NewContactBuilder("+1-busy").Campaign(campaign.ID).Build(),
	}

	require.NoError(t, dm.StartCampaign(campaign, contacts...))

	ctx := context.Background()
	for i := 0; i < 400 && campaign.State() != core.CampaignCompleted; i++ {
		dm.Tick(ctx)
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, core.CampaignCompleted, campaign.State())
	assert.Equal(t, 0, dm.ActiveSessions())

	summary := store.Summary(campaign.ID)
	assert.Equal(t, 1, summary[core.OutcomeCompleted])
	assert.Equal(t, 1, summary[core.OutcomeDeclined])
	assert.Equal(t, 2, summary[core.OutcomeBusy], "busy contact dialed twice")

	require.Len(t, store.FollowUps(), 1, "busy contact exhausted its retries")
	assert.Equal(t, core.OutcomeBusy, store.FollowUps()[0].Outcome)
}

func TestDialMesh_CallSync(t *testing.T) {
	simBridge := sim.New()
	simBridge.SetBehavior("+1-order", sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     []string{"3 bags of flour", "yes", "no", "yes"},
	})

	dm := New(func(o *Options) {
		o.Bridge = simBridge
	})

	campaign := testutil.NewCampaignBuilder("adhoc").Running().Build()
	contact := testutil.NewContactBuilder("+1-order").Campaign(campaign.ID).Build()

	session, outcome, err := dm.CallSync(context.Background(), campaign, contact)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, outcome)
	assert.NotEmpty(t, session.Transcript())
}

func TestDialMesh_CallSync_ConnectFailure(t *testing.T) {
	simBridge := sim.New()
	simBridge.SetBehavior("+1-busy", sim.Behavior{Disposition: sim.DispositionBusy})

	dm := New(func(o *Options) {
		o.Bridge = simBridge
	})

	campaign := testutil.NewCampaignBuilder("adhoc").Running().Build()
	contact := testutil.NewContactBuilder("+1-busy").Campaign(campaign.ID).Build()

	session, outcome, err := dm.CallSync(context.Background(), campaign, contact)
	require.ErrorIs(t, err, core.ErrConnectFailed)
	require.NotNil(t, session)
	assert.Equal(t, core.OutcomeBusy, outcome)
}

func TestStartCampaign_InvalidWindow(t *testing.T) {
	dm := New()

	campaign := testutil.NewCampaignBuilder("bad").Window("25:00", "18:00").Build()
	err := dm.StartCampaign(campaign, testutil.NewContactBuilder("+1").Campaign(campaign.ID).Build())
	assert.ErrorContains(t, err, "calling window")
}

func TestDialMesh_ScriptSelection(t *testing.T) {
	simBridge := sim.New()
	simBridge.SetBehavior("+1", sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     []string{"goodbye"},
	})

	dm := New(func(o *Options) {
		o.Bridge = simBridge
	})

	// Unknown script names fall back to the built-in graph.
	campaign := testutil.NewCampaignBuilder("scripted").Script("missing").Running().Build()
	contact := testutil.NewContactBuilder("+1").Campaign(campaign.ID).Build()

	_, outcome, err := dm.CallSync(context.Background(), campaign, contact)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDeclined, outcome)
}
