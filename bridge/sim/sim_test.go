package sim

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/core"
)

func TestPlaceCall_Answered(t *testing.T) {
	b := New()
	b.SetBehavior("+15550100", Behavior{
		Disposition: DispositionAnswer,
		Replies:     []string{"2 kg rice", "yes"},
	})

	events := make(chan core.TelephonyEvent, 8)
	leg, err := b.PlaceCall(context.Background(), "sess-1", core.NewContact("camp-1", "+15550100", ""), events)
	require.NoError(t, err)
	defer leg.Hangup(context.Background())

	assert.Equal(t, core.EventRinging, (<-events).Kind)
	assert.Equal(t, core.EventAnswered, (<-events).Kind)

	// Each agent utterance elicits the next scripted reply.
	r := bufio.NewReader(leg.Audio())
	require.NoError(t, leg.Play(context.Background(), strings.NewReader("hello\n")))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "2 kg rice", strings.TrimRight(line, "\n"))

	require.NoError(t, leg.Play(context.Background(), strings.NewReader("is that right?\n")))
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "yes", strings.TrimRight(line, "\n"))
}

func TestPlaceCall_ConnectFailures(t *testing.T) {
	b := New()
	b.SetBehavior("+1-busy", Behavior{Disposition: DispositionBusy})
	b.SetBehavior("+1-noanswer", Behavior{Disposition: DispositionNoAnswer})
	b.SetBehavior("+1-fail", Behavior{Disposition: DispositionFail})

	tests := []struct {
		phone string
		want  core.Outcome
	}{
		{"+1-busy", core.OutcomeBusy},
		{"+1-noanswer", core.OutcomeNoAnswer},
		{"+1-fail", core.OutcomeNetworkFailure},
	}
	for _, tt := range tests {
		_, err := b.PlaceCall(context.Background(), "sess-1", core.NewContact("camp-1", tt.phone, ""), nil)
		require.Error(t, err, "phone %s", tt.phone)
		require.ErrorIs(t, err, core.ErrConnectFailed)

		var cerr *core.ConnectError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, tt.want, cerr.Reason)
	}
}

func TestLeg_HangupMidCall(t *testing.T) {
	b := New()
	b.SetBehavior("+15550101", Behavior{
		Disposition: DispositionAnswer,
		Replies:     []string{"hello"},
		HangupAfter: 2,
	})

	events := make(chan core.TelephonyEvent, 8)
	leg, err := b.PlaceCall(context.Background(), "sess-1", core.NewContact("camp-1", "+15550101", ""), events)
	require.NoError(t, err)

	<-events // ringing
	<-events // answered

	r := bufio.NewReader(leg.Audio())
	require.NoError(t, leg.Play(context.Background(), strings.NewReader("hi\n")))
	_, err = r.ReadString('\n')
	require.NoError(t, err)

	// Second utterance trips the scripted hangup.
	require.NoError(t, leg.Play(context.Background(), strings.NewReader("more\n")))
	assert.Equal(t, core.EventHangup, (<-events).Kind)

	_, err = r.ReadString('\n')
	assert.Error(t, err, "audio stream ends on hangup")

	assert.NoError(t, leg.Hangup(context.Background()), "hangup after remote hangup is a no-op")
}

func TestLeg_HangupIdempotent(t *testing.T) {
	b := New()
	leg, err := b.PlaceCall(context.Background(), "sess-1", core.NewContact("camp-1", "+15550102", ""), nil)
	require.NoError(t, err)

	assert.NoError(t, leg.Hangup(context.Background()))
	assert.NoError(t, leg.Hangup(context.Background()))
}
