package dialog

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/action"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	"github.com/hupe1980/dialmesh/guardrail"
	"github.com/hupe1980/dialmesh/intent"
	"github.com/hupe1980/dialmesh/speech"
)

// scriptedMedia plays the caller's side of a call: every time the agent
// finishes speaking, the next scripted reply is fed into the audio stream.
type scriptedMedia struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	replies []string
	heard   []string
}

func newScriptedMedia(replies ...string) *scriptedMedia {
	pr, pw := io.Pipe()
	return &scriptedMedia{pr: pr, pw: pw, replies: replies}
}

func (m *scriptedMedia) Audio() io.Reader { return m.pr }

func (m *scriptedMedia) Play(_ context.Context, audio io.Reader) error {
	b, err := io.ReadAll(audio)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.heard = append(m.heard, strings.TrimRight(string(b), "\n"))
	var next string
	hasNext := false
	if len(m.replies) > 0 {
		next, hasNext = m.replies[0], true
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()
	if hasNext {
		go m.pw.Write([]byte(next + "\n"))
	}
	return nil
}

func (m *scriptedMedia) agentSaid() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.heard...)
}

func (m *scriptedMedia) Close() {
	m.pw.Close()
	m.pr.Close()
}

func newTestMachine(session *core.CallSession, media *scriptedMedia, optFns ...func(o *Options)) *Machine {
	return NewMachine(
		session,
		action.NewExecutor(),
		speech.NewLineTranscriber(),
		speech.NewTextSynthesizer(),
		optFns...,
	)
}

func TestMachine_CompletedOrder(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550100", "Asha"))
	media := newScriptedMedia(
		"2 kg rice please",
		"yes",
		"no",
		"yes",
	)
	defer media.Close()

	m := newTestMachine(session, media)
	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, outcome)
	assert.Equal(t, PhaseTerminated, m.Phase())

	require.Len(t, m.Conversation().Items, 1)
	assert.Equal(t, "rice", m.Conversation().Items[0].Name)
	assert.Equal(t, 2.0, m.Conversation().Items[0].Quantity)

	said := media.agentSaid()
	require.NotEmpty(t, said)
	assert.Contains(t, said[len(said)-1], "confirmed")

	// Caller and agent turns are interleaved on the transcript.
	transcript := session.Transcript()
	assert.Greater(t, len(transcript), 4)
	assert.Equal(t, core.SpeakerAgent, transcript[0].Speaker)
}

func TestMachine_CallerDeclines(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550101", ""))
	media := newScriptedMedia("goodbye")
	defer media.Close()

	m := newTestMachine(session, media)
	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDeclined, outcome)
	assert.Empty(t, m.Conversation().Items)
}

func TestMachine_BackendResolvesAmbiguousUtterance(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550102", ""))
	media := newScriptedMedia(
		"the usual groceries",
		"yes",
		"no",
		"yes",
	)
	defer media.Close()

	backend := decide.NewMock()
	backend.AddDecision("the usual groceries", decide.Decision{
		Intent:     intent.AddItem,
		Action:     &core.Action{Item: &core.OrderItem{Name: "rice", Quantity: 5, Unit: "kg"}},
		Confidence: 0.8,
	})

	m := newTestMachine(session, media, func(o *Options) {
		o.Backend = backend
	})
	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, outcome)

	require.Len(t, m.Conversation().Items, 1)
	assert.Equal(t, "rice", m.Conversation().Items[0].Name)
	assert.Equal(t, 5.0, m.Conversation().Items[0].Quantity)
	assert.Equal(t, 1, m.Conversation().ModelCalls)
}

func TestMachine_ModelCallBudgetExhausted(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550103", ""))
	media := newScriptedMedia("the usual groceries", "goodbye")
	defer media.Close()

	backend := decide.NewMock()
	backend.AddDecision("the usual groceries", decide.Decision{
		Intent: intent.AddItem,
		Action: &core.Action{Item: &core.OrderItem{Name: "rice", Quantity: 5, Unit: "kg"}},
	})

	m := newTestMachine(session, media, func(o *Options) {
		o.Backend = backend
		o.MaxModelCalls = 0
	})
	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)

	// With no model budget the ambiguous utterance degrades to a scripted
	// clarification instead of consulting the backend.
	assert.Equal(t, core.OutcomeDeclined, outcome)
	assert.Empty(t, m.Conversation().Items)
	assert.Equal(t, 0, m.Conversation().ModelCalls)
}

func TestMachine_ProviderErrorDegradesToClarify(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550106", ""))
	media := newScriptedMedia("the usual groceries", "goodbye")
	defer media.Close()

	backend := decide.NewMock()
	backend.AddError("the usual groceries", core.ErrProviderTimeout)

	m := newTestMachine(session, media, func(o *Options) {
		o.Backend = backend
	})
	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDeclined, outcome)
	assert.Empty(t, m.Conversation().Items)
}

func TestMachine_Interrupt(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550102", ""))
	media := newScriptedMedia() // caller never speaks
	defer media.Close()

	m := newTestMachine(session, media, func(o *Options) {
		o.TurnTimeout = time.Minute
	})

	done := make(chan core.Outcome, 1)
	go func() {
		outcome, _ := m.Run(context.Background(), media)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	m.Interrupt()
	m.Interrupt() // idempotent

	select {
	case outcome := <-done:
		assert.Equal(t, core.OutcomeInterrupted, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("machine did not stop after interrupt")
	}
	assert.Equal(t, PhaseTerminated, m.Phase())
}

func TestMachine_SilenceExhaustsRetries(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550103", ""))
	media := newScriptedMedia()
	defer media.Close()

	m := newTestMachine(session, media, func(o *Options) {
		o.TurnTimeout = 20 * time.Millisecond
		o.TranscriptionRetries = 1
	})

	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeFailed, outcome)

	// Greeting, one re-prompt, farewell.
	said := media.agentSaid()
	require.Len(t, said, 3)
	assert.Contains(t, said[1], "still there")
}

func TestMachine_GuardrailEscalation(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550104", ""))
	media := newScriptedMedia("2 kg plutonium")
	defer media.Close()

	m := newTestMachine(session, media, func(o *Options) {
		o.MaxGuardrailRejections = 1
	})

	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeEscalated, outcome)
	assert.Empty(t, m.Conversation().Items, "rejected action never mutates the cart")
}

func TestMachine_PermissiveValidatorAcceptsOffCatalog(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550105", ""))
	media := newScriptedMedia("2 kg plutonium", "yes", "no", "yes")
	defer media.Close()

	m := newTestMachine(session, media, func(o *Options) {
		o.Validator = guardrail.AllowAll
	})

	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, outcome)
	require.Len(t, m.Conversation().Items, 1)
	assert.Equal(t, "plutonium", m.Conversation().Items[0].Name)
}

func TestMachine_TurnCapEscalates(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550105", ""))
	media := newScriptedMedia("show my cart", "show my cart", "show my cart")
	defer media.Close()

	m := newTestMachine(session, media, func(o *Options) {
		o.MaxTurns = 2
	})

	outcome, err := m.Run(context.Background(), media)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeEscalated, outcome)
	assert.Equal(t, 2, m.Conversation().TurnCount)
}

func TestMachine_InvalidTransitionRejected(t *testing.T) {
	session := core.NewCallSession(core.NewContact("camp-1", "+15550106", ""))
	media := newScriptedMedia()
	defer media.Close()

	m := newTestMachine(session, media)
	err := m.transition(PhaseResponding)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseGreeting, m.Phase(), "failed transition leaves phase unchanged")
}
