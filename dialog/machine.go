package dialog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/dialmesh/action"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	"github.com/hupe1980/dialmesh/guardrail"
	"github.com/hupe1980/dialmesh/intent"
	"github.com/hupe1980/dialmesh/logging"
	"github.com/hupe1980/dialmesh/speech"
)

// Phase is the machine's position in the per-turn cycle.
type Phase string

const (
	// PhaseGreeting is the opening utterance.
	PhaseGreeting Phase = "greeting"
	// PhaseListening waits for caller speech.
	PhaseListening Phase = "listening"
	// PhaseInterpreting classifies the transcribed utterance.
	PhaseInterpreting Phase = "interpreting"
	// PhaseDeciding consults the decision backend for ambiguous input.
	PhaseDeciding Phase = "deciding"
	// PhaseResponding speaks the agent's reply.
	PhaseResponding Phase = "responding"
	// PhaseClosing speaks the final utterance.
	PhaseClosing Phase = "closing"
	// PhaseTerminated is the end state; the outcome is fixed.
	PhaseTerminated Phase = "terminated"
)

// ErrInvalidTransition reports a phase change the cycle does not allow.
var ErrInvalidTransition = errors.New("dialog: invalid phase transition")

// phaseTransitions is the legal phase cycle. Closing is reachable from
// every live phase so interrupts can always terminate the machine.
var phaseTransitions = map[Phase][]Phase{
	PhaseGreeting:     {PhaseListening, PhaseClosing},
	PhaseListening:    {PhaseInterpreting, PhaseResponding, PhaseClosing},
	PhaseInterpreting: {PhaseDeciding, PhaseResponding, PhaseClosing},
	PhaseDeciding:     {PhaseResponding, PhaseClosing},
	PhaseResponding:   {PhaseListening, PhaseClosing},
	PhaseClosing:      {PhaseTerminated},
	PhaseTerminated:   {},
}

// Media is the audio surface of a connected call leg.
type Media interface {
	// Audio is the caller's inbound audio stream.
	Audio() io.Reader
	// Play writes agent audio to the caller.
	Play(ctx context.Context, audio io.Reader) error
}

// Options configure a conversation machine.
type Options struct {
	Logger    logging.Logger
	Clock     core.Clock
	Backend   decide.Backend
	Validator guardrail.Validator
	Graph     *Graph

	// MaxTurns caps caller/agent exchanges before escalating to a human.
	MaxTurns int
	// MaxModelCalls caps decision-backend invocations per call.
	MaxModelCalls int
	// MaxGuardrailRejections caps consecutive rejected actions before
	// escalating.
	MaxGuardrailRejections int
	// TranscriptionRetries is how many silent turns are re-prompted before
	// the call fails.
	TranscriptionRetries int
	// TurnTimeout bounds the wait for one caller utterance.
	TurnTimeout time.Duration
	// RejectionsCountTowardTurnCap counts guardrail-rejected turns against
	// MaxTurns.
	RejectionsCountTowardTurnCap bool
}

// Machine runs the conversation for a single connected call. It owns the
// conversation state exclusively; all cross-session coordination happens in
// the call session manager above it.
type Machine struct {
	opts Options

	exec *action.Executor
	stt  speech.Transcriber
	tts  speech.Synthesizer

	session *core.CallSession
	conv    *core.ConversationState

	mu    sync.Mutex
	phase Phase

	interruptOnce sync.Once
	interrupted   chan struct{}
}

// NewMachine creates a machine for one call session.
func NewMachine(session *core.CallSession, exec *action.Executor, stt speech.Transcriber, tts speech.Synthesizer, optFns ...func(o *Options)) *Machine {
	opts := Options{
		Logger:                 logging.NoOpLogger{},
		Clock:                  core.SystemClock{},
		Backend:                decide.NewRuleBackend(),
		Validator:              guardrail.NewCatalogValidator(),
		Graph:                  DefaultGraph(),
		MaxTurns:               30,
		MaxModelCalls:          5,
		MaxGuardrailRejections: 3,
		TranscriptionRetries:   2,
		TurnTimeout:            15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	conv := core.NewConversationState(session.ID)
	conv.Node = opts.Graph.Start
	return &Machine{
		opts:        opts,
		exec:        exec,
		stt:         stt,
		tts:         tts,
		session:     session,
		conv:        conv,
		phase:       PhaseGreeting,
		interrupted: make(chan struct{}),
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Conversation exposes the accumulated conversation state. Only safe to
// read after Run returns.
func (m *Machine) Conversation() *core.ConversationState { return m.conv }

// Interrupt aborts the conversation from outside, for example on hangup or
// a session timeout. Run returns with the interrupted outcome. Safe to call
// more than once.
func (m *Machine) Interrupt() {
	m.interruptOnce.Do(func() { close(m.interrupted) })
}

func (m *Machine) transition(to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range phaseTransitions[m.phase] {
		if allowed == to {
			m.phase = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.phase, to)
}

// Run drives the conversation until a terminal outcome. The returned
// outcome is never empty; the caller records it on the session.
func (m *Machine) Run(ctx context.Context, media Media) (core.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.interrupted:
			cancel()
		case <-runCtx.Done():
		}
	}()

	greeting := m.openingPrompt()
	if err := m.speak(runCtx, media, greeting, ""); err != nil {
		return m.close(ctx, media, core.OutcomeInterrupted, "")
	}
	if err := m.transition(PhaseListening); err != nil {
		return core.OutcomeFailed, err
	}

	silent := 0
	rejections := 0

	for {
		if m.wasInterrupted(runCtx) {
			return m.close(ctx, media, core.OutcomeInterrupted, "")
		}

		utterance, err := m.listen(runCtx, media)
		if err != nil {
			if m.wasInterrupted(runCtx) {
				return m.close(ctx, media, core.OutcomeInterrupted, "")
			}
			if errors.Is(err, core.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
				silent++
				if silent > m.opts.TranscriptionRetries {
					m.opts.Logger.Warn("caller silent past retry budget", "session_id", m.session.ID)
					return m.close(ctx, media, core.OutcomeFailed, "I'm sorry, I can't hear you. Goodbye.")
				}
				if terr := m.transition(PhaseResponding); terr != nil {
					return core.OutcomeFailed, terr
				}
				if serr := m.speak(runCtx, media, m.reprompt(), ""); serr != nil {
					return m.close(ctx, media, core.OutcomeInterrupted, "")
				}
				if terr := m.transition(PhaseListening); terr != nil {
					return core.OutcomeFailed, terr
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				// The audio stream ended: the far end hung up.
				return m.close(ctx, media, core.OutcomeInterrupted, "")
			}
			m.opts.Logger.Error("transcription failed", "session_id", m.session.ID, "error", err)
			return m.close(ctx, media, core.OutcomeFailed, "")
		}
		silent = 0

		if err := m.transition(PhaseInterpreting); err != nil {
			return core.OutcomeFailed, err
		}
		decision, err := m.interpret(runCtx, utterance)
		if err != nil {
			if m.wasInterrupted(runCtx) {
				return m.close(ctx, media, core.OutcomeInterrupted, "")
			}
			return m.close(ctx, media, core.OutcomeFailed, "")
		}
		m.recordTurn(core.SpeakerCaller, utterance, decision.Intent)

		act := m.actionFor(decision, utterance)
		if verdict := m.opts.Validator.Validate(act, guardrail.Context{Conversation: m.conv}); !verdict.Approved {
			rejections++
			rejErr := fmt.Errorf("%w: %s", core.ErrGuardrailRejected, verdict.Reason)
			m.opts.Logger.Info("action rejected", "session_id", m.session.ID, "intent", act.Kind, "error", rejErr)
			if rejections >= m.opts.MaxGuardrailRejections {
				return m.close(ctx, media, core.OutcomeEscalated, "Let me connect you to a colleague who can help. One moment.")
			}
			if m.opts.RejectionsCountTowardTurnCap {
				m.conv.TurnCount++
			}
			if terr := m.transition(PhaseResponding); terr != nil {
				return core.OutcomeFailed, terr
			}
			if serr := m.speak(runCtx, media, "Sorry, "+verdict.Reason+". "+m.reprompt(), ""); serr != nil {
				return m.close(ctx, media, core.OutcomeInterrupted, "")
			}
			if terr := m.transition(PhaseListening); terr != nil {
				return core.OutcomeFailed, terr
			}
			continue
		}
		rejections = 0

		if err := m.transition(PhaseResponding); err != nil {
			return core.OutcomeFailed, err
		}
		result, err := m.exec.Execute(runCtx, act, m.conv)
		if err != nil {
			m.opts.Logger.Error("action failed", "session_id", m.session.ID, "intent", act.Kind, "error", err)
			return m.close(ctx, media, core.OutcomeFailed, "I'm sorry, something went wrong on my end. Goodbye.")
		}
		m.conv.TurnCount++
		m.advanceNode(act.Kind)

		if result.Done {
			return m.close(ctx, media, result.Terminal, result.Response)
		}
		if m.conv.TurnCount >= m.opts.MaxTurns {
			m.opts.Logger.Warn("turn cap reached", "session_id", m.session.ID, "turns", m.conv.TurnCount)
			return m.close(ctx, media, core.OutcomeEscalated, "This is taking a while, let me connect you to a colleague. One moment.")
		}

		if err := m.speak(runCtx, media, result.Response, ""); err != nil {
			return m.close(ctx, media, core.OutcomeInterrupted, "")
		}
		if err := m.transition(PhaseListening); err != nil {
			return core.OutcomeFailed, err
		}
	}
}

// listen transcribes one caller utterance within the turn timeout.
func (m *Machine) listen(ctx context.Context, media Media) (string, error) {
	tctx := ctx
	if m.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, m.opts.TurnTimeout)
		defer cancel()
	}
	return m.stt.Transcribe(tctx, media.Audio())
}

// interpret resolves an utterance to a sanitized decision, consulting the
// backend only for ambiguous input and only within the per-call model cap.
func (m *Machine) interpret(ctx context.Context, utterance string) (decide.Decision, error) {
	ictx := intent.Context{
		AwaitingConfirm: m.conv.Slots.IsOrderConfirm() || m.conv.Slots.Complete(),
		SlotFilling:     !m.conv.Slots.IsOrderConfirm() && m.conv.Slots.NextMissing() != "" && (m.conv.Slots.Name != "" || m.conv.Slots.Quantity != nil || m.conv.Slots.Unit != ""),
	}
	res := intent.Classify(utterance, ictx)
	if !res.Ambiguous || m.opts.Backend == nil || m.conv.ModelCalls >= m.opts.MaxModelCalls {
		return decide.Decision{Intent: res.Intent}, nil
	}

	if err := m.transition(PhaseDeciding); err != nil {
		return decide.Decision{}, err
	}
	m.conv.ModelCalls++
	start := m.opts.Clock.Now()
	d, err := m.opts.Backend.Decide(ctx, utterance, m.conv.SlotView())
	info := m.opts.Backend.Info()
	m.opts.Logger.Debug("backend decision",
		"session_id", m.session.ID,
		"provider", info.Provider,
		"duration", m.opts.Clock.Now().Sub(start),
		"error", err,
	)
	if err != nil {
		if ctx.Err() != nil {
			return decide.Decision{}, err
		}
		// Provider failures degrade to a scripted clarification.
		return decide.Decision{Intent: intent.Clarify}, nil
	}
	return decide.Sanitize(d), nil
}

// actionFor builds the executable action for a decision, parsing item slots
// from the raw utterance when the backend did not supply them.
func (m *Machine) actionFor(d decide.Decision, utterance string) core.Action {
	if d.Action != nil {
		act := *d.Action
		act.Kind = d.Intent
		act.Utterance = utterance
		return act
	}
	act := core.Action{Kind: d.Intent, Utterance: utterance}
	switch d.Intent {
	case intent.AddItem, intent.UpdateItem, intent.RemoveItem, intent.SlotResponse:
		p := intent.ParseItem(utterance)
		if p.Confidence != intent.ConfidenceNone {
			item := core.OrderItem{Name: p.Name, Unit: p.Unit}
			if p.Quantity != nil {
				item.Quantity = *p.Quantity
			}
			act.Item = &item
			if p.Update {
				act.Kind = intent.UpdateItem
			}
		}
	}
	return act
}

// advanceNode follows the graph edge for the executed intent, if any.
func (m *Machine) advanceNode(intentName string) {
	if next, ok := m.opts.Graph.Next(m.conv.Node, intentName); ok {
		m.conv.Node = next.ID
	}
}

// openingPrompt is the greeting node's prompt.
func (m *Machine) openingPrompt() string {
	if n, ok := m.opts.Graph.Node(m.opts.Graph.Start); ok && n.Prompt != "" {
		return n.Prompt
	}
	return "Hello! What would you like to order?"
}

// reprompt is the current node's silence re-prompt.
func (m *Machine) reprompt() string {
	if n, ok := m.opts.Graph.Node(m.conv.Node); ok && n.Reprompt != "" {
		return n.Reprompt
	}
	return "Are you still there?"
}

// speak synthesizes and plays one agent utterance and records it on the
// transcript.
func (m *Machine) speak(ctx context.Context, media Media, text, intentName string) error {
	audio, err := m.tts.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := media.Play(ctx, audio); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	m.recordTurn(core.SpeakerAgent, text, intentName)
	return nil
}

func (m *Machine) recordTurn(speaker core.Speaker, text, intentName string) {
	m.session.AppendTurn(core.Turn{
		Speaker:   speaker,
		Text:      text,
		Intent:    intentName,
		Timestamp: m.opts.Clock.Now(),
	})
}

func (m *Machine) wasInterrupted(runCtx context.Context) bool {
	select {
	case <-m.interrupted:
		return true
	default:
		return runCtx.Err() != nil
	}
}

// close speaks an optional farewell with a short grace deadline, then fixes
// the terminal phase. The farewell uses a fresh deadline because the run
// context is already cancelled on interrupts.
func (m *Machine) close(ctx context.Context, media Media, outcome core.Outcome, farewell string) (core.Outcome, error) {
	if err := m.transition(PhaseClosing); err != nil {
		return outcome, nil
	}
	if farewell != "" {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := m.speak(gctx, media, farewell, ""); err != nil {
			m.opts.Logger.Debug("farewell not delivered", "session_id", m.session.ID, "error", err)
		}
	}
	_ = m.transition(PhaseTerminated)
	m.opts.Logger.Info("conversation ended",
		"session_id", m.session.ID,
		"outcome", string(outcome),
		"turns", m.conv.TurnCount,
		"model_calls", m.conv.ModelCalls,
	)
	return outcome, nil
}
