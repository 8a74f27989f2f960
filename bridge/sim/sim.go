// Package sim is an in-process telephony bridge for development and tests.
// Every contact's phone number is mapped to a scripted behavior: how the
// call connects, what the simulated caller says, and whether they hang up
// mid-conversation. Audio is plain text over pipes, matching the line-based
// transcriber and synthesizer.
package sim

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/dialmesh/bridge"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/logging"
)

// Disposition is how a simulated call connects.
type Disposition string

const (
	// DispositionAnswer connects the call.
	DispositionAnswer Disposition = "answer"
	// DispositionBusy fails the dial with a busy signal.
	DispositionBusy Disposition = "busy"
	// DispositionNoAnswer rings out without pickup.
	DispositionNoAnswer Disposition = "no_answer"
	// DispositionFail drops the dial with a network error.
	DispositionFail Disposition = "fail"
)

// Behavior scripts one simulated callee.
type Behavior struct {
	Disposition Disposition

	// Replies are spoken in order, one per agent utterance heard.
	Replies []string

	// HangupAfter hangs up once this many agent utterances were heard.
	// Zero means the callee never hangs up on their own.
	HangupAfter int
}

// Options configure the simulated bridge.
type Options struct {
	Logger logging.Logger

	// AnswerDelay is the simulated ring time before pickup or ring-out.
	AnswerDelay time.Duration

	// Default applies to numbers with no explicit behavior.
	Default Behavior
}

// Bridge is the simulated telephony provider.
type Bridge struct {
	opts Options

	mu        sync.RWMutex
	behaviors map[string]Behavior
}

var _ bridge.Bridge = (*Bridge)(nil)

// New creates a simulated bridge. By default every number answers and
// immediately says goodbye.
func New(optFns ...func(o *Options)) *Bridge {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		AnswerDelay: 10 * time.Millisecond,
		Default: Behavior{
			Disposition: DispositionAnswer,
			Replies:     []string{"goodbye"},
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bridge{opts: opts, behaviors: make(map[string]Behavior)}
}

// SetBehavior scripts the callee behind a phone number.
func (b *Bridge) SetBehavior(phone string, behavior Behavior) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.behaviors[phone] = behavior
}

func (b *Bridge) behaviorFor(phone string) Behavior {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if behavior, ok := b.behaviors[phone]; ok {
		return behavior
	}
	return b.opts.Default
}

// PlaceCall implements bridge.Bridge.
func (b *Bridge) PlaceCall(ctx context.Context, sessionID string, contact core.Contact, events chan<- core.TelephonyEvent) (bridge.Leg, error) {
	behavior := b.behaviorFor(contact.Phone)
	legID := "sim-" + core.NewID()

	bridge.Emit(events, core.NewTelephonyEvent(sessionID, legID, core.EventRinging))

	select {
	case <-ctx.Done():
		return nil, &core.ConnectError{Reason: core.OutcomeNetworkFailure}
	case <-time.After(b.opts.AnswerDelay):
	}

	switch behavior.Disposition {
	case DispositionBusy:
		return nil, &core.ConnectError{Reason: core.OutcomeBusy}
	case DispositionNoAnswer:
		return nil, &core.ConnectError{Reason: core.OutcomeNoAnswer}
	case DispositionFail:
		return nil, &core.ConnectError{Reason: core.OutcomeNetworkFailure}
	}

	b.opts.Logger.Debug("simulated call answered", "session_id", sessionID, "leg_id", legID, "phone", contact.Phone)
	bridge.Emit(events, core.NewTelephonyEvent(sessionID, legID, core.EventAnswered))

	pr, pw := io.Pipe()
	return &leg{
		id:        legID,
		sessionID: sessionID,
		behavior:  behavior,
		events:    events,
		pr:        pr,
		pw:        pw,
	}, nil
}

// leg is one live simulated call.
type leg struct {
	id        string
	sessionID string
	behavior  Behavior
	events    chan<- core.TelephonyEvent

	pr *io.PipeReader
	pw *io.PipeWriter

	mu     sync.Mutex
	heard  int
	closed bool
}

var _ bridge.Leg = (*leg)(nil)

func (l *leg) ID() string { return l.id }

// Audio implements bridge.Leg.
func (l *leg) Audio() io.Reader { return l.pr }

// Play consumes one agent utterance and feeds the callee's next scripted
// reply into the audio stream. When the hangup point is reached the leg
// emits a hangup event and goes silent.
func (l *leg) Play(ctx context.Context, audio io.Reader) error {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return io.ErrClosedPipe
	}
	l.heard++
	if l.behavior.HangupAfter > 0 && l.heard >= l.behavior.HangupAfter {
		l.closed = true
		l.mu.Unlock()
		bridge.Emit(l.events, core.NewTelephonyEvent(l.sessionID, l.id, core.EventHangup))
		l.pw.Close()
		l.pr.Close()
		return nil
	}
	var reply string
	hasReply := l.heard <= len(l.behavior.Replies)
	if hasReply {
		reply = l.behavior.Replies[l.heard-1]
	}
	l.mu.Unlock()

	if hasReply {
		go l.pw.Write([]byte(reply + "\n"))
	}
	return nil
}

// Hangup implements bridge.Leg.
func (l *leg) Hangup(context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	l.pw.Close()
	l.pr.Close()
	return nil
}
