// Package callsession owns the lifecycle of live calls: dialing, the
// conversation, wrap-up and teardown. One Manager supervises all concurrent
// sessions; each session runs its conversation machine in its own goroutine
// and is guaranteed to release its capacity slot on every exit path.
package callsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/dialmesh/bridge"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/dialog"
	"github.com/hupe1980/dialmesh/logging"
	"github.com/hupe1980/dialmesh/notify"
)

// State is a session's position in its lifecycle.
type State string

const (
	// StateDialing means the bridge is connecting the leg.
	StateDialing State = "dialing"
	// StateConnected means the leg answered and the machine is starting.
	StateConnected State = "connected"
	// StateInConversation means the dialog machine is running.
	StateInConversation State = "in_conversation"
	// StateWrapping means the conversation ended and teardown is running.
	StateWrapping State = "wrapping"
	// StateTerminated means the outcome is recorded and the slot released.
	StateTerminated State = "terminated"
)

var stateTransitions = map[State][]State{
	StateDialing:        {StateConnected, StateWrapping},
	StateConnected:      {StateInConversation, StateWrapping},
	StateInConversation: {StateWrapping},
	StateWrapping:       {StateTerminated},
	StateTerminated:     {},
}

// TerminationListener is notified once per session, after the outcome is
// recorded and the session is removed from the live set. The scheduler uses
// it to release budget and feed the retry engine.
type TerminationListener interface {
	SessionTerminated(session *core.CallSession)
}

// MachineFactory builds the conversation machine for a newly connected
// session. The campaign selects the dialogue script and caps.
type MachineFactory func(session *core.CallSession, campaign *core.Campaign) *dialog.Machine

// Options configure the session manager.
type Options struct {
	Logger logging.Logger
	Clock  core.Clock

	// MaxSessions caps concurrent live sessions. Zero means 10.
	MaxSessions int

	// MaxCallDuration is the per-session wall-clock cap. The conversation
	// is interrupted when it expires. Zero disables the cap.
	MaxCallDuration time.Duration

	// IdleTimeout interrupts a session whose transcript made no progress
	// for a full interval. Zero disables the watchdog.
	IdleTimeout time.Duration

	// EventBuffer sizes each session's telephony event queue.
	EventBuffer int

	// Outcomes receives every terminated session. Persistence failures are
	// logged, never propagated into teardown.
	Outcomes core.OutcomeStore

	// Notifier receives escalations. Optional.
	Notifier notify.Notifier

	// Listener is told about every termination. Optional.
	Listener TerminationListener
}

// Manager supervises all live call sessions.
type Manager struct {
	opts    Options
	bridge  bridge.Bridge
	factory MachineFactory

	mu       sync.RWMutex
	sessions map[string]*liveSession // by session ID
	byPhone  map[string]string       // contact ID -> session ID
}

// liveSession bundles a running call's moving parts.
type liveSession struct {
	core    *core.CallSession
	machine *dialog.Machine
	leg     bridge.Leg
	events  chan core.TelephonyEvent
	done    chan struct{}

	mu      sync.Mutex
	state   State
	aborted bool
}

func (s *liveSession) setState(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range stateTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", s.state, to)
}

func (s *liveSession) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NewManager creates a session manager over a telephony bridge.
func NewManager(b bridge.Bridge, factory MachineFactory, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		Clock:       core.SystemClock{},
		MaxSessions: 10,
		EventBuffer: 16,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10
	}
	return &Manager{
		opts:     opts,
		bridge:   b,
		factory:  factory,
		sessions: make(map[string]*liveSession),
		byPhone:  make(map[string]string),
	}
}

// SetListener installs the termination listener. Call before the first
// StartCall; the scheduler and manager reference each other, so one side is
// wired late.
func (m *Manager) SetListener(l TerminationListener) {
	m.opts.Listener = l
}

// ActiveSessions is the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SessionState returns a live session's state.
func (m *Manager) SessionState(sessionID string) (State, bool) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	return s.currentState(), true
}

// StartCall dials a contact and, once connected, runs the conversation to
// completion in the background. A session is created (and an attempt
// consumed) as soon as capacity and exclusivity checks pass; connection
// failures therefore terminate the session with the telephony outcome and
// still flow through the termination path.
//
// Errors: ErrCapacityExceeded and ErrContactAlreadyActive are returned
// before any session exists. A ConnectError is returned alongside the
// already-terminated session.
func (m *Manager) StartCall(ctx context.Context, campaign *core.Campaign, contact core.Contact) (*core.CallSession, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("start call for %s: %w", contact.ID, core.ErrCapacityExceeded)
	}
	if _, active := m.byPhone[contact.ID]; active {
		m.mu.Unlock()
		return nil, fmt.Errorf("start call for %s: %w", contact.ID, core.ErrContactAlreadyActive)
	}
	session := core.NewCallSession(contact)
	live := &liveSession{
		core:   session,
		events: make(chan core.TelephonyEvent, m.opts.EventBuffer),
		done:   make(chan struct{}),
		state:  StateDialing,
	}
	m.sessions[session.ID] = live
	m.byPhone[contact.ID] = session.ID
	m.mu.Unlock()

	m.opts.Logger.Info("dialing", "session_id", session.ID, "campaign_id", campaign.ID, "phone", contact.Phone)

	leg, err := m.bridge.PlaceCall(ctx, session.ID, contact, live.events)
	if err != nil {
		outcome := core.OutcomeNetworkFailure
		var cerr *core.ConnectError
		if errors.As(err, &cerr) {
			outcome = cerr.Reason
		}
		live.setState(StateWrapping)
		m.finalize(live, outcome)
		return session, err
	}

	session.SetLeg(leg.ID())
	live.leg = leg
	if err := live.setState(StateConnected); err != nil {
		// Should not happen; tear the call down instead of leaking it.
		leg.Hangup(context.WithoutCancel(ctx))
		m.finalize(live, core.OutcomeFailed)
		return session, err
	}

	go m.run(context.WithoutCancel(ctx), live, campaign)
	return session, nil
}

// run drives a connected session to termination.
func (m *Manager) run(ctx context.Context, live *liveSession, campaign *core.Campaign) {
	session := live.core
	machine := m.factory(session, campaign)
	live.mu.Lock()
	live.machine = machine
	live.mu.Unlock()

	if err := live.setState(StateInConversation); err != nil {
		m.opts.Logger.Error("session state error", "session_id", session.ID, "error", err)
	}

	runCtx := ctx
	if m.opts.MaxCallDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.opts.MaxCallDuration)
		defer cancel()
	}

	go m.pumpEvents(live)
	if m.opts.IdleTimeout > 0 {
		go m.watchIdle(live)
	}

	outcome, err := machine.Run(runCtx, live.leg)
	if err != nil {
		m.opts.Logger.Error("conversation error", "session_id", session.ID, "error", err)
	}

	live.setState(StateWrapping)
	live.leg.Hangup(ctx)
	m.finalize(live, outcome)
}

// pumpEvents consumes the session's telephony event queue until teardown.
// A hangup or media error interrupts the conversation; events arriving
// after termination are dropped.
func (m *Manager) pumpEvents(live *liveSession) {
	for {
		select {
		case <-live.done:
			return
		case ev := <-live.events:
			m.applyEvent(live, ev)
		}
	}
}

func (m *Manager) applyEvent(live *liveSession, ev core.TelephonyEvent) {
	if live.currentState() == StateTerminated {
		m.opts.Logger.Debug("event after termination ignored", "session_id", ev.SessionID, "kind", string(ev.Kind))
		return
	}
	switch ev.Kind {
	case core.EventHangup:
		m.opts.Logger.Info("remote hangup", "session_id", ev.SessionID, "leg_id", ev.LegID)
		m.interrupt(live)
	case core.EventMediaError:
		m.opts.Logger.Warn("media error", "session_id", ev.SessionID, "error", ev.Error)
		m.interrupt(live)
	case core.EventDTMF:
		m.opts.Logger.Debug("dtmf", "session_id", ev.SessionID, "digit", ev.Digit)
	default:
		m.opts.Logger.Debug("telephony event", "session_id", ev.SessionID, "kind", string(ev.Kind))
	}
}

// watchIdle interrupts the session when the transcript makes no progress
// for a full idle interval.
func (m *Manager) watchIdle(live *liveSession) {
	ticker := time.NewTicker(m.opts.IdleTimeout)
	defer ticker.Stop()
	last := live.core.TurnCount()
	for {
		select {
		case <-live.done:
			return
		case <-ticker.C:
			n := live.core.TurnCount()
			if n == last {
				m.opts.Logger.Warn("session idle, interrupting", "session_id", live.core.ID)
				m.interrupt(live)
				return
			}
			last = n
		}
	}
}

func (m *Manager) interrupt(live *liveSession) {
	live.mu.Lock()
	machine := live.machine
	live.mu.Unlock()
	if machine != nil {
		machine.Interrupt()
	}
}

// HandleTelephonyEvent routes an externally delivered event (for example a
// provider webhook) to its session. Events for unknown or terminated
// sessions are ignored.
func (m *Manager) HandleTelephonyEvent(ev core.TelephonyEvent) {
	m.mu.RLock()
	live, ok := m.sessions[ev.SessionID]
	m.mu.RUnlock()
	if !ok {
		m.opts.Logger.Debug("event for unknown session ignored", "session_id", ev.SessionID, "kind", string(ev.Kind))
		return
	}
	m.applyEvent(live, ev)
}

// Abort force-terminates a live session. The conversation is interrupted
// and terminates with the interrupted outcome.
func (m *Manager) Abort(sessionID string) error {
	m.mu.RLock()
	live, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("abort %s: session not found", sessionID)
	}
	live.mu.Lock()
	live.aborted = true
	live.mu.Unlock()
	m.opts.Logger.Warn("session aborted by operator", "session_id", sessionID, "error", core.ErrSessionAborted)
	m.interrupt(live)
	return nil
}

// finalize records the outcome, persists the session, removes it from the
// live set and notifies the listener. Runs exactly once per session.
func (m *Manager) finalize(live *liveSession, outcome core.Outcome) {
	session := live.core

	if err := session.SetOutcome(outcome, m.opts.Clock.Now()); err != nil {
		m.opts.Logger.Error("outcome already set", "session_id", session.ID, "outcome", string(outcome))
	}
	if err := live.setState(StateTerminated); err != nil {
		m.opts.Logger.Error("session state error", "session_id", session.ID, "error", err)
	}
	close(live.done)

	m.mu.Lock()
	delete(m.sessions, session.ID)
	delete(m.byPhone, session.ContactID)
	m.mu.Unlock()

	if m.opts.Outcomes != nil {
		if err := m.opts.Outcomes.RecordOutcome(session); err != nil {
			m.opts.Logger.Error("outcome persistence failed", "session_id", session.ID, "error", err)
		}
	}
	if outcome == core.OutcomeEscalated && m.opts.Notifier != nil {
		if err := m.opts.Notifier.NotifyEscalation(context.Background(), session, "conversation escalated"); err != nil {
			m.opts.Logger.Error("escalation notification failed", "session_id", session.ID, "error", err)
		}
	}

	live.mu.Lock()
	aborted := live.aborted
	live.mu.Unlock()

	recorded, _ := session.Outcome()
	m.opts.Logger.Info("session terminated",
		"session_id", session.ID,
		"campaign_id", session.CampaignID,
		"outcome", string(recorded),
		"aborted", aborted,
		"turns", session.TurnCount(),
	)

	if m.opts.Listener != nil {
		m.opts.Listener.SessionTerminated(session)
	}
}
