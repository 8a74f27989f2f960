// Package dialmesh provides a high-level façade over the campaign scheduler,
// the call session manager and the conversation machine, enabling rapid
// construction of outbound voice-call systems. Most applications interact
// with this package by:
//  1. Creating a DialMesh via New() (optionally overriding the bridge,
//     decision backend, speech providers and stores)
//  2. Creating campaigns and enqueueing their contacts
//  3. Running the scheduler loop (Run) or driving it manually (Tick)
//
// The façade delegates dialing to scheduler.Scheduler and call supervision to
// callsession.Manager while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production deployments
// supply a real telephony bridge, a model-backed decision backend and a
// durable analytics store.
package dialmesh

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/dialmesh/action"
	"github.com/hupe1980/dialmesh/analytics"
	"github.com/hupe1980/dialmesh/bridge"
	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/callsession"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	"github.com/hupe1980/dialmesh/dialog"
	"github.com/hupe1980/dialmesh/guardrail"
	"github.com/hupe1980/dialmesh/logging"
	"github.com/hupe1980/dialmesh/notify"
	"github.com/hupe1980/dialmesh/scheduler"
	"github.com/hupe1980/dialmesh/speech"
)

// Options configures the DialMesh instance.
type Options struct {
	// Bridge places and controls call legs (defaults to the simulated
	// bridge if not provided).
	Bridge bridge.Bridge

	// Backend resolves ambiguous caller intents (defaults to the
	// keyword rule backend).
	Backend decide.Backend

	// Validator screens candidate actions before execution.
	Validator guardrail.Validator

	// Transcriber and Synthesizer convert between call audio and text.
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer

	// Orders receives committed carts (defaults to an in-memory service).
	Orders action.OrderService

	// Analytics receives every terminated session and exhausted contact
	// (defaults to an in-memory store).
	Analytics analytics.Store

	// Notifier receives escalations and exhausted-retry notices (defaults
	// to a log-backed notifier).
	Notifier notify.Notifier

	// Scripts maps campaign script names to dialogue graphs. Campaigns
	// whose Script is absent use the built-in default graph.
	Scripts map[string]*dialog.Graph

	// MaxSessions caps concurrent live sessions in the session manager.
	MaxSessions int

	// MaxCallDuration is the per-session wall-clock cap. Zero disables it.
	MaxCallDuration time.Duration

	// IdleTimeout interrupts sessions whose transcript stalls. Zero
	// disables the watchdog.
	IdleTimeout time.Duration

	// GlobalConcurrency is the scheduler's hard cap across all campaigns.
	GlobalConcurrency int64

	// TickInterval is the cadence of the scheduler loop.
	TickInterval time.Duration

	// DialogOptions applies extra conversation-machine configuration on
	// top of the per-campaign script selection.
	DialogOptions []func(o *dialog.Options)

	// Clock supplies time (defaults to the system clock).
	Clock core.Clock

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// DialMesh is the high-level façade aggregating the scheduler, the session
// manager and the conversation stack.
type DialMesh struct {
	opts      Options
	manager   *callsession.Manager
	scheduler *scheduler.Scheduler
	exec      *action.Executor

	mu      sync.Mutex
	waiters map[string][]chan core.Outcome // session ID -> completion waiters
}

var _ callsession.TerminationListener = (*DialMesh)(nil)

// New creates a new DialMesh instance with optional overrides. Any unset
// collaborator is initialized with a local implementation.
func New(optFns ...func(o *Options)) *DialMesh {
	opts := Options{
		Backend:     decide.NewRuleBackend(),
		Validator:   guardrail.NewCatalogValidator(),
		Transcriber: speech.NewLineTranscriber(),
		Synthesizer: speech.NewTextSynthesizer(),
		Orders:      action.NewInMemoryOrderService(),
		Analytics:   analytics.NewInMemoryStore(),
		Clock:       core.SystemClock{},
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Bridge == nil {
		opts.Bridge = sim.New(func(o *sim.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}

	dm := &DialMesh{
		opts:    opts,
		waiters: make(map[string][]chan core.Outcome),
	}
	dm.exec = action.NewExecutor(func(o *action.Options) {
		o.Logger = opts.Logger
		o.Orders = opts.Orders
	})

	dm.manager = callsession.NewManager(opts.Bridge, dm.newMachine, func(o *callsession.Options) {
		o.Logger = opts.Logger
		o.Clock = opts.Clock
		o.MaxSessions = opts.MaxSessions
		o.MaxCallDuration = opts.MaxCallDuration
		o.IdleTimeout = opts.IdleTimeout
		o.Outcomes = opts.Analytics
		o.Notifier = opts.Notifier
	})
	dm.scheduler = scheduler.New(dm.manager, func(o *scheduler.Options) {
		o.Logger = opts.Logger
		o.Clock = opts.Clock
		if opts.GlobalConcurrency > 0 {
			o.GlobalConcurrency = opts.GlobalConcurrency
		}
		if opts.TickInterval > 0 {
			o.TickInterval = opts.TickInterval
		}
		o.FollowUps = opts.Analytics
		o.Notifier = opts.Notifier
	})

	// The scheduler and the façade both observe terminations; the façade
	// forwards so call waiters and retry accounting see the same event.
	dm.manager.SetListener(dm)

	return dm
}

// newMachine is the session manager's machine factory.
func (dm *DialMesh) newMachine(session *core.CallSession, campaign *core.Campaign) *dialog.Machine {
	return dialog.NewMachine(session, dm.exec, dm.opts.Transcriber, dm.opts.Synthesizer, func(o *dialog.Options) {
		o.Logger = dm.opts.Logger
		o.Clock = dm.opts.Clock
		o.Backend = dm.opts.Backend
		o.Validator = dm.opts.Validator
		if g, ok := dm.opts.Scripts[campaign.Script]; ok && campaign.Script != "" {
			o.Graph = g
		}
		for _, fn := range dm.opts.DialogOptions {
			fn(o)
		}
	})
}

// SessionTerminated forwards terminations to the scheduler and releases any
// synchronous call waiters.
func (dm *DialMesh) SessionTerminated(session *core.CallSession) {
	dm.scheduler.SessionTerminated(session)

	outcome, _ := session.Outcome()

	dm.mu.Lock()
	waiters := dm.waiters[session.ID]
	delete(dm.waiters, session.ID)
	dm.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}
}

// CreateCampaign builds a draft campaign and registers nothing yet; call
// StartCampaign (or Enqueue after transitioning it yourself) to begin
// dialing.
func (dm *DialMesh) CreateCampaign(name string, optFns ...func(c *core.Campaign)) *core.Campaign {
	campaign := core.NewCampaign(name)
	for _, fn := range optFns {
		fn(campaign)
	}
	return campaign
}

// StartCampaign transitions the campaign to running and enqueues its
// contacts with the scheduler.
func (dm *DialMesh) StartCampaign(campaign *core.Campaign, contacts ...core.Contact) error {
	if err := campaign.Window.Validate(); err != nil {
		return err
	}
	if campaign.State() == core.CampaignDraft {
		if err := campaign.Transition(core.CampaignRunning); err != nil {
			return err
		}
	}
	return dm.scheduler.Enqueue(campaign, contacts...)
}

// PauseCampaign stops new dispatch for the campaign; in-flight sessions
// finish naturally.
func (dm *DialMesh) PauseCampaign(campaignID string) error {
	return dm.scheduler.Pause(campaignID)
}

// ResumeCampaign re-admits a paused campaign to dispatch.
func (dm *DialMesh) ResumeCampaign(campaignID string) error {
	return dm.scheduler.Resume(campaignID)
}

// ArchiveCampaign retires the campaign and drops its queued contacts.
func (dm *DialMesh) ArchiveCampaign(campaignID string) error {
	return dm.scheduler.Archive(campaignID)
}

// Call starts a single call outside any scheduler queue and returns the live
// session. The campaign supplies the script and caps; the session terminates
// asynchronously.
func (dm *DialMesh) Call(ctx context.Context, campaign *core.Campaign, contact core.Contact) (*core.CallSession, error) {
	return dm.manager.StartCall(ctx, campaign, contact)
}

// CallSync starts a single call and blocks until the session terminates,
// returning the session and its outcome. On connect failure the recorded
// outcome (busy, no answer, network failure) is returned together with the
// error.
func (dm *DialMesh) CallSync(ctx context.Context, campaign *core.Campaign, contact core.Contact) (*core.CallSession, core.Outcome, error) {
	session, err := dm.manager.StartCall(ctx, campaign, contact)
	if err != nil {
		if session != nil {
			outcome, _ := session.Outcome()
			return session, outcome, err
		}
		return nil, "", err
	}

	dm.mu.Lock()
	if outcome, ok := session.Outcome(); ok {
		dm.mu.Unlock()
		return session, outcome, nil
	}
	ch := make(chan core.Outcome, 1)
	dm.waiters[session.ID] = append(dm.waiters[session.ID], ch)
	dm.mu.Unlock()

	select {
	case <-ctx.Done():
		_ = dm.manager.Abort(session.ID)
		return session, core.OutcomeInterrupted, ctx.Err()
	case outcome := <-ch:
		return session, outcome, nil
	}
}

// AbortSession force-terminates a live session.
func (dm *DialMesh) AbortSession(sessionID string) error {
	return dm.manager.Abort(sessionID)
}

// ActiveSessions is the number of live call sessions.
func (dm *DialMesh) ActiveSessions() int { return dm.manager.ActiveSessions() }

// QueueDepth reports the scheduler's fresh and retry queue sizes.
func (dm *DialMesh) QueueDepth() (fresh, due int) { return dm.scheduler.QueueDepth() }

// Tick runs one scheduler dispatch round and reports dials started.
func (dm *DialMesh) Tick(ctx context.Context) int { return dm.scheduler.Tick(ctx) }

// Run drives the scheduler loop until the context is cancelled.
func (dm *DialMesh) Run(ctx context.Context) { dm.scheduler.Run(ctx) }
