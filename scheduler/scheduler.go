// Package scheduler turns campaigns and contact lists into dialed calls. It
// owns the ready set (fresh contacts plus due retries), enforces calling
// windows, per-campaign concurrency and the global session budget, and
// closes the loop from terminated sessions back into the retry engine.
//
// Locking discipline: the scheduler's mutex is never held across a call
// into the session manager, because connection failures terminate
// synchronously and re-enter the scheduler through SessionTerminated.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/dialmesh/analytics"
	"github.com/hupe1980/dialmesh/callsession"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/logging"
	"github.com/hupe1980/dialmesh/notify"
	"github.com/hupe1980/dialmesh/retry"
)

// CallStarter is the slice of the session manager the scheduler dials
// through.
type CallStarter interface {
	StartCall(ctx context.Context, campaign *core.Campaign, contact core.Contact) (*core.CallSession, error)
}

// Options configure the scheduler.
type Options struct {
	Logger logging.Logger
	Clock  core.Clock

	// GlobalConcurrency is the hard cap on sessions across all campaigns.
	GlobalConcurrency int64

	// BatchSize caps dispatches per tick.
	BatchSize int

	// TickInterval is the cadence of the Run loop.
	TickInterval time.Duration

	// FollowUps receives exhausted-retry decisions. Optional.
	FollowUps analytics.Store

	// Notifier is told about exhausted contacts. Optional.
	Notifier notify.Notifier
}

// dueEntry is a scheduled retry waiting for its time.
type dueEntry struct {
	contactID string
	at        time.Time
}

// Scheduler is the campaign dialer.
type Scheduler struct {
	opts    Options
	starter CallStarter
	retries *retry.Engine
	sem     *semaphore.Weighted

	mu             sync.Mutex
	campaigns      map[string]*core.Campaign
	contacts       map[string]*core.Contact
	fresh          []string
	due            []dueEntry
	active         map[string]string // contact ID -> session ID ("" while dialing)
	activePerCamp  map[string]int
	pendingPerCamp map[string]int // contacts not yet terminally disposed
}

var (
	_ retry.ReadySet                  = (*Scheduler)(nil)
	_ callsession.TerminationListener = (*Scheduler)(nil)
)

// New creates a scheduler dialing through the given session manager.
func New(starter CallStarter, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Logger:            logging.NoOpLogger{},
		Clock:             core.SystemClock{},
		GlobalConcurrency: 10,
		BatchSize:         10,
		TickInterval:      time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Scheduler{
		opts:           opts,
		starter:        starter,
		sem:            semaphore.NewWeighted(opts.GlobalConcurrency),
		campaigns:      make(map[string]*core.Campaign),
		contacts:       make(map[string]*core.Contact),
		active:         make(map[string]string),
		activePerCamp:  make(map[string]int),
		pendingPerCamp: make(map[string]int),
	}
	s.retries = retry.NewEngine(s, func(o *retry.Options) {
		o.Logger = opts.Logger
		o.Clock = opts.Clock
	})
	return s
}

// Enqueue admits a campaign's contacts to the ready set. The campaign must
// be running and inside its calling window.
func (s *Scheduler) Enqueue(campaign *core.Campaign, contacts ...core.Contact) error {
	if !campaign.Schedulable(s.opts.Clock.Now()) {
		return core.ErrCampaignNotSchedulable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = campaign
	for _, c := range contacts {
		if _, known := s.contacts[c.ID]; known {
			continue
		}
		contact := c
		s.contacts[c.ID] = &contact
		s.fresh = append(s.fresh, c.ID)
		s.pendingPerCamp[campaign.ID]++
	}
	s.opts.Logger.Info("contacts enqueued", "campaign_id", campaign.ID, "count", len(contacts))
	return nil
}

// ScheduleRetry implements retry.ReadySet.
func (s *Scheduler) ScheduleRetry(campaignID, contactID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.contacts[contactID]; !known {
		s.opts.Logger.Warn("retry for unknown contact dropped", "campaign_id", campaignID, "contact_id", contactID)
		return
	}
	s.due = append(s.due, dueEntry{contactID: contactID, at: at})
}

// QueueDepth reports waiting fresh contacts and scheduled retries.
func (s *Scheduler) QueueDepth() (fresh, due int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fresh), len(s.due)
}

// NextBatch returns up to limit contacts eligible for dialing at time now:
// due retries earliest first (ties by contact ID), then fresh contacts in
// enqueue order. An already-active contact is never returned, and contacts
// of non-schedulable campaigns stay queued. The returned contacts are
// removed from the ready set; callers that do not dispatch them must put
// them back with Requeue.
func (s *Scheduler) NextBatch(now time.Time, limit int) []core.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBatchLocked(now, limit)
}

func (s *Scheduler) nextBatchLocked(now time.Time, limit int) []core.Contact {
	if limit <= 0 {
		return nil
	}
	var batch []core.Contact
	picked := make(map[string]struct{})

	sort.SliceStable(s.due, func(i, j int) bool {
		if !s.due[i].at.Equal(s.due[j].at) {
			return s.due[i].at.Before(s.due[j].at)
		}
		return s.due[i].contactID < s.due[j].contactID
	})
	var keepDue []dueEntry
	for _, entry := range s.due {
		if len(batch) >= limit || entry.at.After(now) {
			keepDue = append(keepDue, entry)
			continue
		}
		if c, ok := s.eligibleLocked(entry.contactID, now); ok {
			batch = append(batch, *c)
			picked[c.ID] = struct{}{}
		} else {
			keepDue = append(keepDue, entry)
		}
	}
	s.due = keepDue

	var keepFresh []string
	for _, id := range s.fresh {
		if _, dup := picked[id]; dup {
			continue
		}
		if len(batch) >= limit {
			keepFresh = append(keepFresh, id)
			continue
		}
		if c, ok := s.eligibleLocked(id, now); ok {
			batch = append(batch, *c)
			picked[c.ID] = struct{}{}
		} else {
			keepFresh = append(keepFresh, id)
		}
	}
	s.fresh = keepFresh

	return batch
}

// eligibleLocked checks a queued contact against activity and campaign
// schedulability.
func (s *Scheduler) eligibleLocked(contactID string, now time.Time) (*core.Contact, bool) {
	contact, known := s.contacts[contactID]
	if !known {
		return nil, false
	}
	if _, isActive := s.active[contactID]; isActive {
		return nil, false
	}
	campaign, ok := s.campaigns[contact.CampaignID]
	if !ok || !campaign.Schedulable(now) {
		return nil, false
	}
	if campaign.Concurrency > 0 && s.activePerCamp[campaign.ID] >= campaign.Concurrency {
		return nil, false
	}
	return contact, true
}

// Requeue returns an undialed contact to the front of the ready set.
func (s *Scheduler) Requeue(contact core.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fresh = append([]string{contact.ID}, s.fresh...)
}

// Tick dispatches one batch. Returns the number of calls started (failed
// connects included; they consumed an attempt).
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.opts.Clock.Now()

	s.mu.Lock()
	batch := s.nextBatchLocked(now, s.opts.BatchSize)
	var reserved []core.Contact
	for _, contact := range batch {
		if !s.sem.TryAcquire(1) {
			// Budget exhausted: everything else goes back untouched.
			s.fresh = append([]string{contact.ID}, s.fresh...)
			continue
		}
		s.active[contact.ID] = ""
		s.activePerCamp[contact.CampaignID]++
		s.contacts[contact.ID].AttemptCount++
		reserved = append(reserved, *s.contacts[contact.ID])
	}
	s.mu.Unlock()

	started := 0
	for _, contact := range reserved {
		if s.dispatch(ctx, contact) {
			started++
		}
	}
	return started
}

// dispatch dials one reserved contact. Reports whether a session was
// created. Without a session the reservation is rolled back and the
// contact returns to the ready set unchanged.
func (s *Scheduler) dispatch(ctx context.Context, contact core.Contact) bool {
	s.mu.Lock()
	campaign := s.campaigns[contact.CampaignID]
	s.mu.Unlock()

	session, err := s.starter.StartCall(ctx, campaign, contact)
	if session == nil {
		s.opts.Logger.Warn("dispatch refused", "contact_id", contact.ID, "error", err)
		s.mu.Lock()
		delete(s.active, contact.ID)
		s.activePerCamp[contact.CampaignID]--
		s.contacts[contact.ID].AttemptCount--
		s.fresh = append([]string{contact.ID}, s.fresh...)
		s.mu.Unlock()
		s.sem.Release(1)
		return false
	}

	// A synchronous connect failure has already terminated the session and
	// released the reservation through SessionTerminated.
	if err == nil {
		s.mu.Lock()
		if _, stillActive := s.active[contact.ID]; stillActive {
			s.active[contact.ID] = session.ID
		}
		s.mu.Unlock()
	}
	return true
}

// SessionTerminated implements the session manager's termination listener:
// it releases the reservation and feeds the session to the retry engine.
func (s *Scheduler) SessionTerminated(session *core.CallSession) {
	s.mu.Lock()
	contact, known := s.contacts[session.ContactID]
	campaign := s.campaigns[session.CampaignID]
	if _, isActive := s.active[session.ContactID]; isActive {
		delete(s.active, session.ContactID)
		s.activePerCamp[session.CampaignID]--
		s.sem.Release(1)
	}
	var attempts int
	if known {
		attempts = contact.AttemptCount
	}
	s.mu.Unlock()

	if !known || campaign == nil {
		// Ad-hoc calls placed outside the scheduler land here.
		s.opts.Logger.Debug("termination for unscheduled contact", "session_id", session.ID, "contact_id", session.ContactID)
		return
	}

	decision := s.retries.Process(session, campaign, attempts)
	if decision.Retry {
		return
	}

	// Terminal disposition for this contact.
	if decision.Exhausted {
		if s.opts.FollowUps != nil {
			if err := s.opts.FollowUps.RecordFollowUp(decision); err != nil {
				s.opts.Logger.Error("follow-up persistence failed", "session_id", session.ID, "error", err)
			}
		}
		if s.opts.Notifier != nil {
			if err := s.opts.Notifier.NotifyExhausted(context.Background(), decision); err != nil {
				s.opts.Logger.Error("exhaustion notification failed", "session_id", session.ID, "error", err)
			}
		}
	}
	s.markDisposed(campaign)
}

// markDisposed decrements the campaign's pending count and completes the
// campaign when the last contact is disposed.
func (s *Scheduler) markDisposed(campaign *core.Campaign) {
	s.mu.Lock()
	s.pendingPerCamp[campaign.ID]--
	done := s.pendingPerCamp[campaign.ID] <= 0
	s.mu.Unlock()

	if done && campaign.State() == core.CampaignRunning {
		if err := campaign.Transition(core.CampaignCompleted); err == nil {
			s.opts.Logger.Info("campaign completed", "campaign_id", campaign.ID)
		}
	}
}

// Pause stops new dispatch for a campaign; live sessions finish naturally.
func (s *Scheduler) Pause(campaignID string) error {
	return s.transitionCampaign(campaignID, core.CampaignPaused)
}

// Resume re-opens a paused campaign for dispatch.
func (s *Scheduler) Resume(campaignID string) error {
	return s.transitionCampaign(campaignID, core.CampaignRunning)
}

// Archive retires a campaign and drops its queued contacts.
func (s *Scheduler) Archive(campaignID string) error {
	if err := s.transitionCampaign(campaignID, core.CampaignArchived); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keepFresh []string
	for _, id := range s.fresh {
		if c, ok := s.contacts[id]; !ok || c.CampaignID != campaignID {
			keepFresh = append(keepFresh, id)
		}
	}
	s.fresh = keepFresh
	var keepDue []dueEntry
	for _, entry := range s.due {
		if c, ok := s.contacts[entry.contactID]; !ok || c.CampaignID != campaignID {
			keepDue = append(keepDue, entry)
		}
	}
	s.due = keepDue
	return nil
}

func (s *Scheduler) transitionCampaign(campaignID string, target core.CampaignState) error {
	s.mu.Lock()
	campaign, ok := s.campaigns[campaignID]
	s.mu.Unlock()
	if !ok {
		return core.ErrCampaignNotSchedulable
	}
	return campaign.Transition(target)
}

// Run ticks the scheduler until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
