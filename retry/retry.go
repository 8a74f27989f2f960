// Package retry decides what happens to a contact after a call session
// terminates: drop, re-enqueue with backoff, or exhaust. The decision is a
// pure function of the session outcome, the campaign's retry policy and the
// contact's attempt count; scheduling the follow-up is the only side effect
// and goes through the ReadySet interface the scheduler implements.
package retry

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/logging"
)

// ReadySet re-admits a contact for dialing at or after a point in time.
type ReadySet interface {
	ScheduleRetry(campaignID, contactID string, at time.Time)
}

// Options configure the retry engine.
type Options struct {
	Logger logging.Logger
	Clock  core.Clock
}

// Engine classifies terminated sessions and schedules follow-up attempts.
type Engine struct {
	opts  Options
	ready ReadySet
}

// NewEngine creates a retry engine feeding the given ready set.
func NewEngine(ready ReadySet, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  core.SystemClock{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{opts: opts, ready: ready}
}

// Backoff computes the delay before the next attempt. attempt is 1-based
// and counts the attempts already made. Jitter spreads the delay
// symmetrically around the policy's base so retry bursts do not line up.
func Backoff(attempt int, policy core.RetryPolicy, rng *rand.Rand) time.Duration {
	base := policy.BaseDelay(attempt)
	if base <= 0 {
		return 0
	}
	if policy.Jitter <= 0 || rng == nil {
		return base
	}
	factor := 1 + policy.Jitter*(2*rng.Float64()-1)
	if factor < 0 {
		factor = 0
	}
	return time.Duration(float64(base) * factor)
}

// Classify maps a terminated session to a retry decision without side
// effects. attempts is the contact's total call sessions so far, the one
// just ended included. The jitter source is derived from the session ID so
// the same session always classifies identically.
func (e *Engine) Classify(session *core.CallSession, campaign *core.Campaign, attempts int) core.RetryDecision {
	decision := core.RetryDecision{
		SessionID:  session.ID,
		ContactID:  session.ContactID,
		CampaignID: session.CampaignID,
	}

	outcome, ok := session.Outcome()
	if !ok {
		outcome = core.OutcomeFailed
		decision.Reason = "session ended without a recorded outcome"
	}
	decision.Outcome = outcome

	policy := campaign.Retry
	if !policy.IsRetryable(outcome) {
		if decision.Reason == "" {
			decision.Reason = fmt.Sprintf("outcome %s is not retryable", outcome)
		}
		return decision
	}
	if attempts >= policy.MaxAttempts {
		decision.Exhausted = true
		decision.Reason = fmt.Sprintf("attempt budget spent (%d/%d)", attempts, policy.MaxAttempts)
		return decision
	}

	delay := Backoff(attempts, policy, rngFor(session.ID))
	decision.Retry = true
	decision.RetryAt = e.opts.Clock.Now().Add(delay)
	decision.Reason = fmt.Sprintf("outcome %s, attempt %d/%d, next in %s", outcome, attempts, policy.MaxAttempts, delay.Round(time.Second))
	return decision
}

// Process classifies the session and, when a retry is due, schedules the
// contact on the ready set.
func (e *Engine) Process(session *core.CallSession, campaign *core.Campaign, attempts int) core.RetryDecision {
	decision := e.Classify(session, campaign, attempts)

	switch {
	case decision.Retry:
		e.ready.ScheduleRetry(decision.CampaignID, decision.ContactID, decision.RetryAt)
		e.opts.Logger.Info("retry scheduled",
			"session_id", decision.SessionID,
			"contact_id", decision.ContactID,
			"outcome", string(decision.Outcome),
			"retry_at", decision.RetryAt,
		)
	case decision.Exhausted:
		e.opts.Logger.Warn("retries exhausted",
			"session_id", decision.SessionID,
			"contact_id", decision.ContactID,
			"outcome", string(decision.Outcome),
			"attempts", attempts,
		)
	default:
		e.opts.Logger.Debug("no retry",
			"session_id", decision.SessionID,
			"outcome", string(decision.Outcome),
			"reason", decision.Reason,
		)
	}
	return decision
}

// rngFor derives a deterministic jitter source from a session ID.
func rngFor(sessionID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
