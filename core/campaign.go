package core

import (
	"fmt"
	"sync"
	"time"
)

// CampaignState is the lifecycle state of a campaign.
type CampaignState string

const (
	// CampaignDraft is the initial state after creation.
	CampaignDraft CampaignState = "draft"
	// CampaignRunning means the scheduler may dispatch its contacts.
	CampaignRunning CampaignState = "running"
	// CampaignPaused stops new dispatch; in-flight sessions finish naturally.
	CampaignPaused CampaignState = "paused"
	// CampaignCompleted means every contact reached a terminal disposition.
	CampaignCompleted CampaignState = "completed"
	// CampaignArchived is the only destroyed state, entered by explicit
	// operator action.
	CampaignArchived CampaignState = "archived"
)

// campaignTransitions is the legal transition table. Anything not listed is
// forbidden.
var campaignTransitions = map[CampaignState][]CampaignState{
	CampaignDraft:     {CampaignRunning, CampaignArchived},
	CampaignRunning:   {CampaignPaused, CampaignCompleted, CampaignArchived},
	CampaignPaused:    {CampaignRunning, CampaignArchived},
	CampaignCompleted: {CampaignArchived},
	CampaignArchived:  {},
}

// CallingWindow is the daily time range (local clock, "HH:MM") inside which
// a campaign's contacts may be dialed. A window whose End precedes Start
// spans midnight.
type CallingWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Contains reports whether t falls inside the window. A zero window allows
// dialing at any time.
func (w CallingWindow) Contains(t time.Time) bool {
	if w.Start == "" && w.End == "" {
		return true
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now < end
	}
	// Overnight window, e.g. 20:00-06:00.
	return now >= start || now < end
}

// Validate checks the window's clock strings parse.
func (w CallingWindow) Validate() error {
	if w.Start == "" && w.End == "" {
		return nil
	}
	if _, err := parseClock(w.Start); err != nil {
		return fmt.Errorf("calling window start: %w", err)
	}
	if _, err := parseClock(w.End); err != nil {
		return fmt.Errorf("calling window end: %w", err)
	}
	return nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}

// RetryPolicy governs re-dialing of failed contacts within one campaign.
type RetryPolicy struct {
	// MaxAttempts caps call sessions per contact, first attempt included.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Backoff is the base delay schedule keyed by attempt count. Attempts
	// beyond its length reuse the last entry.
	Backoff []time.Duration `json:"backoff" yaml:"backoff"`

	// Jitter is the fraction (0..1) of the base delay randomized onto each
	// computed backoff.
	Jitter float64 `json:"jitter" yaml:"jitter"`

	// Retryable lists outcomes eligible for another attempt. Empty means
	// DefaultRetryableOutcomes.
	Retryable []Outcome `json:"retryable,omitempty" yaml:"retryable,omitempty"`
}

// DefaultRetryPolicy mirrors the production defaults: three attempts with a
// short-then-long backoff and 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Minute, 5 * time.Minute},
		Jitter:      0.2,
	}
}

// IsRetryable reports whether the policy allows another attempt for outcome o.
func (p RetryPolicy) IsRetryable(o Outcome) bool {
	set := p.Retryable
	if len(set) == 0 {
		set = DefaultRetryableOutcomes
	}
	for _, r := range set {
		if r == o {
			return true
		}
	}
	return false
}

// BaseDelay returns the backoff base for the given attempt count (1-based).
func (p RetryPolicy) BaseDelay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// Campaign is a bounded batch of outbound-call work with its own
// concurrency, window and retry policy. State transitions go through
// Transition so the legal table is enforced; concurrent readers use State().
type Campaign struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Concurrency int           `json:"concurrency" yaml:"concurrency"`
	Window      CallingWindow `json:"window" yaml:"window"`
	Retry       RetryPolicy   `json:"retry" yaml:"retry"`

	// Script names the dialogue graph the conversation machine loads for
	// this campaign's calls. Empty selects the built-in default script.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	mu    sync.RWMutex
	state CampaignState
}

// NewCampaign constructs a draft campaign with default retry policy.
func NewCampaign(name string) *Campaign {
	return &Campaign{
		ID:          NewID(),
		Name:        name,
		Concurrency: 1,
		Retry:       DefaultRetryPolicy(),
		state:       CampaignDraft,
	}
}

// State returns the current lifecycle state.
func (c *Campaign) State() CampaignState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == "" {
		return CampaignDraft
	}
	return c.state
}

// Transition moves the campaign to target, failing on any move outside the
// legal transition table.
func (c *Campaign) Transition(target CampaignState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.state
	if cur == "" {
		cur = CampaignDraft
	}
	for _, allowed := range campaignTransitions[cur] {
		if allowed == target {
			c.state = target
			return nil
		}
	}
	return fmt.Errorf("illegal campaign transition %s -> %s", cur, target)
}

// Schedulable reports whether the campaign may be dialed at time t: running
// and inside its calling window.
func (c *Campaign) Schedulable(t time.Time) bool {
	return c.State() == CampaignRunning && c.Window.Contains(t)
}
