package testutil

import (
	"time"

	"github.com/hupe1980/dialmesh/core"
)

// CampaignBuilder helps construct campaigns with fluent chaining for tests.
// Example:
//
//	campaign := NewCampaignBuilder("promo").MaxAttempts(2).Running().Build()
type CampaignBuilder struct {
	name        string
	concurrency int
	script      string
	window      core.CallingWindow
	retry       core.RetryPolicy
	running     bool
}

// NewCampaignBuilder creates a builder with a zero-jitter single-attempt
// retry policy so tests stay deterministic by default.
func NewCampaignBuilder(name string) *CampaignBuilder {
	return &CampaignBuilder{
		name:        name,
		concurrency: 1,
		retry: core.RetryPolicy{
			MaxAttempts: 1,
			Backoff:     []time.Duration{0},
		},
	}
}

// Concurrency sets the per-campaign session cap (chainable).
func (b *CampaignBuilder) Concurrency(n int) *CampaignBuilder {
	b.concurrency = n
	return b
}

// Script names the dialogue graph the campaign's calls load (chainable).
func (b *CampaignBuilder) Script(name string) *CampaignBuilder {
	b.script = name
	return b
}

// Window sets the daily calling window (chainable).
func (b *CampaignBuilder) Window(start, end string) *CampaignBuilder {
	b.window = core.CallingWindow{Start: start, End: end}
	return b
}

// MaxAttempts sets the retry budget (chainable).
func (b *CampaignBuilder) MaxAttempts(n int) *CampaignBuilder {
	b.retry.MaxAttempts = n
	return b
}

// Backoff sets the retry delay schedule (chainable).
func (b *CampaignBuilder) Backoff(delays ...time.Duration) *CampaignBuilder {
	b.retry.Backoff = delays
	return b
}

// Jitter sets the retry jitter fraction (chainable).
func (b *CampaignBuilder) Jitter(f float64) *CampaignBuilder {
	b.retry.Jitter = f
	return b
}

// Retryable overrides the retryable outcome set (chainable).
func (b *CampaignBuilder) Retryable(outcomes ...core.Outcome) *CampaignBuilder {
	b.retry.Retryable = outcomes
	return b
}

// Running transitions the built campaign to the running state (chainable).
func (b *CampaignBuilder) Running() *CampaignBuilder {
	b.running = true
	return b
}

// Build returns the configured *core.Campaign.
func (b *CampaignBuilder) Build() *core.Campaign {
	campaign := core.NewCampaign(b.name)
	campaign.Concurrency = b.concurrency
	campaign.Script = b.script
	campaign.Window = b.window
	campaign.Retry = b.retry
	if b.running {
		if err := campaign.Transition(core.CampaignRunning); err != nil {
			panic(err)
		}
	}
	return campaign
}
