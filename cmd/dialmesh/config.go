package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/core"
)

// campaignConfig is the YAML shape of a campaign file. Durations are strings
// ("30s", "5m") so files stay hand-editable.
type campaignConfig struct {
	Name        string `yaml:"name"`
	Concurrency int    `yaml:"concurrency"`
	Script      string `yaml:"script,omitempty"`
	Window      struct {
		Start string `yaml:"start,omitempty"`
		End   string `yaml:"end,omitempty"`
	} `yaml:"window,omitempty"`
	Retry struct {
		MaxAttempts int      `yaml:"max_attempts,omitempty"`
		Backoff     []string `yaml:"backoff,omitempty"`
		Jitter      float64  `yaml:"jitter,omitempty"`
		Retryable   []string `yaml:"retryable,omitempty"`
	} `yaml:"retry,omitempty"`
}

func (c campaignConfig) build() (*core.Campaign, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("campaign file: name is required")
	}
	campaign := core.NewCampaign(c.Name)
	if c.Concurrency > 0 {
		campaign.Concurrency = c.Concurrency
	}
	campaign.Script = c.Script
	campaign.Window = core.CallingWindow{Start: c.Window.Start, End: c.Window.End}
	if err := campaign.Window.Validate(); err != nil {
		return nil, fmt.Errorf("campaign file: %w", err)
	}

	if c.Retry.MaxAttempts > 0 {
		campaign.Retry.MaxAttempts = c.Retry.MaxAttempts
	}
	if len(c.Retry.Backoff) > 0 {
		backoff := make([]time.Duration, 0, len(c.Retry.Backoff))
		for _, raw := range c.Retry.Backoff {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("campaign file: backoff %q: %w", raw, err)
			}
			backoff = append(backoff, d)
		}
		campaign.Retry.Backoff = backoff
	}
	if c.Retry.Jitter > 0 {
		campaign.Retry.Jitter = c.Retry.Jitter
	}
	if len(c.Retry.Retryable) > 0 {
		retryable := make([]core.Outcome, 0, len(c.Retry.Retryable))
		for _, raw := range c.Retry.Retryable {
			retryable = append(retryable, core.Outcome(raw))
		}
		campaign.Retry.Retryable = retryable
	}
	return campaign, nil
}

// contactConfig is one entry of a contacts file.
type contactConfig struct {
	Phone   string            `yaml:"phone"`
	Name    string            `yaml:"name,omitempty"`
	Context map[string]string `yaml:"context,omitempty"`
}

// behaviorConfig scripts one simulated callee in a behaviors file.
type behaviorConfig struct {
	Phone       string   `yaml:"phone"`
	Disposition string   `yaml:"disposition,omitempty"`
	Replies     []string `yaml:"replies,omitempty"`
	HangupAfter int      `yaml:"hangup_after,omitempty"`
}

func (b behaviorConfig) build() (sim.Behavior, error) {
	behavior := sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     b.Replies,
		HangupAfter: b.HangupAfter,
	}
	switch b.Disposition {
	case "", string(sim.DispositionAnswer):
	case string(sim.DispositionBusy):
		behavior.Disposition = sim.DispositionBusy
	case string(sim.DispositionNoAnswer):
		behavior.Disposition = sim.DispositionNoAnswer
	case string(sim.DispositionFail):
		behavior.Disposition = sim.DispositionFail
	default:
		return sim.Behavior{}, fmt.Errorf("behaviors file: unknown disposition %q", b.Disposition)
	}
	return behavior, nil
}

func loadCampaign(path string) (*core.Campaign, error) {
	var cfg campaignConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return cfg.build()
}

func loadContacts(path string, campaignID string) ([]core.Contact, error) {
	var cfgs []contactConfig
	if err := loadYAML(path, &cfgs); err != nil {
		return nil, err
	}
	contacts := make([]core.Contact, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Phone == "" {
			return nil, fmt.Errorf("%s: contact %d has no phone", path, i)
		}
		contact := core.NewContact(campaignID, cfg.Phone, cfg.Name)
		contact.Context = cfg.Context
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func loadBehaviors(path string, bridge *sim.Bridge) error {
	var cfgs []behaviorConfig
	if err := loadYAML(path, &cfgs); err != nil {
		return err
	}
	for i, cfg := range cfgs {
		if cfg.Phone == "" {
			return fmt.Errorf("%s: behavior %d has no phone", path, i)
		}
		behavior, err := cfg.build()
		if err != nil {
			return err
		}
		bridge.SetBehavior(cfg.Phone, behavior)
	}
	return nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
