package core

import (
	"testing"
	"time"
)

func TestCampaign_TransitionTable(t *testing.T) {
	c := NewCampaign("monthly-ration")
	if c.State() != CampaignDraft {
		t.Fatalf("new campaign should be draft, got %s", c.State())
	}

	if err := c.Transition(CampaignPaused); err == nil {
		t.Error("draft -> paused should be illegal")
	}
	if err := c.Transition(CampaignRunning); err != nil {
		t.Fatalf("draft -> running: %v", err)
	}
	if err := c.Transition(CampaignPaused); err != nil {
		t.Fatalf("running -> paused: %v", err)
	}
	if err := c.Transition(CampaignRunning); err != nil {
		t.Fatalf("paused -> running (resume): %v", err)
	}
	if err := c.Transition(CampaignArchived); err != nil {
		t.Fatalf("running -> archived: %v", err)
	}
	if err := c.Transition(CampaignRunning); err == nil {
		t.Error("archived campaigns must stay archived")
	}
}

func TestCallingWindow_Contains(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
	}

	day := CallingWindow{Start: "09:00", End: "18:00"}
	if !day.Contains(at(9, 0)) || !day.Contains(at(17, 59)) {
		t.Error("daytime window should admit in-range times")
	}
	if day.Contains(at(18, 0)) || day.Contains(at(8, 59)) {
		t.Error("daytime window should reject out-of-range times")
	}

	night := CallingWindow{Start: "20:00", End: "06:00"}
	if !night.Contains(at(23, 30)) || !night.Contains(at(5, 59)) {
		t.Error("overnight window should span midnight")
	}
	if night.Contains(at(12, 0)) {
		t.Error("overnight window should reject midday")
	}

	var open CallingWindow
	if !open.Contains(at(3, 0)) {
		t.Error("zero window allows any time")
	}
}

func TestRetryPolicy_BaseDelayAndRetryable(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.BaseDelay(1) != time.Minute || p.BaseDelay(2) != 5*time.Minute {
		t.Error("backoff schedule should index by attempt")
	}
	if p.BaseDelay(9) != 5*time.Minute {
		t.Error("attempts beyond the schedule reuse the last entry")
	}
	if !p.IsRetryable(OutcomeNoAnswer) || !p.IsRetryable(OutcomeBusy) {
		t.Error("default retryable set should include connect failures")
	}
	if p.IsRetryable(OutcomeCompleted) || p.IsRetryable(OutcomeEscalated) {
		t.Error("terminal successes and escalations are never retryable")
	}
}
