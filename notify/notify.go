// Package notify fans escalations and exhausted retries out to human
// operators. The default sink just logs; real deployments plug in pagers or
// ticketing behind the same interface.
package notify

import (
	"context"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/logging"
)

// Notifier receives events that need human attention.
type Notifier interface {
	// NotifyEscalation reports a session handed off to a human agent.
	NotifyEscalation(ctx context.Context, session *core.CallSession, reason string) error

	// NotifyExhausted reports a contact dropped with retries spent.
	NotifyExhausted(ctx context.Context, decision core.RetryDecision) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger logging.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier over the given logger.
func NewLogNotifier(logger logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &LogNotifier{logger: logger}
}

// NotifyEscalation implements Notifier.
func (n *LogNotifier) NotifyEscalation(_ context.Context, session *core.CallSession, reason string) error {
	n.logger.Warn("escalation",
		"session_id", session.ID,
		"contact_id", session.ContactID,
		"campaign_id", session.CampaignID,
		"phone", session.Phone,
		"reason", reason,
	)
	return nil
}

// NotifyExhausted implements Notifier.
func (n *LogNotifier) NotifyExhausted(_ context.Context, decision core.RetryDecision) error {
	n.logger.Warn("retries exhausted",
		"session_id", decision.SessionID,
		"contact_id", decision.ContactID,
		"campaign_id", decision.CampaignID,
		"outcome", string(decision.Outcome),
		"reason", decision.Reason,
	)
	return nil
}
