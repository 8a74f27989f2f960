package core

import (
	"errors"
	"fmt"
)

// Sentinel errors crossing component boundaries. Components wrap these with
// fmt.Errorf("...: %w", err) so callers can branch with errors.Is.
var (
	// ErrConnectFailed indicates the telephony bridge could not establish a
	// call leg (busy, no answer, unreachable network).
	ErrConnectFailed = errors.New("connect failed")

	// ErrCapacityExceeded indicates the session manager refused a call
	// because its session limit is reached. The scheduler recovers by
	// returning the contact to the ready set without consuming an attempt.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrContactAlreadyActive indicates a dispatch attempt for a contact
	// that already has a live call session.
	ErrContactAlreadyActive = errors.New("contact already active")

	// ErrProviderTimeout indicates a speech or decision collaborator did not
	// answer within its configured deadline. Always recovered locally by the
	// dialog machine; never propagates to the scheduler.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrGuardrailRejected indicates a candidate action failed validation.
	ErrGuardrailRejected = errors.New("guardrail rejected")

	// ErrCampaignNotSchedulable indicates an enqueue attempt for a campaign
	// that is not running or is outside its calling window.
	ErrCampaignNotSchedulable = errors.New("campaign not schedulable")

	// ErrSessionAborted indicates an operator force-aborted a live session.
	ErrSessionAborted = errors.New("session aborted")

	// ErrOutcomeAlreadySet indicates a second terminal transition was
	// attempted on a call session. Outcomes are set exactly once.
	ErrOutcomeAlreadySet = errors.New("outcome already set")
)

// ConnectError carries the terminal classification of a failed connect so
// the session manager can record the correct outcome. It unwraps to
// ErrConnectFailed.
type ConnectError struct {
	Reason Outcome // NoAnswer, Busy or NetworkFailure
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed: %s", e.Reason)
}

// Unwrap makes errors.Is(err, ErrConnectFailed) hold for ConnectError values.
func (e *ConnectError) Unwrap() error { return ErrConnectFailed }
