package core

import "time"

// TelephonyEventKind enumerates the asynchronous signals emitted by the
// telephony bridge for a live call leg.
type TelephonyEventKind string

const (
	// EventRinging means the far end is being alerted.
	EventRinging TelephonyEventKind = "ringing"
	// EventAnswered means the far end picked up and media is flowing.
	EventAnswered TelephonyEventKind = "answered"
	// EventDTMF carries a keypad digit pressed by the caller.
	EventDTMF TelephonyEventKind = "dtmf"
	// EventMediaError means the media path degraded or dropped.
	EventMediaError TelephonyEventKind = "media_error"
	// EventHangup means the far end (or carrier) ended the call.
	EventHangup TelephonyEventKind = "hangup"
)

// TelephonyEvent is the unit of communication from the bridge to the
// session manager. Events are immutable after emission and consumed through
// the session's explicit event queue; events arriving after termination are
// ignored, not errors.
type TelephonyEvent struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	LegID     string             `json:"leg_id,omitempty"`
	Kind      TelephonyEventKind `json:"kind"`
	Digit     string             `json:"digit,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewTelephonyEvent creates a bare event for a session leg.
func NewTelephonyEvent(sessionID, legID string, kind TelephonyEventKind) TelephonyEvent {
	return TelephonyEvent{
		ID:        NewID(),
		SessionID: sessionID,
		LegID:     legID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// NewDTMFEvent creates a keypad event carrying one digit.
func NewDTMFEvent(sessionID, legID, digit string) TelephonyEvent {
	ev := NewTelephonyEvent(sessionID, legID, EventDTMF)
	ev.Digit = digit
	return ev
}

// NewMediaErrorEvent creates a media failure event with the cause message.
func NewMediaErrorEvent(sessionID, legID string, err error) TelephonyEvent {
	ev := NewTelephonyEvent(sessionID, legID, EventMediaError)
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
