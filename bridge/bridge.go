// Package bridge abstracts the telephony provider that carries outbound
// calls. A bridge places a call and hands back a live leg plus a stream of
// asynchronous telephony events; everything above it works only with these
// contracts and never touches provider wire formats.
package bridge

import (
	"context"
	"io"

	"github.com/hupe1980/dialmesh/core"
)

// Leg is a live call leg. Audio and Play make a connected leg usable as the
// conversation machine's media surface.
type Leg interface {
	// ID is the provider's identifier for the leg.
	ID() string

	// Audio is the caller's inbound audio stream.
	Audio() io.Reader

	// Play writes agent audio to the caller.
	Play(ctx context.Context, audio io.Reader) error

	// Hangup ends the leg. Idempotent.
	Hangup(ctx context.Context) error
}

// Bridge places outbound calls.
//
// PlaceCall dials the contact and blocks until the call is answered or
// definitively not connected. Connection failures return a
// core.ConnectError wrapping core.ErrConnectFailed with the telephony
// outcome (busy, no answer, network failure). Asynchronous signals for the
// life of the leg are delivered on the events channel; sends never block,
// a slow consumer loses events rather than stalling the bridge.
type Bridge interface {
	PlaceCall(ctx context.Context, sessionID string, contact core.Contact, events chan<- core.TelephonyEvent) (Leg, error)
}

// Emit delivers an event without blocking.
func Emit(events chan<- core.TelephonyEvent, ev core.TelephonyEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}
