// Package twilio adapts the Twilio Programmable Voice API to the bridge
// contract. Call control (create, hangup) goes through the REST API; call
// media is attached separately by the media-stream endpoint the TwiML
// application points at.
package twilio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	twilioclient "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/hupe1980/dialmesh/bridge"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/logging"
)

// CallAPI is the slice of the Twilio REST surface the bridge needs. The
// twilio-go ApiService satisfies it; tests substitute a fake.
type CallAPI interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	UpdateCall(sid string, params *openapi.UpdateCallParams) (*openapi.ApiV2010Call, error)
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
}

// Options configure the Twilio bridge.
type Options struct {
	Logger logging.Logger

	// From is the caller ID in E.164 form.
	From string

	// VoiceURL is the TwiML webhook driving the answered call's media.
	VoiceURL string

	// StatusCallback receives call progress webhooks, if set.
	StatusCallback string
}

// Bridge places calls through Twilio.
type Bridge struct {
	opts Options
	api  CallAPI
}

var _ bridge.Bridge = (*Bridge)(nil)

// New creates a bridge authenticated with an account SID and auth token.
func New(accountSID, authToken string, optFns ...func(o *Options)) *Bridge {
	client := twilioclient.NewRestClientWithParams(twilioclient.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewFromAPI(client.Api, optFns...)
}

// NewFromAPI creates a bridge over an existing API client.
func NewFromAPI(api CallAPI, optFns ...func(o *Options)) *Bridge {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bridge{opts: opts, api: api}
}

// PlaceCall implements bridge.Bridge. Twilio reports busy and no-answer
// through the call status; those map to the corresponding connect outcomes.
func (b *Bridge) PlaceCall(ctx context.Context, sessionID string, contact core.Contact, events chan<- core.TelephonyEvent) (bridge.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.ConnectError{Reason: core.OutcomeNetworkFailure}
	}

	params := (&openapi.CreateCallParams{}).
		SetTo(contact.Phone).
		SetFrom(b.opts.From).
		SetUrl(b.opts.VoiceURL)
	if b.opts.StatusCallback != "" {
		params.SetStatusCallback(b.opts.StatusCallback)
	}

	call, err := b.api.CreateCall(params)
	if err != nil {
		b.opts.Logger.Error("create call failed", "session_id", sessionID, "phone", contact.Phone, "error", err)
		return nil, &core.ConnectError{Reason: core.OutcomeNetworkFailure}
	}

	sid := ""
	if call.Sid != nil {
		sid = *call.Sid
	}
	bridge.Emit(events, core.NewTelephonyEvent(sessionID, sid, core.EventRinging))

	if outcome, failed := connectOutcome(call.Status); failed {
		return nil, &core.ConnectError{Reason: outcome}
	}
	bridge.Emit(events, core.NewTelephonyEvent(sessionID, sid, core.EventAnswered))

	b.opts.Logger.Info("call placed", "session_id", sessionID, "call_sid", sid, "phone", contact.Phone)
	return &leg{sid: sid, api: b.api}, nil
}

// connectOutcome maps a terminal Twilio call status to a connect failure.
func connectOutcome(status *string) (core.Outcome, bool) {
	if status == nil {
		return "", false
	}
	switch strings.ToLower(*status) {
	case "busy":
		return core.OutcomeBusy, true
	case "no-answer":
		return core.OutcomeNoAnswer, true
	case "failed", "canceled":
		return core.OutcomeNetworkFailure, true
	default:
		return "", false
	}
}

// leg is one live Twilio call. Media flows through the TwiML media stream
// and is attached by the webhook handler before the conversation starts.
type leg struct {
	sid string
	api CallAPI

	mu    sync.Mutex
	media io.ReadWriter
	hung  bool
}

var _ bridge.Leg = (*leg)(nil)

func (l *leg) ID() string { return l.sid }

// AttachMedia wires the bidirectional media stream of the answered call.
func (l *leg) AttachMedia(rw io.ReadWriter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.media = rw
}

// Audio implements bridge.Leg.
func (l *leg) Audio() io.Reader {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.media == nil {
		return strings.NewReader("")
	}
	return l.media
}

// Play implements bridge.Leg.
func (l *leg) Play(ctx context.Context, audio io.Reader) error {
	l.mu.Lock()
	media := l.media
	l.mu.Unlock()
	if media == nil {
		return fmt.Errorf("leg %s: no media stream attached", l.sid)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := io.Copy(media, audio)
	return err
}

// Hangup implements bridge.Leg.
func (l *leg) Hangup(context.Context) error {
	l.mu.Lock()
	if l.hung {
		l.mu.Unlock()
		return nil
	}
	l.hung = true
	l.mu.Unlock()

	params := (&openapi.UpdateCallParams{}).SetStatus("completed")
	if _, err := l.api.UpdateCall(l.sid, params); err != nil {
		return fmt.Errorf("hangup %s: %w", l.sid, err)
	}
	return nil
}
