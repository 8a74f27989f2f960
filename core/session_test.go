package core

import (
	"errors"
	"testing"
	"time"
)

func TestCallSession_TranscriptCopy(t *testing.T) {
	sess := NewCallSession(NewContact("camp-1", "+15550100", "Asha"))
	sess.AppendTurn(Turn{Speaker: SpeakerAgent, Text: "hello"})
	sess.AppendTurn(Turn{Speaker: SpeakerCaller, Text: "hi", Intent: "greeting"})

	got := sess.Transcript()
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	got[0].Text = "changed"
	if sess.Transcript()[0].Text != "hello" {
		t.Error("transcript slice should be copied on read")
	}
	if sess.Transcript()[1].Timestamp.IsZero() {
		t.Error("append should stamp turns")
	}
}

func TestCallSession_OutcomeSetOnce(t *testing.T) {
	sess := NewCallSession(NewContact("camp-1", "+15550100", ""))
	if _, ok := sess.Outcome(); ok {
		t.Fatal("fresh session should have no outcome")
	}

	end := time.Now().UTC()
	if err := sess.SetOutcome(OutcomeNoAnswer, end); err != nil {
		t.Fatalf("first SetOutcome: %v", err)
	}
	err := sess.SetOutcome(OutcomeCompleted, end.Add(time.Second))
	if !errors.Is(err, ErrOutcomeAlreadySet) {
		t.Fatalf("expected ErrOutcomeAlreadySet, got %v", err)
	}

	o, ok := sess.Outcome()
	if !ok || o != OutcomeNoAnswer {
		t.Errorf("first outcome should stand, got %s", o)
	}
	if !sess.EndedAt().Equal(end) {
		t.Error("end timestamp should not move on rejected transition")
	}
}
