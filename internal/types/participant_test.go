package types

import (
	"encoding/json"
	"testing"
)

func TestParseParticipant(t *testing.T) {
	for _, p := range AllParticipants() {
		got, ok := ParseParticipant(p.String())
		if !ok || got != p {
			t.Fatalf("ParseParticipant(%q) = %v, %v", p.String(), got, ok)
		}
	}
	if _, ok := ParseParticipant("UnknownAgent"); ok {
		t.Fatalf("expected UnknownAgent to be rejected")
	}
	if _, ok := ParseParticipant("governanceagent"); ok {
		t.Fatalf("expected case-sensitive match")
	}
}

func TestResponders(t *testing.T) {
	for _, p := range Responders() {
		if !p.IsResponder() {
			t.Errorf("%s should be a responder", p)
		}
	}
	for _, p := range []Participant{Translator, Router, Dispatcher, ParticipantNone} {
		if p.IsResponder() {
			t.Errorf("%s should not be a responder", p)
		}
	}
	if DefaultResponder != Governance {
		t.Fatalf("default responder must be governance")
	}
}

func TestTurnJSONUsesWireNames(t *testing.T) {
	raw, err := json.Marshal(NewParticipantTurn(Dispatcher, json.RawMessage(`{}`)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Turn
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Speaker != Dispatcher {
		t.Fatalf("speaker = %v, want Lumi", back.Speaker)
	}
	var wire map[string]interface{}
	_ = json.Unmarshal(raw, &wire)
	if wire["speaker"] != "Lumi" {
		t.Fatalf("speaker wire name = %v", wire["speaker"])
	}
}

func TestLogAppendDoesNotAlias(t *testing.T) {
	base := Log{NewUserTurn("q", nil)}
	a := base.Append(NewParticipantTurn(Translator, json.RawMessage(`{}`)))
	b := base.Append(NewParticipantTurn(Router, json.RawMessage(`{}`)))
	if len(base) != 1 {
		t.Fatalf("base log mutated: %d turns", len(base))
	}
	if a[1].Speaker != Translator || b[1].Speaker != Router {
		t.Fatalf("appended logs alias each other: %v %v", a[1].Speaker, b[1].Speaker)
	}
}

func TestLogCurrentExchange(t *testing.T) {
	log := Log{
		NewUserTurn("first", nil),
		NewParticipantTurn(Translator, json.RawMessage(`{}`)),
		NewUserTurn("second", nil),
		NewParticipantTurn(Translator, json.RawMessage(`{}`)),
	}
	ex := log.CurrentExchange()
	if len(ex) != 2 {
		t.Fatalf("current exchange has %d turns, want 2", len(ex))
	}
	in, err := ex[0].DecodeUserInput()
	if err != nil || in.Query != "second" {
		t.Fatalf("DecodeUserInput = %+v, %v", in, err)
	}
}
