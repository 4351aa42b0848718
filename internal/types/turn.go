package types

import (
	"encoding/json"
	"fmt"
)

// Role distinguishes end-user turns from participant turns.
type Role string

const (
	RoleUser        Role = "user"
	RoleParticipant Role = "participant"
)

// Payload is the raw structured content of a turn. Participants emit JSON
// objects; decoding into a typed message happens at routing time.
type Payload = json.RawMessage

// Turn is a single message in an exchange.
type Turn struct {
	Role    Role        `json:"role"`
	Speaker Participant `json:"speaker,omitempty"`
	Payload Payload     `json:"payload"`
}

// HistoryEntry is one prior chat message supplied by the caller.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserInput is the payload of a user turn.
type UserInput struct {
	Query   string         `json:"query"`
	To      string         `json:"to"`
	History []HistoryEntry `json:"history,omitempty"`
}

// NewUserTurn builds the opening turn of an exchange.
func NewUserTurn(query string, history []HistoryEntry) Turn {
	raw, _ := json.Marshal(UserInput{Query: query, To: "english", History: history})
	return Turn{Role: RoleUser, Payload: raw}
}

// NewParticipantTurn wraps a participant payload.
func NewParticipantTurn(speaker Participant, payload Payload) Turn {
	return Turn{Role: RoleParticipant, Speaker: speaker, Payload: payload}
}

// IsUser reports whether the turn came from the end user.
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// DecodeUserInput reads the user payload. A bare JSON string or plain text
// payload is accepted as the query.
func (t Turn) DecodeUserInput() (UserInput, error) {
	if !t.IsUser() {
		return UserInput{}, fmt.Errorf("turn from %s is not a user turn", t.Speaker)
	}
	var in UserInput
	if err := json.Unmarshal(t.Payload, &in); err == nil && in.Query != "" {
		return in, nil
	}
	var s string
	if err := json.Unmarshal(t.Payload, &s); err == nil {
		return UserInput{Query: s, To: "english"}, nil
	}
	if len(t.Payload) > 0 && !json.Valid(t.Payload) {
		return UserInput{Query: string(t.Payload), To: "english"}, nil
	}
	return UserInput{}, &PayloadError{Reason: "user turn has no query"}
}

// Log is the ordered, append-only sequence of turns in one exchange.
type Log []Turn

// Append returns a new log with t added. The receiver is never modified, so a
// log handed to a participant cannot change underneath it.
func (l Log) Append(t Turn) Log {
	out := make(Log, len(l), len(l)+1)
	copy(out, l)
	return append(out, t)
}

// Latest returns the most recent turn.
func (l Log) Latest() (Turn, bool) {
	if len(l) == 0 {
		return Turn{}, false
	}
	return l[len(l)-1], true
}

// CurrentExchange returns the turns from the most recent user turn onward.
func (l Log) CurrentExchange() Log {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsUser() {
			return l[i:]
		}
	}
	return l
}

// LastFrom returns the most recent turn spoken by p in the current exchange.
func (l Log) LastFrom(p Participant) (Turn, bool) {
	ex := l.CurrentExchange()
	for i := len(ex) - 1; i >= 0; i-- {
		if !ex[i].IsUser() && ex[i].Speaker == p {
			return ex[i], true
		}
	}
	return Turn{}, false
}

// FirstFrom returns the earliest turn spoken by p in the current exchange.
func (l Log) FirstFrom(p Participant) (Turn, bool) {
	for _, t := range l.CurrentExchange() {
		if !t.IsUser() && t.Speaker == p {
			return t, true
		}
	}
	return Turn{}, false
}

// UserTurn returns the user turn that opened the current exchange.
func (l Log) UserTurn() (Turn, bool) {
	ex := l.CurrentExchange()
	if len(ex) > 0 && ex[0].IsUser() {
		return ex[0], true
	}
	return Turn{}, false
}

// LastResponder returns the most recent domain responder turn.
func (l Log) LastResponder() (Turn, bool) {
	ex := l.CurrentExchange()
	for i := len(ex) - 1; i >= 0; i-- {
		if !ex[i].IsUser() && ex[i].Speaker.IsResponder() {
			return ex[i], true
		}
	}
	return Turn{}, false
}
