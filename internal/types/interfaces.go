package types

import "context"

// Speaker is anything that can take a participant turn. Respond receives a
// snapshot of the log and returns the payload for the next turn.
type Speaker interface {
	Kind() Participant
	Respond(ctx context.Context, log Log) (Payload, error)
}

// Roster resolves participant kinds to speakers.
type Roster interface {
	Lookup(p Participant) (Speaker, bool)
}

// AgentHandle identifies a provisioned participant.
type AgentHandle struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Kind        Participant `json:"-"`
}
