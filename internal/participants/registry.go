// Package participants implements the conversation participants: the
// translator, the router, the dispatcher and the four domain responders.
package participants

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// Registry is the read-only roster of participants shared by all exchanges.
type Registry struct {
	speakers map[types.Participant]types.Speaker
	handles  []types.AgentHandle
}

// NewRegistry validates and indexes speakers. Every participant kind must be
// present exactly once; unknown kinds are rejected.
func NewRegistry(speakers ...types.Speaker) (*Registry, error) {
	r := &Registry{speakers: make(map[types.Participant]types.Speaker, len(speakers))}
	for _, s := range speakers {
		if s == nil {
			return nil, fmt.Errorf("nil participant")
		}
		kind := s.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown participant kind %d", int(kind))
		}
		if _, dup := r.speakers[kind]; dup {
			return nil, fmt.Errorf("participant %s registered twice", kind)
		}
		r.speakers[kind] = s
	}
	for _, kind := range types.AllParticipants() {
		if _, ok := r.speakers[kind]; !ok {
			return nil, fmt.Errorf("participant %s is not registered", kind)
		}
		r.handles = append(r.handles, types.AgentHandle{
			ID:          uuid.NewString(),
			Name:        kind.String(),
			Description: kind.Description(),
			Kind:        kind,
		})
	}
	return r, nil
}

// Lookup returns the speaker for kind.
func (r *Registry) Lookup(kind types.Participant) (types.Speaker, bool) {
	s, ok := r.speakers[kind]
	return s, ok
}

// LookupName resolves a participant by its wire name.
func (r *Registry) LookupName(name string) (types.AgentHandle, bool) {
	kind, ok := types.ParseParticipant(name)
	if !ok {
		return types.AgentHandle{}, false
	}
	for _, h := range r.handles {
		if h.Kind == kind {
			return h, true
		}
	}
	return types.AgentHandle{}, false
}

// Handles lists the registered participants in pipeline order.
func (r *Registry) Handles() []types.AgentHandle {
	out := make([]types.AgentHandle, len(r.handles))
	copy(out, r.handles)
	return out
}
