package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// PARTICIPANT KINDS
// =============================================================================

// Participant identifies a conversation participant. The set is closed:
// every routing decision names one of these constants or ParticipantNone.
type Participant int

const (
	ParticipantNone Participant = iota
	Translator
	Router
	Dispatcher
	Sciences
	Governance
	Analytics
	Experience
)

// Wire names used in payloads and agent handles.
const (
	NameTranslator = "TranslationAgent"
	NameRouter     = "TriageAgent"
	NameDispatcher = "Lumi"
	NameSciences   = "SciencesAgent"
	NameGovernance = "GovernanceAgent"
	NameAnalytics  = "AnalyticsAgent"
	NameExperience = "ExperienceAgent"
)

// DefaultResponder receives every dispatch whose target is unknown.
const DefaultResponder = Governance

var participantNames = map[Participant]string{
	Translator: NameTranslator,
	Router:     NameRouter,
	Dispatcher: NameDispatcher,
	Sciences:   NameSciences,
	Governance: NameGovernance,
	Analytics:  NameAnalytics,
	Experience: NameExperience,
}

var participantDescriptions = map[Participant]string{
	Translator: "Translates user questions into English and final answers back into the user's language",
	Router:     "Decides between a direct FAQ answer and intent classification",
	Dispatcher: "Routes classified intents to the domain responder that owns them",
	Sciences:   "NIOSH research, exposure limits and prevention practices",
	Governance: "OSHA regulations, recordability criteria and definitions",
	Analytics:  "BLS industry injury rates, NAICS lookup and benchmarks",
	Experience: "Incident records, privacy cases and OSHA forms",
}

func (p Participant) String() string {
	if name, ok := participantNames[p]; ok {
		return name
	}
	return "none"
}

// Description is the human readable capability of the participant.
func (p Participant) Description() string {
	return participantDescriptions[p]
}

// Valid reports whether p is a registered participant kind.
func (p Participant) Valid() bool {
	_, ok := participantNames[p]
	return ok
}

// IsResponder reports whether p is one of the four domain responders.
func (p Participant) IsResponder() bool {
	switch p {
	case Sciences, Governance, Analytics, Experience:
		return true
	default:
		return false
	}
}

// MarshalText encodes the participant as its wire name.
func (p Participant) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return []byte(""), nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a wire name. Unknown names are an error.
func (p *Participant) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = ParticipantNone
		return nil
	}
	parsed, ok := ParseParticipant(string(b))
	if !ok {
		return fmt.Errorf("unknown participant %q", string(b))
	}
	*p = parsed
	return nil
}

// ParseParticipant resolves a wire name. Matching ignores surrounding space
// but is otherwise exact.
func ParseParticipant(name string) (Participant, bool) {
	name = strings.TrimSpace(name)
	for p, n := range participantNames {
		if n == name {
			return p, true
		}
	}
	return ParticipantNone, false
}

// AllParticipants returns every participant kind in pipeline order.
func AllParticipants() []Participant {
	return []Participant{Translator, Router, Dispatcher, Sciences, Governance, Analytics, Experience}
}

// Responders returns the domain responders in tie-break priority order.
func Responders() []Participant {
	return []Participant{Governance, Analytics, Sciences, Experience}
}
