// Package orchestrator decides who speaks next in an exchange and drives the
// turn loop until a terminal answer or a clarification request.
package orchestrator

import (
	"errors"
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// ErrRoutingFailure is returned when the next speaker cannot be determined
// from the log, usually because the latest payload is malformed.
var ErrRoutingFailure = errors.New("routing failure")

// DefaultFAQThreshold is the minimum top-answer confidence for a direct FAQ
// answer.
const DefaultFAQThreshold = 0.8

// Decision is the outcome of one speaker selection.
type Decision struct {
	Next        types.Participant
	Reason      string
	Substituted bool   // an unknown dispatch target was replaced
	Requested   string // the dispatch target as named, when substituted
}

// Terminated reports whether the decision ends the exchange.
func (d Decision) Terminated() bool {
	return d.Next == types.ParticipantNone
}

// Selector is the speaker selection policy. It holds only configuration, so
// SelectNext is a pure function of the log.
type Selector struct {
	FAQThreshold float64
}

// NewSelector creates a selector with the given FAQ confidence threshold.
func NewSelector(faqThreshold float64) Selector {
	return Selector{FAQThreshold: faqThreshold}
}

// SelectNext returns the participant that speaks after the latest turn.
func (s Selector) SelectNext(log types.Log) (Decision, error) {
	latest, ok := log.Latest()
	if !ok {
		return Decision{Next: types.Translator, Reason: "empty conversation starts with translation"}, nil
	}
	if latest.IsUser() {
		return Decision{Next: types.Translator, Reason: "user input is translated first"}, nil
	}

	switch {
	case latest.Speaker == types.Translator:
		return s.afterTranslator(log, latest)
	case latest.Speaker == types.Router:
		return s.afterRouter(latest)
	case latest.Speaker == types.Dispatcher:
		return s.afterDispatcher(latest)
	case latest.Speaker.IsResponder():
		if _, err := types.Decode(latest); err != nil {
			return failure(latest, err)
		}
		return Decision{Next: types.Translator, Reason: fmt.Sprintf("%s answered; translate the result", latest.Speaker)}, nil
	default:
		return failure(latest, fmt.Errorf("unknown speaker %d", int(latest.Speaker)))
	}
}

func (s Selector) afterTranslator(log types.Log, latest types.Turn) (Decision, error) {
	msg, err := types.Decode(latest)
	if err != nil {
		return failure(latest, err)
	}
	if IsTerminal(log) {
		if msg.Kind() != types.KindTranslatorOutbound {
			return failure(latest, fmt.Errorf("final translation carries %s", msg.Kind()))
		}
		return Decision{Next: types.ParticipantNone, Reason: "final answer translated; exchange terminated"}, nil
	}
	if phase(log) != phaseInbound {
		return failure(latest, fmt.Errorf("translator turn out of phase"))
	}
	if msg.Kind() != types.KindTranslatorInbound {
		return failure(latest, fmt.Errorf("first translation carries %s", msg.Kind()))
	}
	return Decision{Next: types.Router, Reason: "question translated; triage it"}, nil
}

func (s Selector) afterRouter(latest types.Turn) (Decision, error) {
	msg, err := types.Decode(latest)
	if err != nil {
		return failure(latest, err)
	}
	switch r := msg.(type) {
	case types.FAQResult:
		conf := r.TopConfidence()
		if conf >= s.FAQThreshold {
			return Decision{
				Next:   types.Translator,
				Reason: fmt.Sprintf("FAQ answer confidence %.2f >= %.2f; translate it directly", conf, s.FAQThreshold),
			}, nil
		}
		return Decision{
			Next:   types.Dispatcher,
			Reason: fmt.Sprintf("FAQ answer confidence %.2f < %.2f; dispatch to a responder", conf, s.FAQThreshold),
		}, nil
	case types.IntentResult:
		reason := fmt.Sprintf("intent %q classified; dispatch to a responder", r.Intent)
		if r.Flag != "" {
			reason = fmt.Sprintf("intent %q flagged %s; dispatch to a responder", r.Intent, r.Flag)
		}
		return Decision{Next: types.Dispatcher, Reason: reason}, nil
	default:
		return failure(latest, fmt.Errorf("router emitted %s", msg.Kind()))
	}
}

func (s Selector) afterDispatcher(latest types.Turn) (Decision, error) {
	msg, err := types.Decode(latest)
	if err != nil {
		return failure(latest, err)
	}
	d, ok := msg.(types.DispatchPayload)
	if !ok {
		return failure(latest, fmt.Errorf("dispatcher emitted %s", msg.Kind()))
	}

	target, known := types.ParseParticipant(d.TargetAgent)
	if known && target.IsResponder() {
		return Decision{Next: target, Reason: fmt.Sprintf("dispatched intent %q to %s", d.Intent, target)}, nil
	}

	logging.RoutingWarn("unknown dispatch target %q for intent %q; substituting %s",
		d.TargetAgent, d.Intent, types.DefaultResponder)
	return Decision{
		Next:        types.DefaultResponder,
		Reason:      fmt.Sprintf("unknown target %q replaced by %s", d.TargetAgent, types.DefaultResponder),
		Substituted: true,
		Requested:   d.TargetAgent,
	}, nil
}

func failure(latest types.Turn, err error) (Decision, error) {
	logging.RoutingError("cannot select after %s: %v", latest.Speaker, err)
	return Decision{Next: types.ParticipantNone, Reason: "routing failure"},
		fmt.Errorf("%w: after %s: %w", ErrRoutingFailure, latest.Speaker, err)
}
