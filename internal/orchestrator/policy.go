package orchestrator

import (
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

type translatorPhase int

const (
	phaseNone translatorPhase = iota
	phaseInbound
	phaseOutbound
	phaseInvalid
)

// phase classifies the latest turn when it is a translation. The turn that
// precedes it decides: the user (or nothing) means the question is being
// translated in; a responder or a router FAQ answer means the answer is being
// translated out.
func phase(log types.Log) translatorPhase {
	ex := log.CurrentExchange()
	n := len(ex)
	if n == 0 || ex[n-1].IsUser() || ex[n-1].Speaker != types.Translator {
		return phaseNone
	}
	if n == 1 || ex[n-2].IsUser() {
		return phaseInbound
	}
	prev := ex[n-2].Speaker
	if prev.IsResponder() || prev == types.Router {
		if !hasEarlierTranslation(ex[:n-1]) {
			return phaseInvalid
		}
		return phaseOutbound
	}
	return phaseInvalid
}

func hasEarlierTranslation(turns types.Log) bool {
	for _, t := range turns {
		if !t.IsUser() && t.Speaker == types.Translator {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the latest turn is the final translation of the
// exchange. SelectNext stops exactly when this is true.
func IsTerminal(log types.Log) bool {
	return phase(log) == phaseOutbound
}

// NeedsUserInput reports whether the latest turn asks the end user for more
// information. It is independent of SelectNext.
func NeedsUserInput(log types.Log) bool {
	latest, ok := log.Latest()
	if !ok || latest.IsUser() {
		return false
	}
	return types.NeedMoreInfo(latest.Payload)
}

// Result is the user-facing outcome of a terminated exchange.
type Result struct {
	FinalAnswer    string `json:"final_answer"`
	NeedMoreInfo   bool   `json:"need_more_info"`
	OriginLanguage string `json:"origin_language,omitempty"`
}

// ExtractResult reads the final answer from the last translator turn. A
// missing final_answer or need_more_info is an error.
func ExtractResult(log types.Log) (Result, error) {
	last, ok := log.LastFrom(types.Translator)
	if !ok {
		return Result{}, fmt.Errorf("%w: no translation in exchange", ErrRoutingFailure)
	}
	out, err := types.DecodeFinalAnswer(last)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract result: %w", err)
	}
	return Result{
		FinalAnswer:    out.Response.FinalAnswer,
		NeedMoreInfo:   bool(out.Response.NeedMoreInfo),
		OriginLanguage: out.OriginLanguage,
	}, nil
}
