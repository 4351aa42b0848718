package participants

import (
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// inboundQuestion returns the translated question of the current exchange.
func inboundQuestion(log types.Log) (types.TranslatorInbound, error) {
	turn, ok := log.CurrentExchange().FirstFrom(types.Translator)
	if !ok {
		return types.TranslatorInbound{}, fmt.Errorf("no translated question in the exchange")
	}
	msg, err := types.Decode(turn)
	if err != nil {
		return types.TranslatorInbound{}, err
	}
	in, ok := msg.(types.TranslatorInbound)
	if !ok {
		return types.TranslatorInbound{}, fmt.Errorf("first translator turn is %s, not an inbound question", msg.Kind())
	}
	return in, nil
}

// latestFrom decodes the most recent turn of speaker in the current exchange.
func latestFrom(log types.Log, speaker types.Participant) (types.Message, error) {
	turn, ok := log.CurrentExchange().LastFrom(speaker)
	if !ok {
		return nil, fmt.Errorf("no %s turn in the exchange", speaker)
	}
	return types.Decode(turn)
}

// latestDispatch returns the dispatcher's decision for the current exchange.
func latestDispatch(log types.Log) (types.DispatchPayload, error) {
	msg, err := latestFrom(log, types.Dispatcher)
	if err != nil {
		return types.DispatchPayload{}, err
	}
	d, ok := msg.(types.DispatchPayload)
	if !ok {
		return types.DispatchPayload{}, fmt.Errorf("dispatcher turn is %s", msg.Kind())
	}
	return d, nil
}
