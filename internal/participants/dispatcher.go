package participants

import (
	"context"
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// Dispatcher routes the router's classification to one domain responder.
type Dispatcher struct {
	rules *DispatchRules
}

// NewDispatcher creates the dispatcher with the built-in routing rules.
func NewDispatcher() (*Dispatcher, error) {
	rules, err := NewDispatchRules()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{rules: rules}, nil
}

func (d *Dispatcher) Kind() types.Participant { return types.Dispatcher }

// Respond reads the latest router result and names the responder. A FAQ
// result that reaches the dispatcher carries no intent and goes to the
// catch-all responder.
func (d *Dispatcher) Respond(ctx context.Context, log types.Log) (types.Payload, error) {
	msg, err := latestFrom(log, types.Router)
	if err != nil {
		return nil, err
	}

	var (
		intent   string
		entities []types.Entity
	)
	switch m := msg.(type) {
	case types.IntentResult:
		intent, entities = m.Intent, m.Entities
	case types.FAQResult:
	default:
		return nil, fmt.Errorf("dispatcher cannot route a %s message", msg.Kind())
	}

	route, err := d.rules.Route(intent, entities)
	if err != nil {
		return nil, err
	}
	logging.Routing("dispatch: %s", route.Reason)

	if entities == nil {
		entities = []types.Entity{}
	}
	return types.Encode(types.DispatchPayload{
		TargetAgent: route.Target.String(),
		Intent:      intent,
		Entities:    entities,
		IRIDomains:  route.IRIDomains,
		Terminated:  false,
	})
}
