package language

import (
	"context"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// BypassClassifier stands in when no language service is configured. Every
// utterance classifies as the None intent, which the dispatcher sends to its
// catch-all responder.
type BypassClassifier struct{}

func (BypassClassifier) Classify(_ context.Context, _, _, _ string) (types.IntentResult, error) {
	return types.IntentResult{
		Intent:   "None",
		Entities: []types.Entity{},
		Flag:     types.FlagNoIntent,
	}, nil
}
