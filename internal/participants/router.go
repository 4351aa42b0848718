package participants

import (
	"context"
	"errors"
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// FAQMatcher answers frequently asked questions.
type FAQMatcher interface {
	QueryFAQ(ctx context.Context, question string) (types.FAQResult, error)
}

// IntentClassifier extracts the intent and entities of an utterance.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance, language, id string) (types.IntentResult, error)
}

// Router decides between a direct FAQ answer and intent classification.
type Router struct {
	faq          FAQMatcher
	classifier   IntentClassifier
	faqThreshold float64
}

// NewRouter creates the router. faq may be nil, in which case every question
// is classified.
func NewRouter(faq FAQMatcher, classifier IntentClassifier, faqThreshold float64) *Router {
	return &Router{faq: faq, classifier: classifier, faqThreshold: faqThreshold}
}

func (r *Router) Kind() types.Participant { return types.Router }

// Respond emits cqa_result when the top FAQ answer clears the threshold and
// clu_result otherwise. If classification fails after a weak FAQ match, the
// weak match is forwarded so the dispatcher still runs.
func (r *Router) Respond(ctx context.Context, log types.Log) (types.Payload, error) {
	in, err := inboundQuestion(log)
	if err != nil {
		return nil, err
	}
	question := in.Response.CurrentQuestion

	var (
		faq    types.FAQResult
		faqErr = errors.New("no FAQ service")
	)
	if r.faq != nil {
		faq, faqErr = r.faq.QueryFAQ(ctx, question)
		if faqErr == nil && faq.TopConfidence() >= r.faqThreshold {
			logging.Routing("FAQ answer at %.2f (threshold %.2f)", faq.TopConfidence(), r.faqThreshold)
			return types.Encode(faq)
		}
		if faqErr != nil {
			logging.ClassifierWarn("FAQ lookup failed: %v", faqErr)
		}
	}

	if r.classifier == nil {
		return nil, fmt.Errorf("router has no intent classifier")
	}
	intent, err := r.classifier.Classify(ctx, question, english, "1")
	if err == nil {
		if intent.Entities == nil {
			intent.Entities = []types.Entity{}
		}
		logging.Routing("intent %s at %.2f flag=%q", intent.Intent, intent.Confidence, intent.Flag)
		return types.Encode(intent)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logging.ClassifierWarn("intent classification failed: %v", err)

	if faqErr == nil {
		logging.Routing("forwarding FAQ match at %.2f to the dispatcher", faq.TopConfidence())
		return types.Encode(faq)
	}
	return nil, fmt.Errorf("classification failed: %w", errors.Join(faqErr, err))
}
