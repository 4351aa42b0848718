package participants

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/perception"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

const english = "en"

// TranslationBackend detects and translates text.
type TranslationBackend interface {
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Passthrough treats every text as English.
type Passthrough struct{}

func (Passthrough) Detect(context.Context, string) (string, error) { return english, nil }

func (Passthrough) Translate(_ context.Context, text, _, _ string) (string, error) { return text, nil }

// LLMTranslation translates with a language model.
type LLMTranslation struct {
	client perception.LLMClient
}

// NewLLMTranslation wraps client as a translation backend.
func NewLLMTranslation(client perception.LLMClient) *LLMTranslation {
	return &LLMTranslation{client: client}
}

func (l *LLMTranslation) Detect(ctx context.Context, text string) (string, error) {
	var out struct {
		Language string `json:"language"`
	}
	if err := l.ask(ctx, detectPrompt, text, &out); err != nil {
		return "", err
	}
	lang := strings.ToLower(strings.TrimSpace(out.Language))
	if lang == "" {
		return "", fmt.Errorf("language model returned no language code")
	}
	return lang, nil
}

func (l *LLMTranslation) Translate(ctx context.Context, text, from, to string) (string, error) {
	var out struct {
		Translation string `json:"translation"`
	}
	prompt := fmt.Sprintf("Source language: %s\nTarget language: %s\nText:\n%s", from, to, text)
	if err := l.ask(ctx, translatePrompt, prompt, &out); err != nil {
		return "", err
	}
	if out.Translation == "" {
		return "", fmt.Errorf("language model returned an empty translation")
	}
	return out.Translation, nil
}

func (l *LLMTranslation) ask(ctx context.Context, system, user string, out interface{}) error {
	raw, err := l.client.CompleteWithSystem(ctx, system, user)
	if err != nil {
		return err
	}
	obj, ok := perception.ExtractJSONObject(raw)
	if !ok {
		return fmt.Errorf("no JSON object in translation output")
	}
	return json.Unmarshal([]byte(obj), out)
}

// Translator brings the question into English before classification and
// the final answer back into the user's language.
type Translator struct {
	backend TranslationBackend
}

// NewTranslator creates the translator. A nil backend passes text through.
func NewTranslator(backend TranslationBackend) *Translator {
	if backend == nil {
		backend = Passthrough{}
	}
	return &Translator{backend: backend}
}

func (t *Translator) Kind() types.Participant { return types.Translator }

// Respond translates inbound when the user spoke last and outbound otherwise.
func (t *Translator) Respond(ctx context.Context, log types.Log) (types.Payload, error) {
	latest, ok := log.Latest()
	if !ok {
		return nil, fmt.Errorf("translator called on an empty log")
	}
	if latest.IsUser() {
		return t.inbound(ctx, latest)
	}
	return t.outbound(ctx, log, latest)
}

func (t *Translator) inbound(ctx context.Context, user types.Turn) (types.Payload, error) {
	input, err := user.DecodeUserInput()
	if err != nil {
		return nil, err
	}
	query := foldThread(strings.TrimSpace(input.Query), input.History)

	origin, err := t.backend.Detect(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("language detection failed: %w", err)
	}
	origin = normalizeLanguage(origin)

	question := query
	if origin != english {
		question, err = t.backend.Translate(ctx, query, origin, english)
		if err != nil {
			return nil, fmt.Errorf("inbound translation failed: %w", err)
		}
	}
	logging.TranslatorDebug("inbound %s -> en: %q", origin, question)

	return types.Encode(types.TranslatorInbound{
		OriginLanguage: origin,
		Response:       types.InboundQuestion{CurrentQuestion: question},
		TargetLanguage: english,
	})
}

func (t *Translator) outbound(ctx context.Context, log types.Log, latest types.Turn) (types.Payload, error) {
	text, needMore, err := answerOf(latest)
	if err != nil {
		return nil, err
	}

	origin := english
	if in, err := inboundQuestion(log); err == nil && in.OriginLanguage != "" {
		origin = normalizeLanguage(in.OriginLanguage)
	}

	final := text
	if origin != english {
		final, err = t.backend.Translate(ctx, text, english, origin)
		if err != nil {
			return nil, fmt.Errorf("outbound translation failed: %w", err)
		}
	}
	logging.TranslatorDebug("outbound en -> %s (%d chars)", origin, len(final))

	return types.Encode(types.TranslatorOutbound{
		OriginLanguage: origin,
		SourceLanguage: english,
		Response: types.FinalAnswer{
			FinalAnswer:  final,
			NeedMoreInfo: types.Flag(needMore),
		},
	})
}

// maxThreadTurns bounds how many earlier user messages are folded into a
// follow-up question.
const maxThreadTurns = 3

// foldThread prefixes query with the user messages of a pending
// clarification thread: the user turns that follow the last assistant
// message that did not ask anything. A follow-up like "he got 3 stitches" is
// then classified together with the question it answers.
func foldThread(query string, history []types.HistoryEntry) string {
	var thread []string
	for i := len(history) - 1; i >= 0 && len(thread) < maxThreadTurns; i-- {
		content := strings.TrimSpace(history[i].Content)
		role := strings.ToLower(history[i].Role)
		if role == "assistant" && !strings.Contains(content, "?") {
			break
		}
		if role == "user" && content != "" {
			thread = append(thread, content)
		}
	}
	if len(thread) == 0 {
		return query
	}
	slices.Reverse(thread)
	return strings.Join(append(thread, query), " ")
}

// answerOf reads the English answer from a responder or a direct FAQ result.
func answerOf(turn types.Turn) (string, bool, error) {
	msg, err := types.Decode(turn)
	if err != nil {
		return "", false, err
	}
	switch m := msg.(type) {
	case types.ResponderPayload:
		return m.Response, bool(m.NeedMoreInfo), nil
	case types.FAQResult:
		top, ok := m.Top()
		if !ok {
			return "", false, fmt.Errorf("FAQ result has no answer to translate")
		}
		return top.Answer, false, nil
	default:
		return "", false, fmt.Errorf("nothing to translate after a %s message", msg.Kind())
	}
}

// normalizeLanguage maps "EN", "en-US" and "english" to "en". Other codes
// keep their casing ("zh-Hans").
func normalizeLanguage(lang string) string {
	trimmed := strings.TrimSpace(lang)
	l := strings.ToLower(trimmed)
	switch {
	case l == "", l == "english", l == english, strings.HasPrefix(l, "en-"):
		return english
	}
	return trimmed
}
