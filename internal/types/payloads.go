package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// FLAGS
// =============================================================================

// Flag is a boolean carried on the wire as the strings "True" and "False".
// Decoding also accepts JSON booleans and lower-case strings because language
// models are not consistent about it.
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"True"`), nil
	}
	return []byte(`"False"`), nil
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = false
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = Flag(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			*f = true
		case "false", "":
			*f = false
		default:
			return fmt.Errorf("invalid flag value %q", x)
		}
	default:
		return fmt.Errorf("invalid flag value %s", string(b))
	}
	return nil
}

// =============================================================================
// DECODED MESSAGES
// =============================================================================

// MessageKind tags the variants of Message.
type MessageKind string

const (
	KindTranslatorInbound  MessageKind = "translator_inbound"
	KindTranslatorOutbound MessageKind = "translator_outbound"
	KindFAQ                MessageKind = "cqa_result"
	KindIntent             MessageKind = "clu_result"
	KindDispatch           MessageKind = "dispatch"
	KindResponse           MessageKind = "response"
)

// Message is a decoded participant payload.
type Message interface {
	Kind() MessageKind
}

// TranslatorInbound carries the user question translated into English.
type TranslatorInbound struct {
	OriginLanguage string          `json:"origin_language"`
	Response       InboundQuestion `json:"response"`
	TargetLanguage string          `json:"target_language"`
}

type InboundQuestion struct {
	CurrentQuestion string `json:"current_question"`
}

func (TranslatorInbound) Kind() MessageKind { return KindTranslatorInbound }

// TranslatorOutbound carries the final answer in the user's language.
type TranslatorOutbound struct {
	OriginLanguage string      `json:"origin_language"`
	SourceLanguage string      `json:"source_language"`
	Response       FinalAnswer `json:"response"`
}

type FinalAnswer struct {
	FinalAnswer  string `json:"final_answer"`
	NeedMoreInfo Flag   `json:"need_more_info"`
}

func (TranslatorOutbound) Kind() MessageKind { return KindTranslatorOutbound }

// RouterResultType is the discriminator of router payloads.
type RouterResultType string

const (
	RouterFAQ    RouterResultType = "cqa_result"
	RouterIntent RouterResultType = "clu_result"
)

// RouterPayload is the wire form of both router results.
type RouterPayload struct {
	Type       RouterResultType `json:"type"`
	Response   json.RawMessage  `json:"response"`
	Terminated Flag             `json:"terminated"`
}

// FAQAnswer is one knowledge base match.
type FAQAnswer struct {
	Answer          string   `json:"answer"`
	ConfidenceScore float64  `json:"confidenceScore"`
	Questions       []string `json:"questions,omitempty"`
	Source          string   `json:"source,omitempty"`
	ID              int      `json:"id,omitempty"`
}

// FAQResult is the normalised question answering result.
type FAQResult struct {
	Answers []FAQAnswer `json:"answers"`
}

// Top returns the highest ranked answer.
func (r FAQResult) Top() (FAQAnswer, bool) {
	if len(r.Answers) == 0 {
		return FAQAnswer{}, false
	}
	return r.Answers[0], true
}

// TopConfidence is the confidence of the top answer, zero when there is none.
func (r FAQResult) TopConfidence() float64 {
	top, ok := r.Top()
	if !ok {
		return 0
	}
	return top.ConfidenceScore
}

func (FAQResult) Kind() MessageKind { return KindFAQ }

// Entity is one extracted entity.
type Entity struct {
	Category string  `json:"category"`
	Text     string  `json:"text"`
	Score    float64 `json:"confidenceScore,omitempty"`
}

// ScoredIntent is one ranked intent candidate.
type ScoredIntent struct {
	Category        string  `json:"category"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Classification flags carried alongside a forwarded intent result.
const (
	FlagLowConfidence = "low_confidence"
	FlagNoIntent      = "no_intent"
)

// IntentResult is the normalised intent classification.
type IntentResult struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   []Entity       `json:"entities"`
	Intents    []ScoredIntent `json:"intents,omitempty"`
	Flag       string         `json:"flag,omitempty"`
}

func (IntentResult) Kind() MessageKind { return KindIntent }

// EntityText returns the text of the first entity in category.
func EntityText(entities []Entity, category string) (string, bool) {
	for _, e := range entities {
		if strings.EqualFold(e.Category, category) && strings.TrimSpace(e.Text) != "" {
			return strings.TrimSpace(e.Text), true
		}
	}
	return "", false
}

// DispatchPayload names the responder chosen by the dispatcher.
type DispatchPayload struct {
	TargetAgent string   `json:"target_agent"`
	Intent      string   `json:"intent"`
	Entities    []Entity `json:"entities"`
	IRIDomains  []string `json:"iri_domains"`
	Terminated  Flag     `json:"terminated"`
}

func (DispatchPayload) Kind() MessageKind { return KindDispatch }

// ResponderPayload is a domain responder answer.
type ResponderPayload struct {
	Response     string   `json:"response"`
	Terminated   Flag     `json:"terminated"`
	NeedMoreInfo Flag     `json:"need_more_info"`
	Citations    []string `json:"citations,omitempty"`
	IncidentID   string   `json:"incident_id,omitempty"`
	ActionTaken  string   `json:"action_taken,omitempty"`
}

func (ResponderPayload) Kind() MessageKind { return KindResponse }

// =============================================================================
// ENCODING
// =============================================================================

// Encode marshals a message into its wire payload.
func Encode(m Message) (Payload, error) {
	switch v := m.(type) {
	case FAQResult:
		return encodeRouter(RouterFAQ, v, true)
	case IntentResult:
		return encodeRouter(RouterIntent, v, false)
	default:
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", m.Kind(), err)
		}
		return raw, nil
	}
}

func encodeRouter(kind RouterResultType, body interface{}, terminated bool) (Payload, error) {
	inner, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return json.Marshal(RouterPayload{Type: kind, Response: inner, Terminated: Flag(terminated)})
}

// =============================================================================
// DECODING
// =============================================================================

// Decode interprets a participant turn according to its speaker. Every
// failure is a *PayloadError matching ErrUnparseable.
func Decode(t Turn) (Message, error) {
	if t.IsUser() {
		return nil, payloadErr(ParticipantNone, "user turns carry no participant message", nil)
	}
	obj, err := object(t)
	if err != nil {
		return nil, err
	}

	switch {
	case t.Speaker == Translator:
		return decodeTranslator(t, obj)
	case t.Speaker == Router:
		return decodeRouter(t, obj)
	case t.Speaker == Dispatcher:
		var d DispatchPayload
		if err := json.Unmarshal(t.Payload, &d); err != nil {
			return nil, payloadErr(t.Speaker, "invalid dispatch fields", err)
		}
		return d, nil
	case t.Speaker.IsResponder():
		if _, ok := obj["response"]; !ok {
			return nil, payloadErr(t.Speaker, "missing response", nil)
		}
		var r ResponderPayload
		if err := json.Unmarshal(t.Payload, &r); err != nil {
			return nil, payloadErr(t.Speaker, "invalid responder fields", err)
		}
		return r, nil
	default:
		return nil, payloadErr(t.Speaker, "unknown speaker", nil)
	}
}

func object(t Turn) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(t.Payload, &obj); err != nil {
		return nil, payloadErr(t.Speaker, "not a JSON object", err)
	}
	if obj == nil {
		return nil, payloadErr(t.Speaker, "null payload", nil)
	}
	return obj, nil
}

func decodeTranslator(t Turn, obj map[string]json.RawMessage) (Message, error) {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(obj["response"], &resp); err != nil || resp == nil {
		return nil, payloadErr(t.Speaker, "missing response object", err)
	}
	if _, ok := resp["final_answer"]; ok {
		var out TranslatorOutbound
		if err := json.Unmarshal(t.Payload, &out); err != nil {
			return nil, payloadErr(t.Speaker, "invalid outbound translation", err)
		}
		return out, nil
	}
	if _, ok := resp["current_question"]; ok {
		var in TranslatorInbound
		if err := json.Unmarshal(t.Payload, &in); err != nil {
			return nil, payloadErr(t.Speaker, "invalid inbound translation", err)
		}
		return in, nil
	}
	return nil, payloadErr(t.Speaker, "response has neither current_question nor final_answer", nil)
}

func decodeRouter(t Turn, obj map[string]json.RawMessage) (Message, error) {
	var rp RouterPayload
	if err := json.Unmarshal(t.Payload, &rp); err != nil {
		return nil, payloadErr(t.Speaker, "invalid router fields", err)
	}
	switch rp.Type {
	case RouterFAQ:
		var faq FAQResult
		if err := json.Unmarshal(rp.Response, &faq); err != nil {
			return nil, payloadErr(t.Speaker, "invalid cqa_result response", err)
		}
		return faq, nil
	case RouterIntent:
		var ir IntentResult
		if err := json.Unmarshal(rp.Response, &ir); err != nil {
			return nil, payloadErr(t.Speaker, "invalid clu_result response", err)
		}
		return ir, nil
	default:
		return nil, payloadErr(t.Speaker, fmt.Sprintf("unknown result type %q", rp.Type), nil)
	}
}

// NeedMoreInfo reports whether the payload carries a top-level
// need_more_info flag set to true. Payloads that are not JSON objects, or
// whose flag cannot be read, report false.
func NeedMoreInfo(p Payload) bool {
	var envelope struct {
		NeedMoreInfo *Flag `json:"need_more_info"`
	}
	if err := json.Unmarshal(p, &envelope); err != nil || envelope.NeedMoreInfo == nil {
		return false
	}
	return bool(*envelope.NeedMoreInfo)
}

// DecodeFinalAnswer strictly decodes an outbound translation: both
// final_answer and need_more_info must be present.
func DecodeFinalAnswer(t Turn) (TranslatorOutbound, error) {
	if t.IsUser() || t.Speaker != Translator {
		return TranslatorOutbound{}, payloadErr(t.Speaker, "final answer must come from the translator", nil)
	}
	var envelope struct {
		OriginLanguage string `json:"origin_language"`
		SourceLanguage string `json:"source_language"`
		Response       *struct {
			FinalAnswer  *string `json:"final_answer"`
			NeedMoreInfo *Flag   `json:"need_more_info"`
		} `json:"response"`
	}
	if err := json.Unmarshal(t.Payload, &envelope); err != nil {
		return TranslatorOutbound{}, payloadErr(t.Speaker, "not a JSON object", err)
	}
	if envelope.Response == nil {
		return TranslatorOutbound{}, payloadErr(t.Speaker, "missing response", nil)
	}
	if envelope.Response.FinalAnswer == nil {
		return TranslatorOutbound{}, payloadErr(t.Speaker, "missing final_answer", nil)
	}
	if envelope.Response.NeedMoreInfo == nil {
		return TranslatorOutbound{}, payloadErr(t.Speaker, "missing need_more_info", nil)
	}
	return TranslatorOutbound{
		OriginLanguage: envelope.OriginLanguage,
		SourceLanguage: envelope.SourceLanguage,
		Response: FinalAnswer{
			FinalAnswer:  *envelope.Response.FinalAnswer,
			NeedMoreInfo: *envelope.Response.NeedMoreInfo,
		},
	}, nil
}
