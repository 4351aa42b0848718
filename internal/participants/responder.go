package participants

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/perception"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// =============================================================================
// REQUEST / ANSWER
// =============================================================================

// request is everything a responder knows about the question it was given.
type request struct {
	Question string
	Intent   string
	Entities []types.Entity
	Domains  []string
	Now      time.Time
}

// entity returns the first entity found under any of the categories.
func (r request) entity(categories ...string) (string, bool) {
	for _, c := range categories {
		if v, ok := types.EntityText(r.Entities, c); ok {
			return v, true
		}
	}
	return "", false
}

func (r request) integer(categories ...string) (int, bool) {
	v, ok := r.entity(categories...)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r request) number(categories ...string) (float64, bool) {
	v, ok := r.entity(categories...)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// mentions reports whether the question contains any of the words.
func (r request) mentions(words ...string) bool {
	q := strings.ToLower(r.Question)
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// answer is the composed result of a responder before encoding.
type answer struct {
	Text       string
	NeedMore   bool
	Citations  []string
	IncidentID string
	Action     string
}

func clarify(text string) answer {
	return answer{Text: text, NeedMore: true}
}

// sections joins non-empty parts with blank lines.
func sections(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var citationPattern = regexp.MustCompile(`29 CFR \d{4}(?:\.\d+)?(?:\([0-9a-z]+\))*`)

// citationsIn lists the CFR citations in text, in order.
func citationsIn(text string) []string {
	return citationPattern.FindAllString(text, -1)
}

func mergeCitations(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, c := range list {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// RESPONDER
// =============================================================================

// domain composes the answer for one area of expertise.
type domain interface {
	compose(ctx context.Context, req request) answer
}

// Responder answers dispatched questions for one domain. Answers are composed
// from plugin output; an optional language model rewrites them into prose.
type Responder struct {
	kind   types.Participant
	domain domain
	system string
	llm    perception.LLMClient
	now    func() time.Time
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithRewriter lets a language model rewrite composed answers. Rewrite
// failures keep the composed text.
func WithRewriter(client perception.LLMClient) ResponderOption {
	return func(r *Responder) { r.llm = client }
}

// WithClock replaces time.Now for date-dependent answers.
func WithClock(now func() time.Time) ResponderOption {
	return func(r *Responder) { r.now = now }
}

func newResponder(kind types.Participant, d domain, system string, opts []ResponderOption) *Responder {
	r := &Responder{kind: kind, domain: d, system: system, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Responder) Kind() types.Participant { return r.kind }

// Respond answers the question of the current exchange, or asks for the
// details it is missing.
func (r *Responder) Respond(ctx context.Context, log types.Log) (types.Payload, error) {
	in, err := inboundQuestion(log)
	if err != nil {
		return nil, err
	}
	dispatch, err := latestDispatch(log)
	if err != nil {
		return nil, err
	}
	req := request{
		Question: in.Response.CurrentQuestion,
		Intent:   dispatch.Intent,
		Entities: dispatch.Entities,
		Domains:  dispatch.IRIDomains,
		Now:      r.now(),
	}

	a := r.domain.compose(ctx, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := citationsIn(a.Text)
	if !a.NeedMore && r.llm != nil {
		a = r.rewrite(ctx, req, a)
	}
	a.Citations = mergeCitations(found, a.Citations, citationsIn(a.Text))

	logging.Participants("%s answered intent %q (need_more_info=%t, %d citations)",
		r.kind, req.Intent, a.NeedMore, len(a.Citations))
	return types.Encode(types.ResponderPayload{
		Response:     a.Text,
		Terminated:   types.Flag(!a.NeedMore),
		NeedMoreInfo: types.Flag(a.NeedMore),
		Citations:    a.Citations,
		IncidentID:   a.IncidentID,
		ActionTaken:  a.Action,
	})
}

func (r *Responder) rewrite(ctx context.Context, req request, a answer) answer {
	prompt := fmt.Sprintf("Question: %s\nIntent: %s\nDomains: %s\n\nMaterial:\n%s\n\n%s",
		req.Question, req.Intent, strings.Join(req.Domains, ", "), a.Text, rewriteInstructions)
	raw, err := r.llm.CompleteWithSystem(ctx, r.system, prompt)
	if err != nil {
		logging.ParticipantsWarn("%s rewrite failed: %v", r.kind, err)
		return a
	}
	obj, ok := perception.ExtractJSONObject(raw)
	if !ok {
		logging.ParticipantsWarn("%s rewrite returned no JSON object", r.kind)
		return a
	}
	var out struct {
		Response  string   `json:"response"`
		Citations []string `json:"citations"`
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil || strings.TrimSpace(out.Response) == "" {
		logging.ParticipantsWarn("%s rewrite unusable: %v", r.kind, err)
		return a
	}
	a.Text = out.Response
	a.Citations = mergeCitations(a.Citations, out.Citations)
	return a
}
