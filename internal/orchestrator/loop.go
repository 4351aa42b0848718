package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// ErrTurnLimit is returned when an exchange exceeds the configured number of
// participant turns without terminating.
var ErrTurnLimit = errors.New("turn limit exceeded")

// Status tells the caller how the turn loop stopped.
type Status int

const (
	StatusCompleted Status = iota
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Outcome is what one run of the turn loop produced.
type Outcome struct {
	Status Status
	// Result is set when Status is StatusCompleted.
	Result Result
	// Pending is the payload asking for clarification when Status is
	// StatusSuspended.
	Pending types.Payload
	// Localized is Pending's question in the user's language, and Language
	// that language. Both are empty when no translation was made.
	Localized string
	Language  string
	Log       types.Log
}

// Clarification returns the question a suspended exchange put to the user.
func (o Outcome) Clarification() string {
	if o.Status != StatusSuspended {
		return ""
	}
	if o.Localized != "" {
		return o.Localized
	}
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(o.Pending, &envelope); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Response, &text); err == nil {
		return text
	}
	var nested struct {
		FinalAnswer string `json:"final_answer"`
	}
	if err := json.Unmarshal(envelope.Response, &nested); err == nil {
		return nested.FinalAnswer
	}
	return ""
}

// CallError wraps a failed participant turn.
type CallError struct {
	Speaker types.Participant
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Speaker, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Orchestrator runs the sequential turn loop of one exchange.
type Orchestrator struct {
	roster      types.Roster
	selector    Selector
	callTimeout time.Duration
	maxTurns    int
	onTurn      func(types.Turn, Decision)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout bounds each participant turn.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithMaxTurns bounds the number of participant turns in one run.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) { o.maxTurns = n }
}

// WithTurnHook is called after each participant turn is appended, with the
// decision that selected the speaker.
func WithTurnHook(fn func(types.Turn, Decision)) Option {
	return func(o *Orchestrator) { o.onTurn = fn }
}

// New creates an orchestrator over a roster of speakers.
func New(roster types.Roster, selector Selector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		roster:      roster,
		selector:    selector,
		callTimeout: 60 * time.Second,
		maxTurns:    12,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run advances log until the exchange terminates or suspends for user input.
// Running on a log that already ends in a clarification request returns the
// same suspension without calling anyone.
func (o *Orchestrator) Run(ctx context.Context, log types.Log) (Outcome, error) {
	for turns := 0; ; turns++ {
		if NeedsUserInput(log) {
			latest, _ := log.Latest()
			logging.Routing("%s needs more information; suspending for the user", latest.Speaker)
			out := Outcome{Status: StatusSuspended, Pending: latest.Payload, Log: log}
			if turns > 0 {
				out.Localized, out.Language = o.localize(ctx, log)
			}
			return out, nil
		}
		if IsTerminal(log) {
			res, err := ExtractResult(log)
			if err != nil {
				return Outcome{Log: log}, err
			}
			return Outcome{Status: StatusCompleted, Result: res, Log: log}, nil
		}
		if turns >= o.maxTurns {
			return Outcome{Log: log}, fmt.Errorf("%w: %d turns", ErrTurnLimit, turns)
		}
		if err := ctx.Err(); err != nil {
			return Outcome{Log: log}, err
		}

		dec, err := o.selector.SelectNext(log)
		if err != nil {
			return Outcome{Log: log}, err
		}
		if dec.Terminated() {
			// SelectNext only terminates on a terminal log, which is handled above.
			return Outcome{Log: log}, fmt.Errorf("%w: terminated without a final translation", ErrRoutingFailure)
		}
		logging.RoutingDebug("next speaker %s: %s", dec.Next, dec.Reason)

		speaker, ok := o.roster.Lookup(dec.Next)
		if !ok {
			return Outcome{Log: log}, fmt.Errorf("%w: %s is not registered", ErrRoutingFailure, dec.Next)
		}

		payload, err := o.call(ctx, speaker, log)
		if err != nil {
			return Outcome{Log: log}, &CallError{Speaker: dec.Next, Err: err}
		}

		turn := types.NewParticipantTurn(dec.Next, payload)
		log = log.Append(turn)
		if o.onTurn != nil {
			o.onTurn(turn, dec)
		}
	}
}

// localize has the translator render a pending clarification in the user's
// language. The translator turn is not appended: the log stays suspended on
// the responder. Failures keep the responder's text.
func (o *Orchestrator) localize(ctx context.Context, log types.Log) (string, string) {
	sp, ok := o.roster.Lookup(types.Translator)
	if !ok {
		return "", ""
	}
	payload, err := o.call(ctx, sp, log)
	if err != nil {
		logging.RoutingWarn("clarification left untranslated: %v", err)
		return "", ""
	}
	var out types.TranslatorOutbound
	if err := json.Unmarshal(payload, &out); err != nil {
		logging.RoutingWarn("clarification translation unreadable: %v", err)
		return "", ""
	}
	return out.Response.FinalAnswer, out.OriginLanguage
}

type callResult struct {
	payload types.Payload
	err     error
}

// Spawner starts participant calls. *errgroup.Group satisfies it.
type Spawner interface {
	Go(fn func() error)
}

type spawnerKey struct{}

// WithSpawner makes Run start its participant calls through s, so whoever
// owns s can wait for calls that outlive their deadline.
func WithSpawner(ctx context.Context, s Spawner) context.Context {
	return context.WithValue(ctx, spawnerKey{}, s)
}

func spawn(ctx context.Context, fn func()) {
	if s, ok := ctx.Value(spawnerKey{}).(Spawner); ok && s != nil {
		s.Go(func() error {
			fn()
			return nil
		})
		return
	}
	go fn()
}

// call runs one participant turn in its own goroutine and waits for its
// result or the per-call deadline, whichever comes first.
func (o *Orchestrator) call(ctx context.Context, sp types.Speaker, log types.Log) (types.Payload, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	spawn(ctx, func() {
		p, err := sp.Respond(callCtx, log)
		done <- callResult{payload: p, err: err}
	})

	select {
	case r := <-done:
		return r.payload, r.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}
