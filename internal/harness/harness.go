// Package harness supervises exchanges: it bounds each attempt with a timeout,
// retries failed attempts from the original user turn, and converts
// exhaustion into a structured error result.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/orchestrator"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// ErrExhausted marks a response whose attempts all failed.
var ErrExhausted = errors.New("orchestration attempts exhausted")

// FailureType classifies the last failure of an exhausted exchange.
type FailureType string

const (
	FailureTimeout   FailureType = "timeout"
	FailureException FailureType = "exception"
)

// Failure is the structured error surfaced instead of a fault.
type Failure struct {
	Type     FailureType `json:"type"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
}

// Response is the outcome of one supervised exchange.
type Response struct {
	ExchangeID     string        `json:"exchange_id"`
	Question       string        `json:"question"`
	Answer         string        `json:"answer,omitempty"`
	NeedMoreInfo   bool          `json:"need_more_info"`
	Suspended      bool          `json:"suspended,omitempty"`
	OriginLanguage string        `json:"origin_language,omitempty"`
	Attempts       int           `json:"attempts"`
	Duration       time.Duration `json:"duration"`
	Error          *Failure      `json:"error,omitempty"`
}

// Err returns ErrExhausted wrapped with the failure message, or nil.
func (r Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrExhausted, r.Error.Message)
}

// Messages renders the response as chat messages. A failure becomes a single
// JSON message of the form {"error": {...}}.
func (r Response) Messages() []string {
	if r.Error != nil {
		raw, _ := json.Marshal(map[string]*Failure{"error": r.Error})
		return []string{string(raw)}
	}
	return []string{r.Answer}
}

// Runner runs the turn loop of one attempt.
type Runner interface {
	Run(ctx context.Context, log types.Log) (orchestrator.Outcome, error)
}

// Recorder persists exchange outcomes. Failures to record are logged and
// otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, resp Response) error
}

// Config bounds the exchange.
type Config struct {
	ExchangeTimeout time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	// TeardownGrace is how long an attempt waits for participant calls that
	// ignore cancellation. Runtimes still busy afterwards stay counted in
	// ActiveRuntimes until their calls return.
	TeardownGrace time.Duration
}

// DefaultConfig returns 120s per attempt, three attempts, one second apart.
func DefaultConfig() Config {
	return Config{
		ExchangeTimeout: 120 * time.Second,
		MaxAttempts:     3,
		Backoff:         1 * time.Second,
		TeardownGrace:   5 * time.Second,
	}
}

// Harness supervises exchanges. It is safe for concurrent use; exchanges do
// not share any state besides the runner.
type Harness struct {
	runner   Runner
	cfg      Config
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
	active   atomic.Int32
}

// Option configures a Harness.
type Option func(*Harness)

// WithRecorder records every response.
func WithRecorder(r Recorder) Option {
	return func(h *Harness) { h.recorder = r }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Harness) { h.sleep = fn }
}

// New creates a harness. Non-positive limits fall back to DefaultConfig.
func New(runner Runner, cfg Config, opts ...Option) *Harness {
	def := DefaultConfig()
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = def.ExchangeTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.TeardownGrace <= 0 {
		cfg.TeardownGrace = def.TeardownGrace
	}
	h := &Harness{runner: runner, cfg: cfg, sleep: sleepCtx}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ActiveRuntimes is the number of attempt runtimes not yet torn down.
func (h *Harness) ActiveRuntimes() int {
	return int(h.active.Load())
}

// Execute answers one user question. It never returns a fault: exhaustion
// is reported through Response.Error.
func (h *Harness) Execute(ctx context.Context, question string, history []types.HistoryEntry) Response {
	start := time.Now()
	resp := Response{ExchangeID: uuid.NewString(), Question: question}
	user := types.NewUserTurn(question, history)
	log := logging.Get(logging.CategoryHarness).With("exchange", resp.ExchangeID)

	var lastErr error
	for attempt := 1; attempt <= h.cfg.MaxAttempts; attempt++ {
		resp.Attempts = attempt
		log.Debug("attempt %d/%d started", attempt, h.cfg.MaxAttempts)

		outcome, err := h.attempt(ctx, user)
		if err == nil {
			h.fill(&resp, outcome)
			resp.Duration = time.Since(start)
			log.Info("exchange finished in %d attempt(s) (%s)", attempt, outcome.Status)
			h.record(ctx, resp)
			return resp
		}

		lastErr = err
		log.Warn("attempt %d/%d failed (%s): %v", attempt, h.cfg.MaxAttempts, classify(err), err)

		if ctx.Err() != nil {
			break
		}
		if attempt < h.cfg.MaxAttempts {
			if err := h.sleep(ctx, h.cfg.Backoff); err != nil {
				break
			}
		}
	}

	resp.Error = &Failure{
		Type:     classify(lastErr),
		Message:  fmt.Sprintf("Orchestration failed: %v", lastErr),
		Attempts: resp.Attempts,
	}
	resp.Duration = time.Since(start)
	log.Error("exchange exhausted after %d attempt(s): %v", resp.Attempts, lastErr)
	h.record(ctx, resp)
	return resp
}

// attempt runs the turn loop once from exactly the original user turn inside
// a fresh runtime, and tears the runtime down on every exit path. Participant
// calls run in the runtime too, so teardown waits for them.
func (h *Harness) attempt(ctx context.Context, user types.Turn) (orchestrator.Outcome, error) {
	rt := newRuntime(ctx, h.cfg.ExchangeTimeout)
	h.active.Add(1)
	defer h.teardown(rt)

	var outcome orchestrator.Outcome
	finished := make(chan error, 1)
	rt.Go(func(ctx context.Context) error {
		out, err := h.runner.Run(orchestrator.WithSpawner(ctx, rt.group), types.Log{user})
		outcome = out
		finished <- err
		return err
	})

	err := <-finished
	if err != nil && rt.Expired() && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("exchange timeout after %s: %w (%v)", h.cfg.ExchangeTimeout, context.DeadlineExceeded, err)
	}
	return outcome, err
}

func (h *Harness) teardown(rt *runtime) {
	if err := rt.Stop(h.cfg.TeardownGrace); errors.Is(err, errTeardownTimeout) {
		logging.HarnessWarn("runtime %s: participant calls ignored cancellation; releasing it when they return", rt.id)
		go func() {
			<-rt.Drained()
			h.active.Add(-1)
		}()
		return
	}
	h.active.Add(-1)
}

func (h *Harness) fill(resp *Response, outcome orchestrator.Outcome) {
	switch outcome.Status {
	case orchestrator.StatusSuspended:
		resp.Suspended = true
		resp.NeedMoreInfo = true
		resp.Answer = outcome.Clarification()
		resp.OriginLanguage = outcome.Language
	default:
		resp.Answer = outcome.Result.FinalAnswer
		resp.NeedMoreInfo = outcome.Result.NeedMoreInfo
		resp.OriginLanguage = outcome.Result.OriginLanguage
	}
}

func (h *Harness) record(ctx context.Context, resp Response) {
	if h.recorder == nil {
		return
	}
	// The caller's context may already be done; recording is still wanted.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.recorder.Record(rctx, resp); err != nil {
		logging.HarnessWarn("failed to record exchange %s: %v", resp.ExchangeID, err)
	}
}

func classify(err error) FailureType {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureException
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
