package harness

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/orchestrator"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockRunner records every log it is given and delegates to RunFunc.
type MockRunner struct {
	mu      sync.Mutex
	logs    []types.Log
	RunFunc func(ctx context.Context, attempt int, log types.Log) (orchestrator.Outcome, error)
}

func (m *MockRunner) Run(ctx context.Context, log types.Log) (orchestrator.Outcome, error) {
	m.mu.Lock()
	m.logs = append(m.logs, log)
	attempt := len(m.logs)
	m.mu.Unlock()
	return m.RunFunc(ctx, attempt, log)
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

type memRecorder struct {
	mu        sync.Mutex
	responses []Response
}

func (m *memRecorder) Record(_ context.Context, r Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return nil
}

func completed(answer string) orchestrator.Outcome {
	return orchestrator.Outcome{Status: orchestrator.StatusCompleted, Result: orchestrator.Result{FinalAnswer: answer, OriginLanguage: "en"}}
}

func testConfig() Config {
	return Config{ExchangeTimeout: time.Second, MaxAttempts: 3, Backoff: time.Second}
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	runner := &MockRunner{RunFunc: func(context.Context, int, types.Log) (orchestrator.Outcome, error) {
		return completed("Form 300 is the log."), nil
	}}
	rec := &memRecorder{}
	h := New(runner, testConfig(), WithRecorder(rec))

	resp := h.Execute(context.Background(), "What is OSHA Form 300?", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "Form 300 is the log.", resp.Answer)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.ExchangeID)
	assert.Equal(t, []string{"Form 300 is the log."}, resp.Messages())
	require.Len(t, rec.responses, 1)
	assert.Equal(t, resp.ExchangeID, rec.responses[0].ExchangeID)
}

// Retry isolation: every attempt starts from exactly the original user turn,
// and the previous runtime is gone before the next attempt begins.
func TestExecute_RetryIsolation(t *testing.T) {
	var h *Harness
	var activeSeen []int
	runner := &MockRunner{RunFunc: func(_ context.Context, attempt int, log types.Log) (orchestrator.Outcome, error) {
		activeSeen = append(activeSeen, h.ActiveRuntimes())
		if attempt < 3 {
			return orchestrator.Outcome{}, errors.New("responder exploded")
		}
		return completed("ok"), nil
	}}
	sleeper := &sleepRecorder{}
	h = New(runner, testConfig(), WithSleep(sleeper.sleep))

	resp := h.Execute(context.Background(), "Is a sprain recordable?", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []int{1, 1, 1}, activeSeen)
	assert.Equal(t, 0, h.ActiveRuntimes())

	want := types.Log{types.NewUserTurn("Is a sprain recordable?", nil)}
	for i, log := range runner.logs {
		if diff := cmp.Diff(want, log); diff != "" {
			t.Fatalf("attempt %d did not start from the user turn (-want +got):\n%s", i+1, diff)
		}
	}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.waits)
}

func TestExecute_ExhaustionIsStructured(t *testing.T) {
	runner := &MockRunner{RunFunc: func(context.Context, int, types.Log) (orchestrator.Outcome, error) {
		return orchestrator.Outcome{}, orchestrator.ErrRoutingFailure
	}}
	sleeper := &sleepRecorder{}
	rec := &memRecorder{}
	h := New(runner, testConfig(), WithSleep(sleeper.sleep), WithRecorder(rec))

	resp := h.Execute(context.Background(), "q", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, FailureException, resp.Error.Type)
	assert.Equal(t, 3, resp.Error.Attempts)
	assert.Contains(t, resp.Error.Message, "Orchestration failed")
	assert.ErrorIs(t, resp.Err(), ErrExhausted)
	assert.Len(t, runner.logs, 3)
	assert.Len(t, sleeper.waits, 2, "no backoff after the last attempt")
	require.Len(t, rec.responses, 1)

	var wire map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Messages()[0]), &wire))
	assert.Equal(t, "exception", wire["error"]["type"])
	assert.Equal(t, float64(3), wire["error"]["attempts"])
}

func TestExecute_ExchangeTimeout(t *testing.T) {
	runner := &MockRunner{RunFunc: func(ctx context.Context, _ int, _ types.Log) (orchestrator.Outcome, error) {
		<-ctx.Done()
		return orchestrator.Outcome{}, errors.New("gave up")
	}}
	cfg := Config{ExchangeTimeout: 20 * time.Millisecond, MaxAttempts: 2, Backoff: 0}
	h := New(runner, cfg)

	resp := h.Execute(context.Background(), "q", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, FailureTimeout, resp.Error.Type)
	assert.Equal(t, 2, resp.Error.Attempts)
	assert.Equal(t, 0, h.ActiveRuntimes())
}

func TestExecute_CallerCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &MockRunner{RunFunc: func(context.Context, int, types.Log) (orchestrator.Outcome, error) {
		cancel()
		return orchestrator.Outcome{}, context.Canceled
	}}
	h := New(runner, testConfig())

	resp := h.Execute(ctx, "q", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, FailureException, resp.Error.Type)
}

func TestExecute_SuspensionSurfacesQuestion(t *testing.T) {
	runner := &MockRunner{RunFunc: func(context.Context, int, types.Log) (orchestrator.Outcome, error) {
		return orchestrator.Outcome{
			Status:  orchestrator.StatusSuspended,
			Pending: json.RawMessage(`{"response":"What treatment was provided?","terminated":"False","need_more_info":"True"}`),
		}, nil
	}}
	resp := New(runner, testConfig()).Execute(context.Background(), "Is this recordable?", nil)
	require.Nil(t, resp.Error)
	assert.True(t, resp.Suspended)
	assert.True(t, resp.NeedMoreInfo)
	assert.Equal(t, "What treatment was provided?", resp.Answer)
}

func TestExecute_SuspensionPrefersLocalizedQuestion(t *testing.T) {
	runner := &MockRunner{RunFunc: func(context.Context, int, types.Log) (orchestrator.Outcome, error) {
		return orchestrator.Outcome{
			Status:    orchestrator.StatusSuspended,
			Pending:   json.RawMessage(`{"response":"What treatment was provided?","terminated":"False","need_more_info":"True"}`),
			Localized: "¿Qué tratamiento se proporcionó?",
			Language:  "es",
		}, nil
	}}
	resp := New(runner, testConfig()).Execute(context.Background(), "¿Es registrable?", nil)
	require.Nil(t, resp.Error)
	assert.True(t, resp.Suspended)
	assert.Equal(t, "¿Qué tratamiento se proporcionó?", resp.Answer)
	assert.Equal(t, "es", resp.OriginLanguage)
}

func TestRuntime_StopIsIdempotentAndCancels(t *testing.T) {
	rt := newRuntime(context.Background(), time.Minute)
	started := make(chan struct{})
	rt.Go(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	err := rt.Stop(time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, err, rt.Stop(time.Second))
	assert.False(t, rt.Expired())
}

func TestRuntime_StopGraceExpires(t *testing.T) {
	rt := newRuntime(context.Background(), time.Minute)
	release := make(chan struct{})
	rt.Go(func(context.Context) error {
		<-release
		return nil
	})

	assert.ErrorIs(t, rt.Stop(10*time.Millisecond), errTeardownTimeout)
	select {
	case <-rt.Drained():
		t.Fatal("drained while a task is still running")
	default:
	}

	close(release)
	<-rt.Drained()
	assert.NoError(t, rt.Stop(time.Second))
}

func TestNew_Defaults(t *testing.T) {
	h := New(&MockRunner{}, Config{Backoff: -1})
	assert.Equal(t, DefaultConfig(), h.cfg)

	h = New(&MockRunner{}, Config{})
	assert.Equal(t, time.Duration(0), h.cfg.Backoff, "zero backoff is honoured")
}
