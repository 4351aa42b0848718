package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

func bootOffline(t *testing.T) *system.Stack {
	t.Helper()
	stack, err := system.Boot(context.Background(), config.DefaultConfig(), system.WithOffline(), system.WithoutLedger())
	require.NoError(t, err)
	return stack
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(bootOffline(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func postChat(t *testing.T, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url+"/chat", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestChat_Answers(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postChat(t, ts.URL, ChatRequest{
		Message: "What makes an injury work-related?",
		History: []types.HistoryEntry{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "Hi."}},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0], "Per 29 CFR 1904.5")
	assert.False(t, out.NeedMoreInfo)
	assert.NotEmpty(t, out.ExchangeID)
}

func TestChat_RejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postChat(t, ts.URL, ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "message is required")

	raw, err := http.Post(ts.URL+"/chat", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	get, err := http.Get(ts.URL + "/chat")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestAgentsAndHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	var agents struct {
		Agents []types.AgentHandle `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	require.Len(t, agents.Agents, 7)
	for _, a := range agents.Agents {
		assert.NotEmpty(t, a.Name)
	}

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&status))
	assert.Equal(t, "ok", status["status"])
	assert.EqualValues(t, 7, status["agents"])
	assert.EqualValues(t, 0, status["reloads"])
}

func TestClose_RejectsNewExchanges(t *testing.T) {
	srv, ts := newTestServer(t)
	require.NoError(t, srv.Close())

	resp, body := postChat(t, ts.URL, ChatRequest{Message: "What counts as first aid?"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), ErrClosed.Error())

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, health.StatusCode)

	srv.Swap(bootOffline(t))
	resp, _ = postChat(t, ts.URL, ChatRequest{Message: "What counts as first aid?"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a swapped-in stack serves again")
}

func TestSwap_NewExchangesUseNewStack(t *testing.T) {
	srv, ts := newTestServer(t)
	first := srv.Stack()

	next := bootOffline(t)
	srv.Swap(next)
	assert.Same(t, next, srv.Stack())
	assert.NotSame(t, first, srv.Stack())

	resp, _ := postChat(t, ts.URL, ChatRequest{Message: "What counts as first aid?"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&status))
	assert.EqualValues(t, 1, status["reloads"])
}

func TestReloader_RebuildsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.yaml")
	require.NoError(t, config.DefaultConfig().Save(path))

	applied := make(chan *system.Stack, 4)
	boot := func(_ context.Context, cfg *config.Config) (*system.Stack, error) {
		return &system.Stack{Config: cfg}, nil
	}
	r, err := NewReloader(path, 20*time.Millisecond, boot, func(s *system.Stack) { applied <- s })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	cfg := config.DefaultConfig()
	cfg.Orchestration.MaxTurns = 20
	require.NoError(t, cfg.Save(path))

	select {
	case s := <-applied:
		assert.Equal(t, 20, s.Config.Orchestration.MaxTurns)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
	assert.GreaterOrEqual(t, r.Stats().Reloads, 1)
}

func TestReloader_KeepsStackOnBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.yaml")
	require.NoError(t, config.DefaultConfig().Save(path))

	boot := func(_ context.Context, cfg *config.Config) (*system.Stack, error) {
		return &system.Stack{Config: cfg}, nil
	}
	applied := make(chan *system.Stack, 1)
	r, err := NewReloader(path, 20*time.Millisecond, boot, func(s *system.Stack) { applied <- s })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("orchestration: [not, a, map"), 0644))
	require.Eventually(t, func() bool { return r.Stats().Failures > 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, applied)
	assert.Zero(t, r.Stats().Reloads)
}

func TestReloader_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iris.yaml")
	require.NoError(t, config.DefaultConfig().Save(path))

	r, err := NewReloader(path, 20*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer r.watcher.Close()

	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write})
	r.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	assert.False(t, r.settled())
	assert.Zero(t, r.Stats().Events)
}
