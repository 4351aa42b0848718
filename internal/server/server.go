// Package server exposes the orchestrator over HTTP.
//
// The running stack sits behind an atomic pointer. A config reload builds a
// new stack and swaps it in; exchanges already in flight finish on the stack
// they started with, which is closed once they have drained.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// maxBody bounds a chat request.
const maxBody = 1 << 20

// ErrClosed is returned for exchanges that arrive after Close.
var ErrClosed = errors.New("server closed")

// generation is one booted stack plus the exchanges using it.
type generation struct {
	stack  *system.Stack
	mu     sync.RWMutex
	closed bool
}

// Server serves the chat API.
type Server struct {
	current atomic.Pointer[generation]
	reloads atomic.Int64
	started time.Time
}

// New serves stack until the next Swap.
func New(stack *system.Stack) *Server {
	s := &Server{started: time.Now()}
	s.current.Store(&generation{stack: stack})
	return s
}

// Stack returns the stack new exchanges run on.
func (s *Server) Stack() *system.Stack {
	return s.current.Load().stack
}

// Swap installs stack for new exchanges. The previous stack is closed in the
// background after its in-flight exchanges finish.
func (s *Server) Swap(stack *system.Stack) {
	old := s.current.Swap(&generation{stack: stack})
	s.reloads.Add(1)
	logging.Server("stack swapped (reload #%d)", s.reloads.Load())
	if old != nil {
		go old.retire()
	}
}

// Close closes the current stack.
func (s *Server) Close() error {
	g := s.current.Load()
	if g == nil {
		return nil
	}
	return g.retire()
}

func (g *generation) retire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.stack.Close()
}

// acquire pins the current stack. The caller must call the release func.
// A closed generation that is still current means the server was closed; one
// that was swapped out is retried against its replacement.
func (s *Server) acquire() (*system.Stack, func(), error) {
	for {
		g := s.current.Load()
		g.mu.RLock()
		if !g.closed {
			return g.stack, g.mu.RUnlock, nil
		}
		g.mu.RUnlock()
		if s.current.Load() == g {
			return nil, nil, ErrClosed
		}
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /agents", s.handleAgents)
	return mux
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string               `json:"message"`
	History []types.HistoryEntry `json:"history"`
}

// ChatResponse is the body returned by POST /chat. Messages always holds
// exactly one entry: the answer, the clarification, or a JSON error object.
type ChatResponse struct {
	Messages     []string `json:"messages"`
	ExchangeID   string   `json:"exchange_id"`
	NeedMoreInfo bool     `json:"need_more_info"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	stack, release, err := s.acquire()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer release()

	resp := stack.Harness.Execute(r.Context(), req.Message, req.History)
	logging.ServerDebug("exchange %s finished in %s (attempts=%d)", resp.ExchangeID, resp.Duration, resp.Attempts)
	writeJSON(w, http.StatusOK, ChatResponse{
		Messages:     resp.Messages(),
		ExchangeID:   resp.ExchangeID,
		NeedMoreInfo: resp.NeedMoreInfo,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stack, release, err := s.acquire()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "closed"})
		return
	}
	defer release()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"agents":          len(stack.Agents()),
		"active_runtimes": stack.Harness.ActiveRuntimes(),
		"reloads":         s.reloads.Load(),
		"uptime":          time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.Stack().Agents(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerWarn("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves on addr until ctx is cancelled. When reloader is non-nil it
// watches the config file alongside the listener.
func (s *Server) Run(ctx context.Context, addr string, readTimeout time.Duration, reloader *Reloader) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Server("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Server("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if reloader != nil {
		g.Go(func() error {
			return reloader.Run(ctx)
		})
	}
	return g.Wait()
}
