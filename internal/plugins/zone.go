// Package plugins implements the domain tools the responders draw on. Each
// tool calls its zone service when one is configured and falls back to
// static reference material when the service cannot be reached.
package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
)

// ErrUnavailable marks a zone service that is not configured or could not be
// reached. Callers switch to their static fallback on it.
var ErrUnavailable = errors.New("zone service unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zone request failed with status %d: %s", e.StatusCode, e.Body)
}

// zone is a small JSON client for one plugin service.
type zone struct {
	name       string
	baseURL    string
	token      string
	httpClient *http.Client
}

func newZone(name, baseURL, token string, timeout time.Duration) zone {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return zone{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (z zone) enabled() bool { return z.baseURL != "" }

func (z zone) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return z.do(ctx, http.MethodGet, path, query, nil, out)
}

func (z zone) post(ctx context.Context, path string, body, out interface{}) error {
	return z.do(ctx, http.MethodPost, path, nil, body, out)
}

func (z zone) patch(ctx context.Context, path string, body, out interface{}) error {
	return z.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (z zone) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if !z.enabled() {
		return fmt.Errorf("%s: %w", z.name, ErrUnavailable)
	}

	target := z.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if z.token != "" {
		req.Header.Set("Authorization", "Bearer "+z.token)
	}

	logging.PluginsDebug("%s %s %s", z.name, method, path)
	resp, err := z.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.PluginsWarn("%s unreachable: %v", z.name, err)
		return fmt.Errorf("%s: %w: %v", z.name, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

const rule = "=================================================="
