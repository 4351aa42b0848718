package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
)

// OpenAIClient implements LLMClient for the OpenAI chat completions API and
// for Azure OpenAI deployments.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	azure       bool
	apiVersion  string
	httpClient  *http.Client
	retryBase   time.Duration
	maxRetries  int
	mu          sync.Mutex
	lastRequest time.Time
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Azure && config.APIVersion == "" {
		config.APIVersion = "2024-06-01"
	}
	return &OpenAIClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		azure:      config.Azure,
		apiVersion: config.APIVersion,
		httpClient: &http.Client{Timeout: config.Timeout},
		retryBase:  time.Second,
		maxRetries: 3,
	}
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *OpenAIClient) endpoint() string {
	if c.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiVersion))
	}
	return c.baseURL + "/chat/completions"
}

// CompleteWithSystem sends a prompt with a system message. Prompts that ask
// for JSON get JSON response_format.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withDefaultDeadline(ctx, c.httpClient.Timeout)
	defer cancel()

	startTime := time.Now()
	logging.APIDebug("[OpenAI] CompleteWithSystem: model=%s azure=%v system_len=%d user_len=%d",
		c.model, c.azure, len(systemPrompt), len(userPrompt))

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := OpenAIRequest{
		Messages: []OpenAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   2048,
		Temperature: 0.1,
	}
	if !c.azure {
		reqBody.Model = c.model
	}
	if wantsJSON(systemPrompt, userPrompt) {
		reqBody.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, time.Duration(1<<uint(i-1))*c.retryBase); err != nil {
				return "", fmt.Errorf("retry wait interrupted: %w (last error: %v)", err, lastErr)
			}
		}

		content, retry, err := c.do(ctx, jsonData)
		if err == nil {
			logging.API("[OpenAI] completed in %v response_len=%d", time.Since(startTime), len(content))
			return content, nil
		}
		if !retry || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}

	logging.APIWarn("[OpenAI] max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do performs one request. retry reports whether the failure is transient.
func (c *OpenAIClient) do(ctx context.Context, body []byte) (content string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
	}

	var openaiResp OpenAIResponse
	if err := json.Unmarshal(data, &openaiResp); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if openaiResp.Error != nil {
		return "", false, fmt.Errorf("API error: %s", openaiResp.Error.Message)
	}
	if len(openaiResp.Choices) == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(openaiResp.Choices[0].Message.Content), false, nil
}

// wantsJSON detects prompts that require JSON output.
func wantsJSON(systemPrompt, userPrompt string) bool {
	combined := strings.ToLower(systemPrompt + "\n" + userPrompt)
	return strings.Contains(combined, "json")
}
