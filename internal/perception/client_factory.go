package perception

import (
	"context"
	"fmt"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
)

// NewClientFromConfig builds the configured LLM client. It returns a nil
// client and no error when no provider is configured.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (LLMClient, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		oc.Timeout = timeout
		return NewOpenAIClientWithConfig(oc), nil
	case "azure-openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure-openai requires a base URL")
		}
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    timeout,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil
	case "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		gc.BaseURL = cfg.BaseURL
		gc.Timeout = timeout
		return NewGeminiClient(ctx, gc)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
