package language

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
)

// TranslatorConfig configures the Translator text API v3 client.
type TranslatorConfig struct {
	Endpoint string
	APIKey   string
	Region   string
	Timeout  time.Duration
}

// TranslatorClient detects languages and translates text.
type TranslatorClient struct {
	svc service
}

// NewTranslatorClient creates a Translator client.
func NewTranslatorClient(cfg TranslatorConfig) *TranslatorClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.cognitive.microsofttranslator.com"
	}
	return &TranslatorClient{svc: newService(cfg.Endpoint, cfg.APIKey, cfg.Region, cfg.Timeout)}
}

type textItem struct {
	Text string `json:"Text"`
}

// Detect returns the ISO code of the text's language.
func (c *TranslatorClient) Detect(ctx context.Context, text string) (string, error) {
	var out []struct {
		Language string  `json:"language"`
		Score    float64 `json:"score"`
	}
	u := c.svc.endpoint + "/detect?api-version=3.0"
	if err := c.svc.postJSON(ctx, u, []textItem{{Text: text}}, &out); err != nil {
		return "", fmt.Errorf("language detection failed: %w", err)
	}
	if len(out) == 0 || out[0].Language == "" {
		return "", fmt.Errorf("language detection returned no result")
	}
	logging.TranslatorDebug("detected %s (score %.2f)", out[0].Language, out[0].Score)
	return out[0].Language, nil
}

// Translate converts text from one language to another. An empty from lets
// the service detect the source.
func (c *TranslatorClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", to)
	if from != "" {
		q.Set("from", from)
	}
	var out []struct {
		Translations []struct {
			Text string `json:"text"`
			To   string `json:"to"`
		} `json:"translations"`
	}
	if err := c.svc.postJSON(ctx, c.svc.endpoint+"/translate?"+q.Encode(), []textItem{{Text: text}}, &out); err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		return "", fmt.Errorf("translation returned no result")
	}
	return out[0].Translations[0].Text, nil
}
