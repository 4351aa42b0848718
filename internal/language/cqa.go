package language

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// CQAConfig configures the question answering client.
type CQAConfig struct {
	Endpoint   string
	APIKey     string
	Project    string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// CQAClient calls the :query-knowledgebases runtime.
type CQAClient struct {
	svc        service
	project    string
	deployment string
	apiVersion string
}

// NewCQAClient creates a CQA client.
func NewCQAClient(cfg CQAConfig) *CQAClient {
	if cfg.Project == "" {
		cfg.Project = "sagevia-osha-faq"
	}
	if cfg.Deployment == "" {
		cfg.Deployment = "production"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2021-10-01"
	}
	return &CQAClient{
		svc:        newService(cfg.Endpoint, cfg.APIKey, "", cfg.Timeout),
		project:    cfg.Project,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
	}
}

type cqaRequest struct {
	Question string `json:"question"`
	Top      int    `json:"top"`
}

// QueryFAQ asks the knowledge base. Answers come back ranked by confidence.
func (c *CQAClient) QueryFAQ(ctx context.Context, question string) (types.FAQResult, error) {
	u := fmt.Sprintf("%s/language/:query-knowledgebases?projectName=%s&deploymentName=%s&api-version=%s",
		c.svc.endpoint, url.QueryEscape(c.project), url.QueryEscape(c.deployment), url.QueryEscape(c.apiVersion))

	var res types.FAQResult
	if err := c.svc.postJSON(ctx, u, cqaRequest{Question: question, Top: 3}, &res); err != nil {
		return types.FAQResult{}, fmt.Errorf("CQA runtime call failed: %w", err)
	}
	logging.ClassifierDebug("CQA returned %d answer(s), top confidence %.2f", len(res.Answers), res.TopConfidence())
	return res, nil
}
