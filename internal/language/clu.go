package language

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// CLUConfig configures the conversational language understanding client.
type CLUConfig struct {
	Endpoint   string
	APIKey     string
	Project    string
	Deployment string
	APIVersion string
	Threshold  float64
	Timeout    time.Duration
}

// CLUClient calls the :analyze-conversations runtime.
type CLUClient struct {
	svc        service
	project    string
	deployment string
	apiVersion string
	threshold  float64
}

// NewCLUClient creates a CLU client.
func NewCLUClient(cfg CLUConfig) *CLUClient {
	if cfg.Project == "" {
		cfg.Project = "sagevia-osha-clu"
	}
	if cfg.Deployment == "" {
		cfg.Deployment = "production"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-04-01"
	}
	return &CLUClient{
		svc:        newService(cfg.Endpoint, cfg.APIKey, "", cfg.Timeout),
		project:    cfg.Project,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		threshold:  cfg.Threshold,
	}
}

type cluRequest struct {
	Kind          string           `json:"kind"`
	AnalysisInput cluAnalysisInput `json:"analysisInput"`
	Parameters    cluParameters    `json:"parameters"`
}

type cluAnalysisInput struct {
	ConversationItem cluItem `json:"conversationItem"`
}

type cluItem struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`
	Language      string `json:"language"`
	Text          string `json:"text"`
}

type cluParameters struct {
	ProjectName    string `json:"projectName"`
	DeploymentName string `json:"deploymentName"`
}

// CLUResponse is the runtime response body.
type CLUResponse struct {
	Kind   string `json:"kind"`
	Result struct {
		Query      string `json:"query"`
		Prediction struct {
			TopIntent   string `json:"topIntent"`
			ProjectKind string `json:"projectKind"`
			Intents     []struct {
				Category        string  `json:"category"`
				Name            string  `json:"name"`
				ConfidenceScore float64 `json:"confidenceScore"`
			} `json:"intents"`
			Entities []types.Entity `json:"entities"`
		} `json:"prediction"`
	} `json:"result"`
}

// Classify sends one utterance to the runtime.
func (c *CLUClient) Classify(ctx context.Context, utterance, language, id string) (types.IntentResult, error) {
	if language == "" {
		language = "en"
	}
	body := cluRequest{
		Kind: "Conversation",
		AnalysisInput: cluAnalysisInput{ConversationItem: cluItem{
			ID: id, ParticipantID: "0", Language: language, Text: utterance,
		}},
		Parameters: cluParameters{ProjectName: c.project, DeploymentName: c.deployment},
	}
	u := fmt.Sprintf("%s/language/:analyze-conversations?api-version=%s", c.svc.endpoint, url.QueryEscape(c.apiVersion))

	logging.ClassifierDebug("calling %s:%s runtime", c.project, c.deployment)
	var resp CLUResponse
	if err := c.svc.postJSON(ctx, u, body, &resp); err != nil {
		return types.IntentResult{}, fmt.Errorf("CLU runtime call failed: %w", err)
	}
	return ParseCLU(resp, c.threshold)
}

// ParseCLU normalises a runtime response. Results below threshold or with
// the None intent are flagged and still returned.
func ParseCLU(resp CLUResponse, threshold float64) (types.IntentResult, error) {
	pred := resp.Result.Prediction
	if len(pred.Intents) == 0 {
		return types.IntentResult{}, fmt.Errorf("CLU response has no intents")
	}

	res := types.IntentResult{
		Intent:     pred.TopIntent,
		Confidence: pred.Intents[0].ConfidenceScore,
		Entities:   pred.Entities,
	}
	if res.Entities == nil {
		res.Entities = []types.Entity{}
	}
	for _, in := range pred.Intents {
		name := in.Category
		if name == "" {
			name = in.Name
		}
		res.Intents = append(res.Intents, types.ScoredIntent{Category: name, ConfidenceScore: in.ConfidenceScore})
	}
	if res.Intent == "" {
		res.Intent = res.Intents[0].Category
	}

	if res.Confidence < threshold {
		logging.ClassifierWarn("CLU confidence threshold not met (%.2f < %.2f)", res.Confidence, threshold)
		res.Flag = types.FlagLowConfidence
	}
	if res.Intent == "None" {
		logging.ClassifierWarn("no intent recognized")
		res.Flag = types.FlagNoIntent
	}
	return res, nil
}
