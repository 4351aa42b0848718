package participants

import (
	"context"
	"strings"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

const askHazard = "Which hazard or substance are you asking about? " +
	"For example: silica, noise, heat stress, lead, benzene or formaldehyde."

// hazardKeywords maps words found in a question to a hazard and the
// category used for prevention practices.
var hazardKeywords = []struct {
	word, hazard, category string
}{
	{"silica", "silica", "chemical"},
	{"noise", "noise", "noise"},
	{"hearing", "noise", "noise"},
	{"heat", "heat stress", ""},
	{"lead", "lead", "chemical"},
	{"benzene", "benzene", "chemical"},
	{"formaldehyde", "formaldehyde", "chemical"},
	{"lifting", "", "ergonomic"},
	{"ergonomic", "", "ergonomic"},
	{"infection", "", "biological"},
	{"bloodborne", "", "biological"},
}

type sciences struct {
	plugin *plugins.Sciences
}

// NewSciences creates the responder for research guidance, exposure limits
// and prevention practices.
func NewSciences(plugin *plugins.Sciences, opts ...ResponderOption) *Responder {
	return newResponder(types.Sciences, sciences{plugin: plugin}, sciencesPrompt, opts)
}

func (s sciences) compose(ctx context.Context, req request) answer {
	hazard, category := s.hazard(req)
	if hazard == "" && category == "" {
		return clarify(askHazard)
	}

	var parts []string
	if hazard != "" {
		parts = append(parts, s.plugin.GetNIOSHGuidance(ctx, hazard))
		if req.Intent == "ExposureLimits" || req.mentions("limit", "pel ", "tlv") {
			parts = append(parts, s.plugin.CompareLimits(hazard))
		}
	}
	if req.Intent == "BestPractices" || req.mentions("prevent", "control", "practice", "reduce") {
		parts = append(parts, s.plugin.PreventionPractices(category))
	}
	if len(parts) == 0 {
		parts = append(parts, s.plugin.PreventionPractices(category))
	}
	return answer{Text: sections(parts...)}
}

// hazard resolves the hazard from entities first and the question second.
func (s sciences) hazard(req request) (string, string) {
	hazard, _ := req.entity("Hazard", "Chemical")
	category, _ := req.entity("HazardType")
	text := strings.ToLower(hazard + " " + req.Question)
	for _, k := range hazardKeywords {
		if !strings.Contains(text, k.word) {
			continue
		}
		if hazard == "" {
			hazard = k.hazard
		}
		if category == "" {
			category = k.category
		}
		break
	}
	return hazard, category
}
