package participants

import (
	"context"
	"regexp"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

const askIndustry = "Which industry should I look at? Give a NAICS code (for example 238220) " +
	"or describe the industry. To calculate your own rates, give the number of recordable " +
	"cases and the total hours worked."

var naicsPattern = regexp.MustCompile(`\b\d{3,6}\b`)

type analytics struct {
	plugin *plugins.Analytics
}

// NewAnalytics creates the responder for industry rates and benchmarks.
func NewAnalytics(plugin *plugins.Analytics, opts ...ResponderOption) *Responder {
	return newResponder(types.Analytics, analytics{plugin: plugin}, analyticsPrompt, opts)
}

func (a analytics) compose(ctx context.Context, req request) answer {
	naics, hasNAICS := req.entity("NAICSCode")
	if !hasNAICS {
		naics = naicsPattern.FindString(req.Question)
		hasNAICS = naics != ""
	}
	industry, hasIndustry := req.entity("Industry")
	cases, hasCases := req.integer("CaseCount")
	hours, hasHours := req.integer("HoursWorked")

	var parts []string
	if hasCases && hasHours {
		var dart *int
		if d, ok := req.integer("DARTCases"); ok {
			dart = &d
		}
		parts = append(parts, a.plugin.CalculateIncidenceRate(cases, int64(hours), dart))
	}
	if hasNAICS {
		parts = append(parts, a.plugin.IndustryRates(ctx, naics, 0), a.plugin.LookupNAICS(ctx, naics))
		tcir, hasTCIR := req.number("TCIR")
		dart, hasDART := req.number("DART")
		if hasCases && hasHours && !hasTCIR {
			tcir, hasTCIR = plugins.IncidenceRate(cases, int64(hours)), true
		}
		if hasTCIR && hasDART {
			parts = append(parts, a.plugin.CompareToBenchmark(tcir, dart, naics))
		}
	} else if hasIndustry {
		parts = append(parts, a.plugin.LookupNAICS(ctx, industry))
	}

	if len(parts) == 0 {
		return clarify(askIndustry)
	}
	return answer{Text: sections(parts...)}
}
