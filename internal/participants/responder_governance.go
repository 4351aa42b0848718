package participants

import (
	"context"
	"fmt"
	"strings"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

const (
	askRecordability = "To evaluate recordability criteria, I need more information about the incident. " +
		"What type of injury or illness occurred, and what treatment was provided?"
	askTreatment = "Which treatment was provided? For example: bandage, butterfly closure, " +
		"sutures, prescription medication or physical therapy."
	askDefinition = "Which recordkeeping term should I define? For example: first aid, " +
		"medical treatment, days away, restricted work or privacy case."
	askForm = "Which OSHA form do you need? Form 300 (Log of Work-Related Injuries and Illnesses), " +
		"Form 300A (Summary of Work-Related Injuries and Illnesses) or " +
		"Form 301 (Injury and Illness Incident Report)."
)

var formGuide = map[string]string{
	"300": "Form 300 is the Log of Work-Related Injuries and Illnesses. Per 29 CFR 1904.29, " +
		"enter each recordable case within 7 calendar days of learning of it. " +
		"Enter 'Privacy Case' instead of the name for privacy concern cases.",
	"300a": "Form 300A is the annual Summary of Work-Related Injuries and Illnesses. " +
		"Per 29 CFR 1904.32, a company executive certifies it and it is posted " +
		"from February 1 to April 30 of the following year.",
	"301": "Form 301 is the Injury and Illness Incident Report. Per 29 CFR 1904.29, " +
		"complete it within 7 calendar days for each recordable case. " +
		"An equivalent workers' compensation or insurance form is acceptable.",
}

type governance struct {
	regulatory    *plugins.Regulatory
	recordability *plugins.Recordability
}

// NewGovernance creates the responder for regulations, recordability
// criteria and definitions.
func NewGovernance(regulatory *plugins.Regulatory, recordability *plugins.Recordability, opts ...ResponderOption) *Responder {
	return newResponder(types.Governance, governance{regulatory: regulatory, recordability: recordability}, governancePrompt, opts)
}

func (g governance) compose(ctx context.Context, req request) answer {
	switch req.Intent {
	case "RecordabilityQuestion":
		return g.recordable(ctx, req)
	case "FirstAidVsMedical":
		return g.firstAid(ctx, req)
	case "DaysAwayCalculation":
		return g.daysAway(ctx, req)
	case "DefinitionLookup":
		return g.definition(ctx, req)
	case "FormGeneration":
		return g.form(ctx, req)
	default:
		return answer{Text: g.regulatory.SearchECFR(ctx, req.Question)}
	}
}

func (g governance) recordable(ctx context.Context, req request) answer {
	injury, hasInjury := req.entity("InjuryType", "Injury")
	treatment, hasTreatment := req.entity("TreatmentType", "Treatment")
	if !hasInjury && !hasTreatment {
		return clarify(askRecordability)
	}

	c := plugins.Case{
		InjuryDescription: firstNonEmpty(injury, req.Question),
		TreatmentProvided: treatment,
		WorkRelated:       true,
		RestrictedWork:    req.mentions("restricted", "light duty", "job transfer"),
	}
	if days, ok := req.integer("DaysAway"); ok {
		c.DaysAway = &days
	}

	parts := []string{
		g.recordability.Evaluate(ctx, c),
		"Work-relatedness is presumed for events in the work environment per 29 CFR 1904.5(a). " +
			"Review the exceptions in 29 CFR 1904.5(b)(2) if any apply.",
	}
	if hasTreatment {
		parts = append(parts, g.recordability.CheckFirstAid(treatment))
	}
	return answer{Text: sections(parts...)}
}

func (g governance) firstAid(ctx context.Context, req request) answer {
	treatment, ok := req.entity("TreatmentType", "Treatment")
	if !ok {
		return clarify(askTreatment)
	}
	return answer{Text: sections(
		g.recordability.CheckFirstAid(treatment),
		g.regulatory.GetCFRSection(ctx, "1904.7(a)"),
	)}
}

func (g governance) daysAway(ctx context.Context, req request) answer {
	injury, hasInjury := req.entity("InjuryDate")
	returned, hasReturn := req.entity("ReturnDate")
	switch {
	case hasInjury && hasReturn:
		return answer{Text: g.recordability.CalculateDaysAway(injury, returned, true)}
	case hasInjury:
		return clarify(fmt.Sprintf("On what date did the employee return to work (or is expected to)? "+
			"The injury date I have is %s. Use YYYY-MM-DD.", injury))
	case hasReturn:
		return clarify(fmt.Sprintf("On what date did the injury occur? "+
			"The return date I have is %s. Use YYYY-MM-DD.", returned))
	default:
		return answer{Text: sections(
			g.regulatory.SearchECFR(ctx, "days away"),
			"To count days for a specific case, give the injury date and the return-to-work date.",
		)}
	}
}

func (g governance) definition(ctx context.Context, req request) answer {
	term, ok := req.entity("Term", "Definition")
	if !ok {
		return clarify(askDefinition)
	}
	return answer{Text: g.regulatory.SearchECFR(ctx, term)}
}

func (g governance) form(ctx context.Context, req request) answer {
	form, ok := req.entity("FormType")
	if !ok {
		return clarify(askForm)
	}
	key := strings.ToLower(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(form)), "FORM "))
	guide, known := formGuide[key]
	if !known {
		return clarify(askForm)
	}
	return answer{Text: sections(guide, g.regulatory.GetCFRSection(ctx, "1904.29"))}
}
