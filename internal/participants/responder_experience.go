package participants

import (
	"context"
	"fmt"
	"strings"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// Actions reported in action_taken.
const (
	ActionIncidentCreated = "incident_created"
	ActionIncidentUpdated = "incident_updated"
	ActionFormGenerated   = "form_generated"
)

const (
	askExperience = "I can create or update an incident record, check whether a case is a " +
		"privacy concern case, or generate OSHA Forms 300, 300A and 301. What would you like to do?"
	askIncidentForForm = "Which incident should Form 301 be generated for? " +
		"Give the incident ID, for example INC-1a2b3c4d."
	askPrivacy = "To check for a privacy concern case: what was the injury or illness, " +
		"and which body part was affected?"
)

type experience struct {
	incidents *plugins.Incidents
	documents *plugins.Documents
}

// NewExperience creates the responder for incident records, privacy cases
// and OSHA forms.
func NewExperience(incidents *plugins.Incidents, documents *plugins.Documents, opts ...ResponderOption) *Responder {
	return newResponder(types.Experience, experience{incidents: incidents, documents: documents}, experiencePrompt, opts)
}

func (e experience) compose(ctx context.Context, req request) answer {
	id, hasID := req.entity("IncidentID")
	_, hasForm := req.entity("FormType")
	switch {
	case req.Intent == "PrivacyCase":
		return e.privacy(req)
	case req.Intent == "IncidentManagement" && hasID:
		return e.existing(ctx, req, id)
	case req.Intent == "IncidentManagement":
		return e.create(ctx, req)
	case hasForm:
		return e.form(ctx, req)
	case req.mentions("posting", "post the", "deadline"):
		return answer{Text: plugins.PostingRequirements(req.Now)}
	case hasID:
		return answer{Text: e.incidents.Get(ctx, id)}
	case len(plugins.PrivacyMatches(req.Question)) > 0:
		return e.privacy(req)
	default:
		return clarify(askExperience)
	}
}

func (e experience) privacy(req request) answer {
	injury, hasInjury := req.entity("InjuryType", "Injury")
	bodyPart, hasBody := req.entity("BodyPart")
	if !hasInjury && !hasBody && strings.TrimSpace(req.Question) == "" {
		return clarify(askPrivacy)
	}
	return answer{Text: e.incidents.CheckPrivacy(injury, bodyPart, req.Question)}
}

func (e experience) create(ctx context.Context, req request) answer {
	required := []struct {
		category, label string
	}{
		{"EmployeeName", "the employee's name"},
		{"IncidentDate", "the incident date (YYYY-MM-DD)"},
		{"InjuryType", "a description of the injury or illness"},
		{"BodyPart", "the body part affected"},
	}
	values := make(map[string]string, len(required))
	var missing []string
	for _, r := range required {
		v, ok := req.entity(r.category)
		if !ok {
			missing = append(missing, r.label)
			continue
		}
		values[r.category] = v
	}
	if len(missing) > 0 {
		return clarify("To create the incident record, can you give me the " + strings.Join(missing, ", ") + "?")
	}

	location, _ := req.entity("Location")
	privacy := len(plugins.PrivacyMatches(values["InjuryType"]+" "+values["BodyPart"]+" "+req.Question)) > 0
	id, text := e.incidents.Create(ctx, plugins.NewIncident{
		EmployeeName:      values["EmployeeName"],
		IncidentDate:      values["IncidentDate"],
		InjuryDescription: values["InjuryType"],
		BodyPart:          values["BodyPart"],
		IncidentLocation:  location,
		IsPrivacyCase:     privacy,
	})
	if id == "" {
		return answer{Text: text}
	}
	return answer{Text: text, IncidentID: id, Action: ActionIncidentCreated}
}

func (e experience) existing(ctx context.Context, req request, id string) answer {
	var u plugins.IncidentUpdate
	changed := false
	if d, ok := req.integer("DaysAway"); ok {
		u.DaysAway, changed = &d, true
	}
	if d, ok := req.integer("DaysRestricted"); ok {
		u.DaysRestricted, changed = &d, true
	}
	if d, ok := req.integer("DaysTransfer"); ok {
		u.DaysTransfer, changed = &d, true
	}
	if req.mentions("close") {
		u.CaseClosed, changed = true, true
	}
	if notes, ok := req.entity("Notes"); ok {
		u.Notes, changed = notes, true
	}
	if !changed {
		return answer{Text: e.incidents.Get(ctx, id), IncidentID: id}
	}
	return answer{
		Text:       e.incidents.Update(ctx, id, u),
		IncidentID: id,
		Action:     ActionIncidentUpdated,
	}
}

func (e experience) form(ctx context.Context, req request) answer {
	form, _ := req.entity("FormType")
	establishment, _ := req.entity("Establishment")
	establishment = firstNonEmpty(establishment, "Establishment")

	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(form)), "FORM ") {
	case "300":
		year, ok := req.integer("Year")
		if !ok {
			year = req.Now.Year()
		}
		return answer{
			Text:   e.documents.Form300(ctx, year, establishment, req.mentions("privacy")),
			Action: ActionFormGenerated,
		}
	case "300A":
		year, ok := req.integer("Year")
		if !ok {
			year = req.Now.Year() - 1
		}
		naics, _ := req.entity("NAICSCode")
		employees, _ := req.integer("EmployeeCount")
		hours, _ := req.integer("HoursWorked")
		return answer{
			Text: sections(
				e.documents.Form300A(ctx, plugins.Summary300A{
					Year:                   year,
					EstablishmentName:      establishment,
					NAICSCode:              naics,
					AnnualAverageEmployees: employees,
					TotalHoursWorked:       int64(hours),
				}),
				plugins.PostingRequirements(req.Now),
			),
			Action: ActionFormGenerated,
		}
	case "301":
		id, ok := req.entity("IncidentID")
		if !ok {
			return clarify(askIncidentForForm)
		}
		return answer{Text: e.documents.Form301(ctx, id), IncidentID: id, Action: ActionFormGenerated}
	default:
		return clarify(fmt.Sprintf("I don't recognise form %q. %s", form, askForm))
	}
}
