package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Incidents manages case records in the Zone 2 incidents service. Every
// request carries the bearer token.
type Incidents struct {
	zone zone
}

// NewIncidents creates the incident management plugin.
func NewIncidents(baseURL, token string, timeout time.Duration) *Incidents {
	return &Incidents{zone: newZone("incidents", baseURL, token, timeout)}
}

// NewIncident is the payload for Create.
type NewIncident struct {
	EmployeeName      string `json:"employee_name"`
	IncidentDate      string `json:"incident_date"`
	InjuryDescription string `json:"injury_description"`
	BodyPart          string `json:"body_part"`
	IncidentLocation  string `json:"incident_location"`
	IsPrivacyCase     bool   `json:"is_privacy_case"`
	Status            string `json:"status"`
}

// IncidentUpdate carries the optional fields of an update. Day counts are
// capped at MaxDaysAway before sending.
type IncidentUpdate struct {
	DaysAway       *int
	DaysRestricted *int
	DaysTransfer   *int
	CaseClosed     bool
	Notes          string
}

// Create records a new incident and returns its id with a summary. When the
// service is unreachable a simulated INC-xxxxxxxx record is returned. The id
// is empty when the service rejected the request.
func (p *Incidents) Create(ctx context.Context, in NewIncident) (string, string) {
	in.Status = "open"
	var resp struct {
		IncidentID string `json:"incident_id"`
	}
	err := p.zone.post(ctx, "/incidents", in, &resp)
	if errors.Is(err, ErrUnavailable) {
		id := simulatedID()
		return id, simulateCreate(id, in)
	}
	if err != nil {
		return "", fmt.Sprintf("Error creating incident: %v", err)
	}

	privacyNote := ""
	if in.IsPrivacyCase {
		privacyNote = "\n\n⚠️ PRIVACY CASE: Per 29 CFR 1904.29, this case will be recorded as " +
			"'Privacy Case' on Form 300 instead of the employee's name."
	}
	return resp.IncidentID, "✅ Incident Created Successfully\n" + rule + "\n" +
		fmt.Sprintf("Incident ID: %s\n", resp.IncidentID) +
		incidentBody(in) + privacyNote
}

// simulatedID returns an identifier for a record that was not persisted.
func simulatedID() string {
	return "INC-" + uuid.NewString()[:8]
}

func simulateCreate(id string, in NewIncident) string {
	privacyNote := ""
	if in.IsPrivacyCase {
		privacyNote = "\n\n⚠️ PRIVACY CASE flagged per 29 CFR 1904.29"
	}
	return "[SIMULATION] Incident Created\n" + rule + "\n" +
		fmt.Sprintf("Incident ID: %s\n", id) +
		incidentBody(in) + privacyNote +
		"\n\nNote: Zone 2 API unavailable. This is a simulated response."
}

func incidentBody(in NewIncident) string {
	return fmt.Sprintf("Employee: %s\n", in.EmployeeName) +
		fmt.Sprintf("Date: %s\n", in.IncidentDate) +
		fmt.Sprintf("Description: %s\n", in.InjuryDescription) +
		fmt.Sprintf("Body Part: %s\n", in.BodyPart) +
		fmt.Sprintf("Location: %s\n", in.IncidentLocation) +
		"Status: Open"
}

func capDays(d *int) *int {
	if d == nil {
		return nil
	}
	v := *d
	if v > MaxDaysAway {
		v = MaxDaysAway
	}
	return &v
}

// Update patches an existing incident.
func (p *Incidents) Update(ctx context.Context, id string, u IncidentUpdate) string {
	body := map[string]interface{}{"incident_id": id}
	if d := capDays(u.DaysAway); d != nil {
		body["days_away"] = *d
	}
	if d := capDays(u.DaysRestricted); d != nil {
		body["days_restricted"] = *d
	}
	if d := capDays(u.DaysTransfer); d != nil {
		body["days_transfer"] = *d
	}
	if u.CaseClosed {
		body["status"] = "closed"
	}
	if u.Notes != "" {
		body["notes"] = u.Notes
	}

	status := "Open"
	if u.CaseClosed {
		status = "Closed"
	}

	err := p.zone.patch(ctx, "/incidents/"+url.PathEscape(id), body, nil)
	if errors.Is(err, ErrUnavailable) {
		return fmt.Sprintf("[SIMULATION] Incident %s would be updated:\n", id) +
			fmt.Sprintf("- Days Away: %s\n", optionalDays(u.DaysAway, "None")) +
			fmt.Sprintf("- Days Restricted: %s\n", optionalDays(u.DaysRestricted, "None")) +
			fmt.Sprintf("- Status: %s", status)
	}
	if err != nil {
		return fmt.Sprintf("Error updating incident: %v", err)
	}
	return "✅ Incident Updated Successfully\n" + rule + "\n" +
		fmt.Sprintf("Incident ID: %s\n", id) +
		fmt.Sprintf("Days Away: %s\n", optionalDays(u.DaysAway, "N/A")) +
		fmt.Sprintf("Days Restricted: %s\n", optionalDays(u.DaysRestricted, "N/A")) +
		fmt.Sprintf("Days Transfer: %s\n", optionalDays(u.DaysTransfer, "N/A")) +
		fmt.Sprintf("Status: %s\n", status) +
		fmt.Sprintf("Notes: %s", orDefault(u.Notes, "None"))
}

func optionalDays(d *int, fallback string) string {
	if d == nil || *d == 0 {
		return fallback
	}
	return fmt.Sprint(*d)
}

// Get fetches one incident.
func (p *Incidents) Get(ctx context.Context, id string) string {
	var rec map[string]interface{}
	if err := p.zone.get(ctx, "/incidents/"+url.PathEscape(id), nil, &rec); err != nil {
		return fmt.Sprintf("Error retrieving incident %s: %v", id, err)
	}
	field := func(k, fallback string) string { return valueOr(rec[k], fallback) }
	return "Incident Details\n" + rule + "\n" +
		fmt.Sprintf("ID: %s\n", field("incident_id", "")) +
		fmt.Sprintf("Employee: %s\n", field("employee_name", "")) +
		fmt.Sprintf("Date: %s\n", field("incident_date", "")) +
		fmt.Sprintf("Description: %s\n", field("injury_description", "")) +
		fmt.Sprintf("Body Part: %s\n", field("body_part", "")) +
		fmt.Sprintf("Location: %s\n", field("incident_location", "")) +
		fmt.Sprintf("Days Away: %s\n", field("days_away", "0")) +
		fmt.Sprintf("Days Restricted: %s\n", field("days_restricted", "0")) +
		fmt.Sprintf("Privacy Case: %s\n", field("is_privacy_case", "false")) +
		fmt.Sprintf("Status: %s", field("status", ""))
}

// privacyCategories are the 29 CFR 1904.29(b)(7) privacy concern triggers.
var privacyCategories = []struct {
	name     string
	keywords []string
}{
	{"Intimate Body Part", []string{"groin", "genitals", "genital", "breast", "buttock", "reproductive", "sexual organ"}},
	{"Sexual Assault", []string{"sexual assault", "rape", "harassment", "inappropriate touching"}},
	{"Mental Illness", []string{"mental illness", "psychiatric", "depression", "anxiety disorder", "ptsd", "psychological"}},
	{"HIV Hepatitis TB", []string{"hiv", "hepatitis", "tuberculosis", "tb", "aids"}},
	{"Needlestick", []string{"needlestick", "sharps", "bloodborne", "blood exposure"}},
}

// PrivacyMatches returns the privacy categories the case text triggers.
func PrivacyMatches(text string) []string {
	t := strings.ToLower(text)
	var matches []string
	for _, c := range privacyCategories {
		for _, kw := range c.keywords {
			if strings.Contains(t, kw) {
				matches = append(matches, c.name)
				break
			}
		}
	}
	return matches
}

// CheckPrivacy decides whether the case is a privacy concern case.
func (p *Incidents) CheckPrivacy(injuryType, bodyPart, circumstances string) string {
	matches := PrivacyMatches(injuryType + " " + bodyPart + " " + circumstances)
	if len(matches) == 0 {
		return "✅ NOT A PRIVACY CONCERN CASE\n" + rule + "\n" +
			"Based on the information provided, this case does not meet the " +
			"privacy concern criteria under 29 CFR 1904.29(b)(7).\n\n" +
			"The employee's name should be recorded on Form 300.\n\n" +
			"Note: The employee may still request their name be withheld " +
			"(voluntary privacy request)."
	}
	return "⚠️ PRIVACY CONCERN CASE IDENTIFIED\n" + rule + "\n" +
		"Per 29 CFR 1904.29(b)(7), this case qualifies as a privacy concern.\n\n" +
		fmt.Sprintf("Matching criteria: %s\n\n", strings.Join(matches, ", ")) +
		"Required actions:\n" +
		"• Enter 'Privacy Case' in Column B of Form 300 (instead of name)\n" +
		"• Keep a separate, confidential list linking case numbers to names\n" +
		"• Employee may request name be withheld from Form 300\n\n" +
		"Privacy concern cases include:\n" +
		"1. Injury to intimate body part or reproductive system\n" +
		"2. Sexual assault\n" +
		"3. Mental illness\n" +
		"4. HIV, hepatitis, or tuberculosis\n" +
		"5. Needlestick or sharps injury with blood/OPIM exposure\n" +
		"6. Any case where employee requests privacy"
}
