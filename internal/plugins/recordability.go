package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Recordability applies the Q0-Q4 recordkeeping decision framework.
type Recordability struct {
	zone zone
}

// NewRecordability creates the recordability plugin backed by the
// recordability engine at baseURL.
func NewRecordability(baseURL string, timeout time.Duration) *Recordability {
	return &Recordability{zone: newZone("recordability", baseURL, "", timeout)}
}

// Case is the input to a recordability evaluation.
type Case struct {
	InjuryDescription string `json:"injury_description"`
	TreatmentProvided string `json:"treatment_provided"`
	WorkRelated       bool   `json:"work_related"`
	DaysAway          *int   `json:"days_away"`
	RestrictedWork    bool   `json:"restricted_work"`
}

// Criterion is one step of the Q0-Q4 framework.
type Criterion struct {
	Met    bool   `json:"met"`
	Reason string `json:"reason"`
}

var questionOrder = []string{"Q0", "Q1", "Q2", "Q3", "Q4"}

// Evaluate runs the case through the engine, or locally when the engine is
// unreachable.
func (r *Recordability) Evaluate(ctx context.Context, c Case) string {
	var result map[string]interface{}
	if err := r.zone.post(ctx, "/evaluate", c, &result); err != nil {
		return r.localEvaluate(c)
	}
	return formatEvaluation(result)
}

func formatEvaluation(result map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString("RECORDABILITY EVALUATION (Q0-Q4 Framework)\n" + rule + "\n\n")
	for _, q := range questionOrder {
		data, ok := result[q].(map[string]interface{})
		if !ok {
			continue
		}
		met, _ := data["met"].(bool)
		reason, _ := data["reason"].(string)
		writeCriterion(&sb, q, Criterion{Met: met, Reason: reason})
	}
	assessment, _ := result["assessment"].(string)
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "ASSESSMENT: %s\n", orDefault(assessment, "See details above"))
	return sb.String()
}

func writeCriterion(sb *strings.Builder, q string, c Criterion) {
	status := "✗ NOT MET"
	if c.Met {
		status = "✓ MET"
	}
	fmt.Fprintf(sb, "%s: %s\n    %s\n\n", q, status, c.Reason)
}

func (r *Recordability) localEvaluate(c Case) string {
	results := map[string]Criterion{
		"Q0": {Met: true, Reason: "Injury/illness described: " + c.InjuryDescription},
		"Q1": {Met: c.WorkRelated, Reason: "Not work-related"},
		"Q2": {Met: true, Reason: "Assumed new case (no prior history provided)"},
		"Q4": {Met: false, Reason: "No exemptions identified"},
	}
	if c.WorkRelated {
		results["Q1"] = Criterion{Met: true, Reason: "Work-related"}
	}

	var criteria []string
	if classifyTreatment(c.TreatmentProvided) == treatmentMedical {
		criteria = append(criteria, "Medical treatment beyond first aid")
	}
	if c.DaysAway != nil && *c.DaysAway > 0 {
		criteria = append(criteria, fmt.Sprintf("Days away from work: %d", *c.DaysAway))
	}
	if c.RestrictedWork {
		criteria = append(criteria, "Restricted work or job transfer")
	}
	q3 := Criterion{Met: len(criteria) > 0, Reason: "No recording criteria met"}
	if q3.Met {
		q3.Reason = strings.Join(criteria, ", ")
	}
	results["Q3"] = q3

	var sb strings.Builder
	sb.WriteString("RECORDABILITY EVALUATION (Q0-Q4 Framework)\n" + rule + "\n\n")
	for _, q := range questionOrder {
		writeCriterion(&sb, q, results[q])
	}

	allMet := results["Q0"].Met && results["Q1"].Met && results["Q2"].Met && results["Q3"].Met
	sb.WriteString(rule + "\n")
	if allMet && !results["Q4"].Met {
		sb.WriteString("ASSESSMENT: This case MEETS the recording criteria.\n" +
			"Per 29 CFR 1904.7, cases meeting these criteria should be recorded.\n" +
			"Note: This is regulatory guidance, not a determination. " +
			"The employer makes the final recording decision.")
		return sb.String()
	}

	var missing []string
	for _, q := range questionOrder[:4] {
		if !results[q].Met {
			missing = append(missing, q)
		}
	}
	sb.WriteString("ASSESSMENT: Recording criteria NOT fully met.\n")
	fmt.Fprintf(&sb, "Missing: %s\n", strings.Join(missing, ", "))
	sb.WriteString("Review the case details to confirm.")
	return sb.String()
}

type treatmentClass int

const (
	treatmentUnknown treatmentClass = iota
	treatmentFirstAid
	treatmentMedical
)

var firstAidList = []string{
	"bandage", "band-aid", "butterfly closure", "steri-strip",
	"finger guard", "splint", "elastic bandage", "wrap",
	"non-prescription medication", "aspirin", "ibuprofen", "acetaminophen",
	"antibiotic ointment", "antiseptic", "eye wash", "eye flush",
	"tetanus shot", "tetanus immunization",
	"wound cleaning", "soaking", "irrigation",
	"hot pack", "cold pack", "ice", "heat therapy",
	"massage", "drinking fluids", "oxygen",
	"drilling fingernail", "toenail", "draining blister",
	"eye patch", "rigid stay", "finger splint",
}

var medicalTreatmentList = []string{
	"stitches", "sutures", "staples",
	"prescription medication", "prescription strength",
	"physical therapy", "chiropractic",
	"surgery", "surgical",
	"cast", "rigid immobilization",
	"root canal", "tooth extraction",
	"mri", "ct scan", "x-ray with finding",
}

// classifyTreatment checks the first aid list before the medical list, so
// "non-prescription medication" is first aid.
func classifyTreatment(treatment string) treatmentClass {
	t := strings.ToLower(treatment)
	for _, fa := range firstAidList {
		if strings.Contains(t, fa) {
			return treatmentFirstAid
		}
	}
	for _, mt := range medicalTreatmentList {
		if strings.Contains(t, mt) {
			return treatmentMedical
		}
	}
	return treatmentUnknown
}

// CheckFirstAid reports whether treatment is on the 29 CFR 1904.7(a) first
// aid list.
func (r *Recordability) CheckFirstAid(treatment string) string {
	switch classifyTreatment(treatment) {
	case treatmentFirstAid:
		return fmt.Sprintf("'%s' IS on the first aid list per 29 CFR 1904.7(a).\n"+
			"First aid treatments do NOT make a case recordable by themselves.\n"+
			"However, check other recording criteria (days away, restricted work, etc.).", treatment)
	case treatmentMedical:
		return fmt.Sprintf("'%s' is MEDICAL TREATMENT beyond first aid.\n"+
			"Per 29 CFR 1904.7(a), this treatment MEETS the recording criteria.\n"+
			"If the case is work-related and a new case, it should be recorded.", treatment)
	default:
		return fmt.Sprintf("'%s' is not definitively on either list.\n"+
			"Consider: Is this treatment beyond what a non-medical person could administer?\n"+
			"If administered by a physician AND goes beyond the first aid list, it's likely recordable.", treatment)
	}
}

// MaxDaysAway is the 29 CFR 1904.7(b)(3) cap on counted days.
const MaxDaysAway = 180

// CountDaysAway counts the days after the injury day up to the return day.
// Weekends are skipped when includeWeekends is false.
func CountDaysAway(injury, returned time.Time, includeWeekends bool) int {
	start := injury.AddDate(0, 0, 1)
	if includeWeekends {
		return int(returned.Sub(start).Hours() / 24)
	}
	days := 0
	for d := start; d.Before(returned); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// CalculateDaysAway counts days away between two YYYY-MM-DD dates.
func (r *Recordability) CalculateDaysAway(injuryDate, returnDate string, includeWeekends bool) string {
	injury, err := time.Parse("2006-01-02", injuryDate)
	if err != nil {
		return fmt.Sprintf("Error parsing dates: %v. Use YYYY-MM-DD format.", err)
	}
	returned, err := time.Parse("2006-01-02", returnDate)
	if err != nil {
		return fmt.Sprintf("Error parsing dates: %v. Use YYYY-MM-DD format.", err)
	}

	days := CountDaysAway(injury, returned, includeWeekends)
	var sb strings.Builder
	sb.WriteString("Days Away Calculation per 29 CFR 1904.7(b)(3):\n")
	fmt.Fprintf(&sb, "- Injury date: %s\n", injuryDate)
	fmt.Fprintf(&sb, "- Return date: %s\n", returnDate)
	fmt.Fprintf(&sb, "- Days counted: %d\n", days)
	if days > MaxDaysAway {
		fmt.Fprintf(&sb, "- Capped at: %d days (maximum per OSHA)\n", MaxDaysAway)
	}
	sb.WriteString("\nNote: Do not count the day of injury. " +
		"Count calendar days (including weekends/holidays) if employee " +
		"would not have been able to work those days.")
	return sb.String()
}
