package participants

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// dispatched builds an exchange that has reached a responder.
func dispatched(t *testing.T, question, intent string, ents ...types.Entity) types.Log {
	t.Helper()
	if ents == nil {
		ents = []types.Entity{}
	}
	log := withTurn(t, translated(t, question, "en"), types.Router, types.IntentResult{Intent: intent, Entities: ents})
	return withTurn(t, log, types.Dispatcher, types.DispatchPayload{
		TargetAgent: "whoever",
		Intent:      intent,
		Entities:    ents,
	})
}

func ent(category, text string) types.Entity {
	return types.Entity{Category: category, Text: text}
}

func respond(t *testing.T, r *Responder, log types.Log) types.ResponderPayload {
	t.Helper()
	p, err := r.Respond(context.Background(), log)
	require.NoError(t, err)
	return decode(t, r.Kind(), p).(types.ResponderPayload)
}

func offlineResponders(opts ...ResponderOption) map[types.Participant]*Responder {
	set := plugins.Offline()
	opts = append([]ResponderOption{WithClock(clock)}, opts...)
	return map[types.Participant]*Responder{
		types.Governance: NewGovernance(set.Regulatory, set.Recordability, opts...),
		types.Sciences:   NewSciences(set.Sciences, opts...),
		types.Analytics:  NewAnalytics(set.Analytics, opts...),
		types.Experience: NewExperience(set.Incidents, set.Documents, opts...),
	}
}

func assertClarifies(t *testing.T, got types.ResponderPayload) {
	t.Helper()
	assert.True(t, bool(got.NeedMoreInfo), "need_more_info")
	assert.False(t, bool(got.Terminated), "terminated")
}

func assertAnswers(t *testing.T, got types.ResponderPayload) {
	t.Helper()
	assert.False(t, bool(got.NeedMoreInfo), "need_more_info")
	assert.True(t, bool(got.Terminated), "terminated")
	assert.NotEmpty(t, got.Response)
}

// =============================================================================
// GOVERNANCE
// =============================================================================

func TestGovernance_RecordabilityNeedsDetails(t *testing.T) {
	r := offlineResponders()[types.Governance]
	got := respond(t, r, dispatched(t, "Is this recordable?", "RecordabilityQuestion"))
	assertClarifies(t, got)
	assert.Equal(t, askRecordability, got.Response)
	assert.Empty(t, got.Citations)
}

func TestGovernance_RecordabilityEvaluates(t *testing.T) {
	r := offlineResponders()[types.Governance]
	got := respond(t, r, dispatched(t, "A worker got a laceration and sutures. Recordable?", "RecordabilityQuestion",
		ent("InjuryType", "laceration"), ent("TreatmentType", "sutures")))

	assertAnswers(t, got)
	assert.Contains(t, got.Response, "RECORDABILITY EVALUATION")
	assert.Contains(t, got.Response, "This case MEETS the recording criteria.")
	assert.Contains(t, got.Response, "'sutures' is MEDICAL TREATMENT beyond first aid.")
	assert.Contains(t, got.Citations, "29 CFR 1904.5(a)")
	assert.Contains(t, got.Citations, "29 CFR 1904.7(a)")
}

func TestGovernance_FirstAid(t *testing.T) {
	r := offlineResponders()[types.Governance]

	got := respond(t, r, dispatched(t, "Is a butterfly closure first aid?", "FirstAidVsMedical",
		ent("TreatmentType", "butterfly closure")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "IS on the first aid list")
	assert.Contains(t, got.Response, "29 CFR 1904.7(a): First aid list")

	got = respond(t, r, dispatched(t, "Is it first aid?", "FirstAidVsMedical"))
	assertClarifies(t, got)
}

func TestGovernance_DaysAway(t *testing.T) {
	r := offlineResponders()[types.Governance]

	got := respond(t, r, dispatched(t, "How many days away?", "DaysAwayCalculation",
		ent("InjuryDate", "2024-03-01"), ent("ReturnDate", "2024-03-11")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Days counted: 9")
	assert.Contains(t, got.Citations, "29 CFR 1904.7(b)(3)")

	got = respond(t, r, dispatched(t, "How many days away?", "DaysAwayCalculation", ent("InjuryDate", "2024-03-01")))
	assertClarifies(t, got)
	assert.Contains(t, got.Response, "2024-03-01")

	got = respond(t, r, dispatched(t, "How do I count days away?", "DaysAwayCalculation"))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Cap at 180 days")
}

func TestGovernance_DefinitionAndForms(t *testing.T) {
	r := offlineResponders()[types.Governance]

	got := respond(t, r, dispatched(t, "Define it", "DefinitionLookup"))
	assertClarifies(t, got)
	assert.Equal(t, askDefinition, got.Response)

	got = respond(t, r, dispatched(t, "What is medical treatment?", "DefinitionLookup", ent("Term", "medical treatment")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "medical treatment beyond first aid triggers recording")

	got = respond(t, r, dispatched(t, "I need a form", "FormGeneration"))
	assertClarifies(t, got)

	got = respond(t, r, dispatched(t, "What is Form 300A?", "FormGeneration", ent("FormType", "Form 300A")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "annual Summary")
	assert.Contains(t, got.Citations, "29 CFR 1904.32")
}

func TestGovernance_CatchAllSearches(t *testing.T) {
	r := offlineResponders()[types.Governance]
	got := respond(t, r, dispatched(t, "What makes an injury work-related?", ""))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Per 29 CFR 1904.5")
}

// =============================================================================
// SCIENCES
// =============================================================================

func TestSciences(t *testing.T) {
	r := offlineResponders()[types.Sciences]

	got := respond(t, r, dispatched(t, "What should we do?", "BestPractices"))
	assertClarifies(t, got)
	assert.Equal(t, askHazard, got.Response)

	got = respond(t, r, dispatched(t, "Benzene limits?", "ExposureLimits", ent("Chemical", "benzene")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Regulatory vs Recommended Limits for benzene")
	assert.Contains(t, got.Response, "0.1 ppm TWA")

	got = respond(t, r, dispatched(t, "How do we prevent noise exposure?", "BestPractices"))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "NIOSH Guidance for noise")
	assert.Contains(t, got.Response, "Best Practices for noise Hazards")

	got = respond(t, r, dispatched(t, "Tips for lifting boxes", ""))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Best Practices for ergonomic Hazards")
}

// =============================================================================
// ANALYTICS
// =============================================================================

func TestAnalytics(t *testing.T) {
	r := offlineResponders()[types.Analytics]

	got := respond(t, r, dispatched(t, "How risky is my industry?", "IndustryRiskProfile"))
	assertClarifies(t, got)
	assert.Equal(t, askIndustry, got.Response)

	got = respond(t, r, dispatched(t, "Compare us to plumbing contractors", "IndustryRiskProfile",
		ent("NAICSCode", "238220"), ent("TCIR", "3.5"), ent("DART", "1.2")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Industry Injury Rates (BLS Data)")
	assert.Contains(t, got.Response, "Plumbing, Heating, and Air-Conditioning Contractors")
	assert.Contains(t, got.Response, "Status: ABOVE benchmark")
	assert.Contains(t, got.Response, "Status: BELOW benchmark")

	got = respond(t, r, dispatched(t, "What is our rate?", "IndustryRiskProfile",
		ent("CaseCount", "3"), ent("HoursWorked", "200,000")))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "TCIR (Total Case Incident Rate): 3.00")

	got = respond(t, r, dispatched(t, "Rates for NAICS 622 please", "IndustryRiskProfile"))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "Hospitals")
}

// =============================================================================
// EXPERIENCE
// =============================================================================

func TestExperience_CreateIncident(t *testing.T) {
	r := offlineResponders()[types.Experience]

	got := respond(t, r, dispatched(t, "Log an incident for Jane", "IncidentManagement", ent("EmployeeName", "Jane Doe")))
	assertClarifies(t, got)
	assert.Contains(t, got.Response, "the incident date")
	assert.NotContains(t, got.Response, "the employee's name")
	assert.Empty(t, got.IncidentID)

	got = respond(t, r, dispatched(t, "Log an incident", "IncidentManagement",
		ent("EmployeeName", "Jane Doe"), ent("IncidentDate", "2025-03-10"),
		ent("InjuryType", "laceration"), ent("BodyPart", "left hand")))
	assertAnswers(t, got)
	assert.Regexp(t, regexp.MustCompile(`^INC-[0-9a-f]{8}$`), got.IncidentID)
	assert.Equal(t, ActionIncidentCreated, got.ActionTaken)
	assert.Contains(t, got.Response, "[SIMULATION] Incident Created")
	assert.Contains(t, got.Response, got.IncidentID)
}

func TestExperience_UpdateIncident(t *testing.T) {
	r := offlineResponders()[types.Experience]
	got := respond(t, r, dispatched(t, "Add days away to INC-42", "IncidentManagement",
		ent("IncidentID", "INC-42"), ent("DaysAway", "200")))
	assertAnswers(t, got)
	assert.Equal(t, ActionIncidentUpdated, got.ActionTaken)
	assert.Equal(t, "INC-42", got.IncidentID)
	assert.Contains(t, got.Response, "[SIMULATION] Incident INC-42 would be updated")
}

func TestExperience_Privacy(t *testing.T) {
	r := offlineResponders()[types.Experience]
	got := respond(t, r, dispatched(t, "Is a needlestick a privacy case?", "PrivacyCase"))
	assertAnswers(t, got)
	assert.Contains(t, got.Response, "PRIVACY CONCERN CASE IDENTIFIED")
	assert.Contains(t, got.Response, "Needlestick")
}

func TestExperience_Forms(t *testing.T) {
	r := offlineResponders()[types.Experience]

	got := respond(t, r, dispatched(t, "Generate the summary", "", ent("FormType", "300A"), ent("Establishment", "Plant 7")))
	assertAnswers(t, got)
	assert.Equal(t, ActionFormGenerated, got.ActionTaken)
	assert.Contains(t, got.Response, "Year: 2024")
	assert.Contains(t, got.Response, "Establishment: Plant 7")
	assert.Contains(t, got.Response, "CURRENTLY IN POSTING PERIOD")

	got = respond(t, r, dispatched(t, "Generate form 301", "", ent("FormType", "301")))
	assertClarifies(t, got)
	assert.Equal(t, askIncidentForForm, got.Response)

	got = respond(t, r, dispatched(t, "Generate form 301", "", ent("FormType", "301"), ent("IncidentID", "INC-7")))
	assertAnswers(t, got)
	assert.Equal(t, "INC-7", got.IncidentID)

	got = respond(t, r, dispatched(t, "Help", ""))
	assertClarifies(t, got)
	assert.Equal(t, askExperience, got.Response)
}

// =============================================================================
// REWRITE AND FAILURES
// =============================================================================

func TestResponder_RewritesWithLLM(t *testing.T) {
	llm := &fakeLLM{reply: `{"response": "First aid is not recordable on its own.", "citations": ["29 CFR 1904.7"]}`}
	r := offlineResponders(WithRewriter(llm))[types.Governance]

	got := respond(t, r, dispatched(t, "Define first aid", "DefinitionLookup", ent("Term", "first aid")))
	assertAnswers(t, got)
	assert.Equal(t, "First aid is not recordable on its own.", got.Response)
	assert.Equal(t, []string{"29 CFR 1904.7(a)", "29 CFR 1904.7"}, got.Citations)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Per 29 CFR 1904.7(a), first aid treatments are NOT recordable.")
}

func TestResponder_RewriteFailureKeepsComposedText(t *testing.T) {
	for _, llm := range []*fakeLLM{
		{err: errors.New("rate limited")},
		{reply: "I cannot help with that."},
		{reply: `{"response": "  "}`},
	} {
		r := offlineResponders(WithRewriter(llm))[types.Governance]
		got := respond(t, r, dispatched(t, "Define first aid", "DefinitionLookup", ent("Term", "first aid")))
		assertAnswers(t, got)
		assert.Contains(t, got.Response, "Per 29 CFR 1904.7(a)")
	}
}

func TestResponder_ClarificationSkipsRewrite(t *testing.T) {
	llm := &fakeLLM{reply: `{"response": "rewritten"}`}
	r := offlineResponders(WithRewriter(llm))[types.Governance]
	got := respond(t, r, dispatched(t, "Is this recordable?", "RecordabilityQuestion"))
	assertClarifies(t, got)
	assert.Empty(t, llm.prompts)
}

func TestResponder_Errors(t *testing.T) {
	r := offlineResponders()[types.Governance]

	_, err := r.Respond(context.Background(), translated(t, "q", "en"))
	assert.Error(t, err, "no dispatch turn")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Respond(ctx, dispatched(t, "What is first aid?", ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCitationsIn(t *testing.T) {
	got := citationsIn("Per 29 CFR 1904.7(b)(3), count days. See 29 CFR 1904.29 and 29 CFR 1904.")
	assert.Equal(t, []string{"29 CFR 1904.7(b)(3)", "29 CFR 1904.29", "29 CFR 1904"}, got)
	assert.Equal(t, []string{"a", "b"}, mergeCitations([]string{"a", ""}, []string{"b", "a"}))
}
