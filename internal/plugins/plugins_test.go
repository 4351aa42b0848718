package plugins

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedURL returns the address of a server that no longer listens.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestPlainText(t *testing.T) {
	got := plainText("<div><p>Record the case   if</p><script>track()</script><b>medical treatment</b> was given.</div>")
	assert.Equal(t, "Record the case if medical treatment was given.", got)
	assert.Equal(t, "already plain", plainText("  already \n plain "))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}

func TestRegulatory_SearchECFR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "first aid", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("top_k"))
		_, _ = io.WriteString(w, `{"results":[{"citation":"29 CFR 1904.7(b)(5)(ii)","text":"<p>First aid means <i>only</i> the following</p>"}]}`)
	}))
	defer srv.Close()

	r := NewRegulatory(srv.URL, time.Second)
	out := r.SearchECFR(context.Background(), "first aid")
	assert.Contains(t, out, "Regulatory Guidance for 'first aid':")
	assert.Contains(t, out, "[1] 29 CFR 1904.7(b)(5)(ii)")
	assert.Contains(t, out, "First aid means only the following...")
}

func TestRegulatory_SearchFallbacks(t *testing.T) {
	ctx := context.Background()

	offline := NewRegulatory("", 0)
	assert.Contains(t, offline.SearchECFR(ctx, "Is this First Aid?"), "Per 29 CFR 1904.7(a), first aid treatments are NOT recordable.")
	assert.Contains(t, offline.SearchECFR(ctx, "lockout"), "Unable to find guidance for 'lockout'")

	unreachable := NewRegulatory(closedURL(t), time.Second)
	assert.Contains(t, unreachable.SearchECFR(ctx, "days away"), "1904.7(b)(3)")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	broken := NewRegulatory(srv.URL, time.Second)
	assert.Contains(t, broken.SearchECFR(ctx, "first aid"), "Error searching regulations:")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer empty.Close()
	assert.Equal(t, "No regulatory guidance found for 'x'. Try different search terms.",
		NewRegulatory(empty.URL, time.Second).SearchECFR(ctx, "x"))
}

func TestRegulatory_GetCFRSection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/section/1904.39", r.URL.Path)
		_, _ = io.WriteString(w, `{"text":"Within eight (8) hours after the death"}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	out := NewRegulatory(srv.URL, time.Second).GetCFRSection(ctx, "1904.39")
	assert.Equal(t, "29 CFR 1904.39:\nWithin eight (8) hours after the death", out)

	offline := NewRegulatory("", 0)
	assert.Contains(t, offline.GetCFRSection(ctx, "1904.7"), "29 CFR 1904.7: General recording criteria")
	assert.Contains(t, offline.GetCFRSection(ctx, "1904.7(a)(1)"), "29 CFR 1904.7(a): First aid list")
	assert.Contains(t, offline.GetCFRSection(ctx, "1904.5(b)(2)(iv)"), "29 CFR 1904.5(b)(2):")
	assert.Equal(t, "Section 29 CFR 1910.134 not found in cache. Check the eCFR at ecfr.gov.",
		offline.GetCFRSection(ctx, "1910.134"))
}

func TestSciences(t *testing.T) {
	ctx := context.Background()
	s := NewSciences("", 0)

	out := s.GetNIOSHGuidance(ctx, "Heat Stress")
	assert.Contains(t, out, "NIOSH Guidance for Heat Stress:")
	assert.Contains(t, out, "- OSHA PEL: Not specified")
	assert.Contains(t, out, "Light work: 30°C WBGT")
	assert.Contains(t, s.GetNIOSHGuidance(ctx, "asbestos"), "No specific NIOSH guidance found for 'asbestos'")

	assert.Contains(t, s.CompareLimits("Benzene"), "- NIOSH REL (Research recommendation): 0.1 ppm TWA")
	assert.Contains(t, s.CompareLimits("toluene"), "No comparison data available for 'toluene'")

	assert.Contains(t, s.PreventionPractices("noise"), "• PPE: Earplugs (NRR 25-33), earmuffs")
	assert.Contains(t, s.PreventionPractices("radiation"), "1. Elimination - Remove the hazard entirely")
}

func TestSciences_RemoteGuidance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lead", r.URL.Query().Get("topic"))
		_, _ = io.WriteString(w, `{"niosh_rel":"0.050 mg/m3","osha_pel":"0.050 mg/m3","note":"aligned","source":"NPG"}`)
	}))
	defer srv.Close()

	out := NewSciences(srv.URL, time.Second).GetNIOSHGuidance(context.Background(), "lead")
	assert.Contains(t, out, "- NIOSH REL: 0.050 mg/m3")
	assert.Contains(t, out, "- Source: NPG")
}

func intPtr(v int) *int { return &v }

func TestRecordability_LocalEvaluate(t *testing.T) {
	r := NewRecordability("", 0)
	ctx := context.Background()

	out := r.Evaluate(ctx, Case{
		InjuryDescription: "laceration on forearm",
		TreatmentProvided: "five stitches",
		WorkRelated:       true,
	})
	assert.Contains(t, out, "Q3: ✓ MET\n    Medical treatment beyond first aid")
	assert.Contains(t, out, "ASSESSMENT: This case MEETS the recording criteria.")

	out = r.Evaluate(ctx, Case{
		InjuryDescription: "scrape",
		TreatmentProvided: "bandage",
		WorkRelated:       false,
	})
	assert.Contains(t, out, "Q1: ✗ NOT MET\n    Not work-related")
	assert.Contains(t, out, "Missing: Q1, Q3")

	out = r.Evaluate(ctx, Case{
		InjuryDescription: "sprain",
		TreatmentProvided: "cold pack",
		WorkRelated:       true,
		DaysAway:          intPtr(3),
		RestrictedWork:    true,
	})
	assert.Contains(t, out, "Days away from work: 3, Restricted work or job transfer")
}

func TestRecordability_RemoteEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/evaluate", r.URL.Path)
		var c Case
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		assert.Equal(t, "sutures", c.TreatmentProvided)
		_, _ = io.WriteString(w, `{"Q0":{"met":true,"reason":"injury"},"Q3":{"met":true,"reason":"sutures"},"assessment":"Recordable"}`)
	}))
	defer srv.Close()

	out := NewRecordability(srv.URL, time.Second).Evaluate(context.Background(), Case{TreatmentProvided: "sutures", WorkRelated: true})
	assert.Contains(t, out, "Q0: ✓ MET\n    injury")
	assert.NotContains(t, out, "Q1:")
	assert.Contains(t, out, "ASSESSMENT: Recordable")
}

func TestRecordability_CheckFirstAid(t *testing.T) {
	r := NewRecordability("", 0)
	assert.Contains(t, r.CheckFirstAid("Ibuprofen 200mg"), "IS on the first aid list")
	assert.Contains(t, r.CheckFirstAid("non-prescription medication"), "IS on the first aid list")
	assert.Contains(t, r.CheckFirstAid("Sutures"), "is MEDICAL TREATMENT beyond first aid")
	assert.Contains(t, r.CheckFirstAid("acupuncture"), "is not definitively on either list")
}

func TestCountDaysAway(t *testing.T) {
	injury := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	back := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 9, CountDaysAway(injury, back, true))
	assert.Equal(t, 5, CountDaysAway(injury, back, false))
	assert.Equal(t, 0, CountDaysAway(injury, injury.AddDate(0, 0, 1), true))
}

func TestRecordability_CalculateDaysAway(t *testing.T) {
	r := NewRecordability("", 0)
	out := r.CalculateDaysAway("2024-03-01", "2024-03-11", true)
	assert.Contains(t, out, "- Days counted: 9\n")
	assert.NotContains(t, out, "Capped")

	out = r.CalculateDaysAway("2024-01-01", "2024-12-31", true)
	assert.Contains(t, out, "- Days counted: 364\n")
	assert.Contains(t, out, "- Capped at: 180 days")

	assert.Contains(t, r.CalculateDaysAway("03/01/2024", "2024-03-11", true), "Use YYYY-MM-DD format.")
}

func TestAnalytics_IncidenceRate(t *testing.T) {
	assert.InDelta(t, 3.0, IncidenceRate(3, 200000), 1e-9)
	assert.Zero(t, IncidenceRate(3, 0))

	a := NewAnalytics("", 0)
	out := a.CalculateIncidenceRate(3, 200000, intPtr(1))
	assert.Contains(t, out, "Total Hours Worked: 200,000")
	assert.Contains(t, out, "Estimated FTEs: 100.0")
	assert.Contains(t, out, "TCIR (Total Case Incident Rate): 3.00")
	assert.Contains(t, out, "DART Rate: 1.00")
	assert.Equal(t, "Error: Hours worked must be greater than 0", a.CalculateIncidenceRate(1, 0, nil))
	assert.NotContains(t, a.CalculateIncidenceRate(1, 2000, nil), "DART")
}

func TestAnalytics_Benchmark(t *testing.T) {
	a := NewAnalytics("", 0)
	out := a.CompareToBenchmark(1.4, 1.5, "238220")
	assert.Contains(t, out, "Industry: Plumbing, Heating, AC Contractors (NAICS 238220)")
	assert.Contains(t, out, "Status: BELOW benchmark (50.0%)")
	assert.Contains(t, out, "Status: AT benchmark (100.0%)")
	assert.Equal(t, "No benchmark data available for NAICS 445110", a.CompareToBenchmark(1, 1, "445110"))
}

func TestAnalytics_Rates(t *testing.T) {
	ctx := context.Background()

	out := NewAnalytics(closedURL(t), time.Second).IndustryRates(ctx, "238220", 0)
	assert.Contains(t, out, "Industry: Plumbing, Heating, and Air-Conditioning Contractors")
	assert.Contains(t, out, "Total Case Incident Rate (TCIR): 2.8")
	assert.Contains(t, out, "(cached data)")

	assert.Contains(t, NewAnalytics("", 0).IndustryRates(ctx, "999", 0), "No injury rate data available for NAICS 999")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/industry-rates", r.URL.Path)
		assert.Equal(t, "622110", r.URL.Query().Get("naics"))
		assert.Equal(t, "2023", r.URL.Query().Get("year"))
		_, _ = io.WriteString(w, `{"naics_code":"622110","industry_name":"General Hospitals","year":2023,"tcir":5.7,"dart":3.1}`)
	}))
	defer srv.Close()
	out = NewAnalytics(srv.URL, time.Second).IndustryRates(ctx, "622110", 2023)
	assert.Contains(t, out, "Industry: General Hospitals")
	assert.Contains(t, out, "Total Case Incident Rate (TCIR): 5.7")
	assert.Contains(t, out, "DAFWII Rate: N/A")
}

func TestAnalytics_LookupNAICS(t *testing.T) {
	ctx := context.Background()
	a := NewAnalytics("", 0)
	assert.Contains(t, a.LookupNAICS(ctx, "Plumbing contractors"), "238220 - Plumbing")
	assert.Contains(t, a.LookupNAICS(ctx, "622"), "- Sector: Health Care")
	assert.Contains(t, a.LookupNAICS(ctx, "622"), "Code/Title: Hospitals")
	assert.Contains(t, a.LookupNAICS(ctx, "NAICS 311 plant"), "Food Manufacturing")
	assert.Contains(t, a.LookupNAICS(ctx, "236"), "Commercial and Institutional Building Construction")
	assert.Contains(t, a.LookupNAICS(ctx, "Hospitals"), "622 - Hospitals")
	assert.Contains(t, a.LookupNAICS(ctx, "aerospace"), "No NAICS data found for 'aerospace'")
}

func TestIncidents_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/incidents", r.URL.Path)
		var in NewIncident
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "open", in.Status)
		_, _ = io.WriteString(w, `{"incident_id":"INC-42"}`)
	}))
	defer srv.Close()

	in := NewIncident{EmployeeName: "J. Doe", IncidentDate: "2024-05-01", BodyPart: "hand", IsPrivacyCase: true}
	id, out := NewIncidents(srv.URL, "tok", time.Second).Create(context.Background(), in)
	assert.Equal(t, "INC-42", id)
	assert.Contains(t, out, "✅ Incident Created Successfully")
	assert.Contains(t, out, "Incident ID: INC-42")
	assert.Contains(t, out, "PRIVACY CASE: Per 29 CFR 1904.29")
}

func TestIncidents_CreateSimulated(t *testing.T) {
	id, out := NewIncidents(closedURL(t), "tok", time.Second).Create(context.Background(), NewIncident{EmployeeName: "J. Doe"})
	assert.Regexp(t, `^INC-[0-9a-f]{8}$`, id)
	assert.Contains(t, out, "[SIMULATION] Incident Created")
	assert.Regexp(t, `Incident ID: INC-[0-9a-f]{8}\n`, out)
	assert.Contains(t, out, "Zone 2 API unavailable")
}

func TestIncidents_UpdateCapsDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/incidents/INC-1", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(180), body["days_away"])
		assert.Equal(t, "closed", body["status"])
		assert.NotContains(t, body, "days_transfer")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	out := NewIncidents(srv.URL, "", time.Second).Update(context.Background(), "INC-1", IncidentUpdate{DaysAway: intPtr(200), CaseClosed: true})
	assert.Contains(t, out, "Days Away: 200")
	assert.Contains(t, out, "Days Transfer: N/A")
	assert.Contains(t, out, "Status: Closed")

	sim := NewIncidents("", "", 0).Update(context.Background(), "INC-1", IncidentUpdate{})
	assert.Contains(t, sim, "[SIMULATION] Incident INC-1 would be updated")
}

func TestIncidents_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/incidents/INC-7" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"incident_id":"INC-7","employee_name":"Privacy Case","days_away":4,"status":"open"}`)
	}))
	defer srv.Close()

	p := NewIncidents(srv.URL, "", time.Second)
	out := p.Get(context.Background(), "INC-7")
	assert.Contains(t, out, "Employee: Privacy Case")
	assert.Contains(t, out, "Days Away: 4")
	assert.Contains(t, out, "Days Restricted: 0")
	assert.Contains(t, p.Get(context.Background(), "INC-8"), "Error retrieving incident INC-8")
}

func TestIncidents_CheckPrivacy(t *testing.T) {
	p := NewIncidents("", "", 0)
	out := p.CheckPrivacy("puncture", "finger", "needlestick from a used syringe")
	assert.Contains(t, out, "PRIVACY CONCERN CASE IDENTIFIED")
	assert.Contains(t, out, "Matching criteria: Needlestick")
	assert.Contains(t, p.CheckPrivacy("sprain", "ankle", "slipped on ice"), "NOT A PRIVACY CONCERN CASE")
	assert.Equal(t, []string{"Intimate Body Part", "Mental Illness"}, PrivacyMatches("groin strain followed by depression"))
}

func TestDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/forms/300":
			_, _ = io.WriteString(w, `{"total_cases":4,"privacy_cases":1,"document_id":"doc-300"}`)
		case "/forms/300a":
			_, _ = io.WriteString(w, `{"deaths":0,"days_away_cases":2,"document_id":"doc-300a","download_url":"https://x/300a.pdf"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	d := NewDocuments(srv.URL, "tok", time.Second)

	out := d.Form300(ctx, 2024, "Plant 3", true)
	assert.Contains(t, out, "Total Cases: 4")
	assert.Contains(t, out, "Download URL: Pending")

	out = d.Form300A(ctx, Summary300A{Year: 2024, EstablishmentName: "Plant 3", NAICSCode: "311", AnnualAverageEmployees: 50, TotalHoursWorked: 100000})
	assert.Contains(t, out, "Total Hours: 100,000")
	assert.Contains(t, out, "Days Away Cases: 2")
	assert.Contains(t, out, "April 30 of 2025")

	require.Contains(t, d.Form301(ctx, "INC-1"), "[SIMULATION] Form 301 Generation")

	offline := NewDocuments("", "", 0)
	assert.Contains(t, offline.Form300(ctx, 2024, "Plant 3", true), "Compile all 2024 incidents")
	assert.Contains(t, offline.Form300A(ctx, Summary300A{Year: 2024}), "Post from February 1 - April 30 of 2025")
}

func TestPostingRequirements(t *testing.T) {
	out := PostingRequirements(time.Date(2025, time.February, 20, 15, 0, 0, 0, time.UTC))
	assert.Contains(t, out, "OSHA Recordkeeping Requirements (2025)")
	assert.Contains(t, out, "CURRENTLY IN POSTING PERIOD")
	assert.Contains(t, out, "Due by March 2, 2025 ⚠️ (10 days remaining)")
	assert.Contains(t, out, "For: Calendar year 2024 data")
	assert.Contains(t, out, "Current retention: 2020 through 2024 records")

	out = PostingRequirements(time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, out, "Posting begins February 1, 2025 (22 days away)")
	assert.Contains(t, out, "Due by March 2, 2025\n")

	out = PostingRequirements(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, out, "Posting period ended April 30, 2025")
	assert.Contains(t, out, "Deadline passed (March 2, 2025)")
}

func TestOfflineSet(t *testing.T) {
	s := Offline()
	require.NotNil(t, s.Regulatory)
	assert.False(t, s.Incidents.zone.enabled())
	assert.Contains(t, s.Regulatory.SearchECFR(context.Background(), "recording criteria"), "Per 29 CFR 1904.7, record")
}
