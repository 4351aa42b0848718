package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Documents generates the OSHA 300, 300A and 301 forms through the Zone 2
// documents service.
type Documents struct {
	zone zone
}

// NewDocuments creates the document generation plugin.
func NewDocuments(baseURL, token string, timeout time.Duration) *Documents {
	return &Documents{zone: newZone("documents", baseURL, token, timeout)}
}

type formResponse map[string]interface{}

func (f formResponse) get(key, fallback string) string { return valueOr(f[key], fallback) }

// Form300 generates the log of work-related injuries and illnesses.
func (d *Documents) Form300(ctx context.Context, year int, establishment string, includePrivacyCases bool) string {
	var resp formResponse
	err := d.zone.post(ctx, "/forms/300", map[string]interface{}{
		"year":                  year,
		"establishment_name":    establishment,
		"include_privacy_cases": includePrivacyCases,
	}, &resp)
	if err != nil {
		return "[SIMULATION] Form 300 Generation\n" + rule + "\n" +
			fmt.Sprintf("Year: %d\n", year) +
			fmt.Sprintf("Establishment: %s\n\n", establishment) +
			"When Zone 2 Documents API is available, this will:\n" +
			fmt.Sprintf("• Compile all %d incidents into Form 300 log\n", year) +
			"• Replace employee names with 'Privacy Case' where applicable\n" +
			"• Generate downloadable PDF\n\n" +
			"Form 300 Columns:\n" +
			"A - Case No. | B - Employee Name | C - Job Title\n" +
			"D - Date | E - Location | F - Description\n" +
			"G-J - Classify Case | K-L - Days Away/Restricted"
	}
	return "✅ Form 300 Generated Successfully\n" + rule + "\n" +
		fmt.Sprintf("Year: %d\n", year) +
		fmt.Sprintf("Establishment: %s\n", establishment) +
		fmt.Sprintf("Total Cases: %s\n", resp.get("total_cases", "0")) +
		fmt.Sprintf("Privacy Cases: %s\n", resp.get("privacy_cases", "0")) +
		fmt.Sprintf("Document ID: %s\n", resp.get("document_id", "")) +
		fmt.Sprintf("Download URL: %s\n\n", resp.get("download_url", "Pending")) +
		"Note: Form 300 must be kept on file for 5 years."
}

// Summary300A is the establishment data for the annual summary.
type Summary300A struct {
	Year                   int    `json:"year"`
	EstablishmentName      string `json:"establishment_name"`
	NAICSCode              string `json:"naics_code"`
	AnnualAverageEmployees int    `json:"annual_average_employees"`
	TotalHoursWorked       int64  `json:"total_hours_worked"`
}

// Form300A generates the annual summary. It is posted February 1 through
// April 30 of the following year.
func (d *Documents) Form300A(ctx context.Context, s Summary300A) string {
	header := fmt.Sprintf("Year: %d\n", s.Year) +
		fmt.Sprintf("Establishment: %s\n", s.EstablishmentName) +
		fmt.Sprintf("NAICS: %s\n", s.NAICSCode) +
		fmt.Sprintf("Average Employees: %d\n", s.AnnualAverageEmployees) +
		fmt.Sprintf("Total Hours: %s\n\n", groupThousands(s.TotalHoursWorked))

	var resp formResponse
	if err := d.zone.post(ctx, "/forms/300a", s, &resp); err != nil {
		return "[SIMULATION] Form 300A Generation\n" + rule + "\n" + header +
			"When Zone 2 Documents API is available, this will:\n" +
			"• Calculate summary totals from Form 300\n" +
			"• Compute incidence rates\n" +
			"• Generate certification-ready PDF\n\n" +
			"⚠️ REMINDER:\n" +
			fmt.Sprintf("Post from February 1 - April 30 of %d\n", s.Year+1) +
			"Must be certified by company executive"
	}
	return "✅ Form 300A Generated Successfully\n" + rule + "\n" + header +
		"Summary Totals:\n" +
		fmt.Sprintf("  Total Deaths: %s\n", resp.get("deaths", "0")) +
		fmt.Sprintf("  Days Away Cases: %s\n", resp.get("days_away_cases", "0")) +
		fmt.Sprintf("  Days Away: %s\n", resp.get("total_days_away", "0")) +
		fmt.Sprintf("  Job Transfer/Restriction Cases: %s\n", resp.get("transfer_cases", "0")) +
		fmt.Sprintf("  Other Recordable Cases: %s\n\n", resp.get("other_cases", "0")) +
		fmt.Sprintf("Document ID: %s\n", resp.get("document_id", "")) +
		fmt.Sprintf("Download URL: %s\n\n", resp.get("download_url", "Pending")) +
		"⚠️ POSTING REQUIREMENT:\n" +
		fmt.Sprintf("Post Form 300A from February 1 through April 30 of %d\n", s.Year+1) +
		"in a visible location where employee notices are posted."
}

// Form301 generates the incident report for one case.
func (d *Documents) Form301(ctx context.Context, incidentID string) string {
	var resp formResponse
	if err := d.zone.post(ctx, "/forms/301", map[string]string{"incident_id": incidentID}, &resp); err != nil {
		return "[SIMULATION] Form 301 Generation\n" + rule + "\n" +
			fmt.Sprintf("Incident ID: %s\n", incidentID) +
			"Status: Would be generated when Zone 2 API is available\n\n" +
			"Form 301 Requirements:\n" +
			"• Complete within 7 days of learning about recordable case\n" +
			"• Include all injury details and circumstances\n" +
			"• Keep on file for 5 years\n" +
			"• May substitute workers' comp form if equivalent"
	}
	return "✅ Form 301 Generated Successfully\n" + rule + "\n" +
		fmt.Sprintf("Incident ID: %s\n", incidentID) +
		fmt.Sprintf("Employee: %s\n", resp.get("employee_name", "[See form]")) +
		fmt.Sprintf("Date of Injury: %s\n", resp.get("incident_date", "")) +
		fmt.Sprintf("Document ID: %s\n", resp.get("document_id", "")) +
		fmt.Sprintf("Download URL: %s\n\n", resp.get("download_url", "Pending")) +
		"Note: Form 301 must be completed within 7 calendar days " +
		"of receiving information that a recordable case occurred.\n" +
		"Keep form on file for 5 years."
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// PostingRequirements describes the posting window, the electronic
// submission deadline and record retention for the year of today.
func PostingRequirements(today time.Time) string {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	year := today.Year()
	postingStart := time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC)
	postingEnd := time.Date(year, time.April, 30, 0, 0, 0, 0, time.UTC)
	electronicDeadline := time.Date(year, time.March, 2, 0, 0, 0, 0, time.UTC)

	var posting string
	switch {
	case today.Before(postingStart):
		posting = fmt.Sprintf("⏳ Posting begins February 1, %d (%d days away)", year, daysBetween(today, postingStart))
	case !today.After(postingEnd):
		posting = fmt.Sprintf("📋 CURRENTLY IN POSTING PERIOD - Must be posted until April 30 (%d days remaining)", daysBetween(today, postingEnd))
	default:
		posting = fmt.Sprintf("✅ Posting period ended April 30, %d", year)
	}

	var electronic string
	if today.Before(electronicDeadline) {
		electronic = fmt.Sprintf("⏳ Due by March 2, %d", year)
		if left := daysBetween(today, electronicDeadline); left <= 30 {
			electronic += fmt.Sprintf(" ⚠️ (%d days remaining)", left)
		}
	} else {
		electronic = fmt.Sprintf("✅ Deadline passed (March 2, %d)", year)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "OSHA Recordkeeping Requirements (%d)\n%s\n\n", year, rule)
	sb.WriteString("📋 FORM 300A POSTING\n")
	fmt.Fprintf(&sb, "   Period: February 1 - April 30, %d\n", year)
	fmt.Fprintf(&sb, "   For: Calendar year %d data\n", year-1)
	fmt.Fprintf(&sb, "   Status: %s\n", posting)
	sb.WriteString("   Location: Where employee notices are normally posted\n")
	sb.WriteString("   Certification: Must be certified by company executive\n\n")
	sb.WriteString("💻 ELECTRONIC SUBMISSION (ITA)\n")
	fmt.Fprintf(&sb, "   Deadline: March 2, %d\n", year)
	fmt.Fprintf(&sb, "   Status: %s\n", electronic)
	sb.WriteString("   Required for:\n")
	sb.WriteString("   • Establishments with 250+ employees (Form 300A)\n")
	sb.WriteString("   • Establishments with 20-249 employees in high-hazard industries\n")
	sb.WriteString("     (Forms 300A, 300, and 301)\n")
	sb.WriteString("   Submit at: https://www.osha.gov/injuryreporting\n\n")
	sb.WriteString("📁 RECORD RETENTION\n")
	sb.WriteString("   Forms 300, 300A, 301: Keep for 5 years following the year\n")
	fmt.Fprintf(&sb, "   Current retention: %d through %d records", year-5, year-1)
	return sb.String()
}
