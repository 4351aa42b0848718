package plugins

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Analytics serves BLS injury rates and NAICS classification.
type Analytics struct {
	zone zone
}

// NewAnalytics creates the industry analytics plugin.
func NewAnalytics(baseURL string, timeout time.Duration) *Analytics {
	return &Analytics{zone: newZone("analytics", baseURL, "", timeout)}
}

// IndustryRate is a cached BLS rate entry.
type IndustryRate struct {
	Prefix string
	Name   string
	TCIR   float64
	DART   float64
	Year   int
}

// Prefix order matters: the first prefix of the queried code wins.
var rateTable = []IndustryRate{
	{"238220", "Plumbing, Heating, and Air-Conditioning Contractors", 2.8, 1.5, 2022},
	{"236220", "Commercial and Institutional Building Construction", 3.2, 1.8, 2022},
	{"311", "Food Manufacturing", 4.1, 2.3, 2022},
	{"622", "Hospitals", 5.5, 2.9, 2022},
	{"445", "Food and Beverage Stores", 3.8, 1.9, 2022},
	{"23", "Construction (All)", 2.8, 1.5, 2022},
}

// LookupRate returns the first cached rate whose prefix matches naics.
func LookupRate(naics string) (IndustryRate, bool) {
	naics = strings.TrimSpace(naics)
	for _, r := range rateTable {
		if strings.HasPrefix(naics, r.Prefix) {
			return r, true
		}
	}
	return IndustryRate{}, false
}

type ratesResponse struct {
	NAICSCode    string      `json:"naics_code"`
	IndustryName string      `json:"industry_name"`
	Year         interface{} `json:"year"`
	TCIR         interface{} `json:"tcir"`
	DART         interface{} `json:"dart"`
	DAFWII       interface{} `json:"dafwii"`
}

// IndustryRates returns TCIR and DART for a NAICS code. A zero year asks for
// the most recent data.
func (a *Analytics) IndustryRates(ctx context.Context, naics string, year int) string {
	params := url.Values{"naics": {naics}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	var resp ratesResponse
	if err := a.zone.get(ctx, "/industry-rates", params, &resp); err != nil {
		return staticRates(naics)
	}
	return "Industry Injury Rates (BLS Data)\n" + rule + "\n" +
		fmt.Sprintf("NAICS: %s\n", resp.NAICSCode) +
		fmt.Sprintf("Industry: %s\n", resp.IndustryName) +
		fmt.Sprintf("Year: %s\n\n", valueOr(resp.Year, "")) +
		fmt.Sprintf("Total Case Incident Rate (TCIR): %s\n", valueOr(resp.TCIR, "N/A")) +
		fmt.Sprintf("DART Rate: %s\n", valueOr(resp.DART, "N/A")) +
		fmt.Sprintf("DAFWII Rate: %s\n\n", valueOr(resp.DAFWII, "N/A")) +
		"Source: Bureau of Labor Statistics, Survey of Occupational Injuries and Illnesses"
}

func valueOr(v interface{}, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

func staticRates(naics string) string {
	r, ok := LookupRate(naics)
	if !ok {
		return fmt.Sprintf("No injury rate data available for NAICS %s. Check BLS.gov for current data.", naics)
	}
	return "Industry Injury Rates (BLS Data)\n" + rule + "\n" +
		fmt.Sprintf("NAICS: %s\n", naics) +
		fmt.Sprintf("Industry: %s\n", r.Name) +
		fmt.Sprintf("Year: %d\n\n", r.Year) +
		fmt.Sprintf("Total Case Incident Rate (TCIR): %s\n", formatRate(r.TCIR)) +
		fmt.Sprintf("DART Rate: %s\n\n", formatRate(r.DART)) +
		"Source: Bureau of Labor Statistics (cached data)\n" +
		"Note: BLS data typically has a 2-year lag."
}

func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var naicsTable = []struct {
	key, title, sector string
}{
	{"238220", "Plumbing, Heating, and Air-Conditioning Contractors", "Construction"},
	{"236220", "Commercial and Institutional Building Construction", "Construction"},
	{"311", "Food Manufacturing", "Manufacturing"},
	{"622", "Hospitals", "Health Care"},
	{"445", "Food and Beverage Stores", "Retail Trade"},
	{"plumbing", "238220 - Plumbing, Heating, and Air-Conditioning Contractors", "Construction"},
	{"hospital", "622 - Hospitals", "Health Care"},
	{"construction", "23 - Construction", "Construction"},
}

// LookupNAICS resolves a NAICS code or industry name.
func (a *Analytics) LookupNAICS(ctx context.Context, query string) string {
	var resp map[string]interface{}
	if err := a.zone.get(ctx, "/naics/lookup", url.Values{"q": {query}}, &resp); err != nil {
		return staticNAICS(query)
	}
	if len(resp) == 0 {
		return fmt.Sprintf("No NAICS code found for '%s'", query)
	}
	return "NAICS Classification:\n" +
		fmt.Sprintf("- Code: %s\n", valueOr(resp["code"], "")) +
		fmt.Sprintf("- Title: %s\n", valueOr(resp["title"], "")) +
		fmt.Sprintf("- Sector: %s\n", valueOr(resp["sector"], "")) +
		fmt.Sprintf("- Description: %s", valueOr(resp["description"], "N/A"))
}

// staticNAICS prefers an exact key, then the longest key inside the query,
// then the longest key that contains the query.
func staticNAICS(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	best, bestRank := -1, 0
	for i, n := range naicsTable {
		if q == "" {
			break
		}
		rank := 0
		switch {
		case n.key == q:
			rank = 3
		case strings.Contains(q, n.key):
			rank = 2
		case strings.Contains(n.key, q):
			rank = 1
		}
		if rank > bestRank || (rank == bestRank && rank > 0 && len(n.key) > len(naicsTable[best].key)) {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return fmt.Sprintf("No NAICS data found for '%s'. Search at census.gov/naics", query)
	}
	n := naicsTable[best]
	return fmt.Sprintf("NAICS Classification:\n- Code/Title: %s\n- Sector: %s", n.title, n.sector)
}

// benchmarkTable holds the industries with benchmark-grade data.
var benchmarkTable = []IndustryRate{
	{"238220", "Plumbing, Heating, AC Contractors", 2.8, 1.5, 2022},
	{"236220", "Commercial Building Construction", 3.2, 1.8, 2022},
	{"311", "Food Manufacturing", 4.1, 2.3, 2022},
	{"622", "Hospitals", 5.5, 2.9, 2022},
}

// CompareToBenchmark compares employer TCIR and DART against the industry.
func (a *Analytics) CompareToBenchmark(employerTCIR, employerDART float64, naics string) string {
	var industry *IndustryRate
	for i := range benchmarkTable {
		if strings.HasPrefix(strings.TrimSpace(naics), benchmarkTable[i].Prefix) {
			industry = &benchmarkTable[i]
			break
		}
	}
	if industry == nil {
		return fmt.Sprintf("No benchmark data available for NAICS %s", naics)
	}

	tcirRatio := ratio(employerTCIR, industry.TCIR)
	dartRatio := ratio(employerDART, industry.DART)
	return "Industry Benchmark Comparison\n" + rule + "\n" +
		fmt.Sprintf("Industry: %s (NAICS %s)\n\n", industry.Name, naics) +
		"TCIR (Total Case Incident Rate):\n" +
		fmt.Sprintf("  - Employer: %.2f\n", employerTCIR) +
		fmt.Sprintf("  - Industry: %.2f\n", industry.TCIR) +
		fmt.Sprintf("  - Status: %s benchmark (%.1f%%)\n\n", benchmarkStatus(tcirRatio), tcirRatio*100) +
		"DART (Days Away, Restricted, Transfer):\n" +
		fmt.Sprintf("  - Employer: %.2f\n", employerDART) +
		fmt.Sprintf("  - Industry: %.2f\n", industry.DART) +
		fmt.Sprintf("  - Status: %s benchmark (%.1f%%)\n\n", benchmarkStatus(dartRatio), dartRatio*100) +
		"Note: BLS data typically has a 2-year lag. " +
		"Rates are per 100 full-time equivalent workers."
}

func ratio(employer, industry float64) float64 {
	if industry <= 0 {
		return 0
	}
	return employer / industry
}

func benchmarkStatus(r float64) string {
	switch {
	case r > 1.0:
		return "ABOVE"
	case r < 1.0:
		return "BELOW"
	default:
		return "AT"
	}
}

// IncidenceRate is the OSHA rate per 100 full-time workers: N x 200,000 / hours.
func IncidenceRate(cases int, hours int64) float64 {
	if hours <= 0 {
		return 0
	}
	return float64(cases) * 200000 / float64(hours)
}

// CalculateIncidenceRate formats TCIR and, when dartCases is non-nil, DART.
func (a *Analytics) CalculateIncidenceRate(totalCases int, hoursWorked int64, dartCases *int) string {
	if hoursWorked <= 0 {
		return "Error: Hours worked must be greater than 0"
	}
	hours := groupThousands(hoursWorked)
	var sb strings.Builder
	sb.WriteString("Incidence Rate Calculation\n" + rule + "\n")
	fmt.Fprintf(&sb, "Total Recordable Cases: %d\n", totalCases)
	fmt.Fprintf(&sb, "Total Hours Worked: %s\n", hours)
	fmt.Fprintf(&sb, "Estimated FTEs: %.1f\n\n", float64(hoursWorked)/2000)
	fmt.Fprintf(&sb, "TCIR (Total Case Incident Rate): %.2f\n", IncidenceRate(totalCases, hoursWorked))
	fmt.Fprintf(&sb, "  Formula: (%d × 200,000) / %s\n", totalCases, hours)
	if dartCases != nil {
		fmt.Fprintf(&sb, "\nDART Rate: %.2f\n", IncidenceRate(*dartCases, hoursWorked))
		fmt.Fprintf(&sb, "  Cases with days away/restricted/transfer: %d\n", *dartCases)
		fmt.Fprintf(&sb, "  Formula: (%d × 200,000) / %s\n", *dartCases, hours)
	}
	sb.WriteString("\nNote: Rates are per 100 full-time equivalent workers per year. " +
		"Compare to BLS industry averages for context.")
	return sb.String()
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
