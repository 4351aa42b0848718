package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Regulatory searches 29 CFR Part 1904 through the eCFR zone service.
type Regulatory struct {
	zone zone
}

// NewRegulatory creates the regulatory guidance plugin. An empty baseURL
// serves static guidance only.
func NewRegulatory(baseURL string, timeout time.Duration) *Regulatory {
	return &Regulatory{zone: newZone("ecfr", baseURL, "", timeout)}
}

type ecfrSearchResponse struct {
	Results []struct {
		Citation string `json:"citation"`
		Text     string `json:"text"`
	} `json:"results"`
}

// SearchECFR returns up to three matching passages for query.
func (r *Regulatory) SearchECFR(ctx context.Context, query string) string {
	var resp ecfrSearchResponse
	err := r.zone.get(ctx, "/search", url.Values{"q": {query}, "top_k": {"3"}}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return staticGuidance(query)
		}
		return fmt.Sprintf("Error searching regulations: %v", err)
	}
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No regulatory guidance found for '%s'. Try different search terms.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Regulatory Guidance for '%s':\n\n", query)
	for i, res := range resp.Results {
		citation := res.Citation
		if citation == "" {
			citation = "CFR"
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, citation)
		fmt.Fprintf(&sb, "    %s...\n\n", truncate(plainText(res.Text), 500))
	}
	return sb.String()
}

// GetCFRSection returns the text of one section, e.g. "1904.7(a)".
func (r *Regulatory) GetCFRSection(ctx context.Context, citation string) string {
	citation = strings.TrimSpace(citation)
	var resp struct {
		Text string `json:"text"`
	}
	if err := r.zone.get(ctx, "/section/"+url.PathEscape(citation), nil, &resp); err != nil {
		return staticSection(citation)
	}
	text := plainText(resp.Text)
	if text == "" {
		text = "Section not found"
	}
	return fmt.Sprintf("29 CFR %s:\n%s", citation, text)
}

var guidanceTable = []struct {
	key, text string
}{
	{"first aid", "Per 29 CFR 1904.7(a), first aid treatments are NOT recordable. " +
		"First aid includes: bandages, butterfly closures, finger guards, " +
		"non-prescription medications at nonprescription strength, tetanus shots, " +
		"wound cleaning, hot/cold therapy, rigid stays, and more. " +
		"See the complete list in 1904.7(a)."},
	{"medical treatment", "Per 29 CFR 1904.7(a), medical treatment beyond first aid triggers recording. " +
		"Examples: prescription medications, sutures/stitches, physical therapy, " +
		"chiropractic treatment. If treatment goes beyond the first aid list, " +
		"the case meets the recording criteria."},
	{"days away", "Per 29 CFR 1904.7(b)(3), count the number of calendar days the employee " +
		"was unable to work due to the injury or illness. Do not count the day of " +
		"injury. Cap at 180 days. Include weekends and holidays if the employee " +
		"would not have been able to work those days."},
	{"work-related", "Per 29 CFR 1904.5, an injury is work-related if an event or exposure in " +
		"the work environment caused or contributed to it, or significantly aggravated " +
		"a pre-existing condition. Exceptions exist for voluntary wellness activities, " +
		"eating/drinking, personal tasks, and more - see 1904.5(b)(2)."},
	{"recording criteria", "Per 29 CFR 1904.7, record an injury/illness if it results in: " +
		"death, days away from work, restricted work or transfer, " +
		"medical treatment beyond first aid, loss of consciousness, " +
		"or significant injury/illness diagnosed by a physician."},
}

func staticGuidance(query string) string {
	q := strings.ToLower(query)
	for _, g := range guidanceTable {
		if strings.Contains(q, g.key) {
			return g.text
		}
	}
	return fmt.Sprintf("Unable to find guidance for '%s'. Please try a more specific search term.", query)
}

// Ordered so that the most specific citation wins.
var sectionTable = []struct {
	key, desc string
}{
	{"1904.7(a)", "First aid list - treatments that do NOT make a case recordable."},
	{"1904.7", "General recording criteria for work-related injuries and illnesses."},
	{"1904.5(b)(2)", "Exceptions to work-relatedness presumption."},
	{"1904.5", "Determination of work-relatedness."},
	{"1904.29", "Forms and privacy concern cases."},
	{"1904.32", "Annual summary (Form 300A) requirements."},
	{"1904.39", "Reporting fatalities and severe injuries to OSHA."},
	{"1904.41", "Electronic submission requirements."},
}

func staticSection(citation string) string {
	if citation != "" {
		matchers := []func(key string) bool{
			func(key string) bool { return citation == key },
			func(key string) bool { return strings.HasPrefix(citation, key) },
			func(key string) bool { return strings.HasPrefix(key, citation) },
		}
		for _, match := range matchers {
			for _, s := range sectionTable {
				if match(s.key) {
					return fmt.Sprintf("29 CFR %s: %s\n(Full text available when eCFR API is online)", s.key, s.desc)
				}
			}
		}
	}
	return fmt.Sprintf("Section 29 CFR %s not found in cache. Check the eCFR at ecfr.gov.", citation)
}
