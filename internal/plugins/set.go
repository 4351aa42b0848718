package plugins

import (
	"time"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
)

// Set bundles every plugin the responders use.
type Set struct {
	Sciences      *Sciences
	Regulatory    *Regulatory
	Recordability *Recordability
	Analytics     *Analytics
	Incidents     *Incidents
	Documents     *Documents
}

// NewSet builds the plugins from the zone configuration. Empty URLs leave
// the matching plugin on its static fallback.
func NewSet(cfg config.ZonesConfig, timeout time.Duration) *Set {
	return &Set{
		Sciences:      NewSciences(cfg.NIOSHURL, timeout),
		Regulatory:    NewRegulatory(cfg.ECFRURL, timeout),
		Recordability: NewRecordability(cfg.RecordabilityURL, timeout),
		Analytics:     NewAnalytics(cfg.AnalyticsURL, timeout),
		Incidents:     NewIncidents(cfg.IncidentsURL, cfg.AuthToken, timeout),
		Documents:     NewDocuments(cfg.DocumentsURL, cfg.AuthToken, timeout),
	}
}

// Offline returns a set that never leaves the process.
func Offline() *Set {
	return NewSet(config.ZonesConfig{}, 0)
}
