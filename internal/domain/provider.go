package domain

import "time"

// ProviderState is the health reported for an upstream provider.
type ProviderState string

const (
	ProviderOperational ProviderState = "operational"
	ProviderDegraded    ProviderState = "degraded"
	ProviderOutage      ProviderState = "outage"
)

// ProviderStatus is a read-only input to correlation: the last known health
// of a tracked provider.
type ProviderStatus struct {
	Provider      string        `json:"provider"`
	Status        ProviderState `json:"status"`
	LastCheckedAt time.Time     `json:"last_checked_at"`
	Details       string        `json:"details,omitempty"`
}

// IsDisrupted reports whether the provider is degraded or in outage.
func (p ProviderStatus) IsDisrupted() bool {
	return p.Status == ProviderDegraded || p.Status == ProviderOutage
}

// ProviderContext rides along with a creation notification when an incident
// was grouped by a provider outage.
type ProviderContext struct {
	IsProviderIssue bool   `json:"is_provider_issue"`
	Provider        string `json:"provider,omitempty"`
	Status          string `json:"status,omitempty"`
	Details         string `json:"details,omitempty"`
}

// ProviderForSource maps an event source to the tracked provider it depends
// on. The second return is false for sources without a tracked provider.
func ProviderForSource(source EventSource) (string, bool) {
	switch source {
	case SourceVercel:
		return "vercel", true
	case SourceStripe:
		return "stripe", true
	case SourceSupabase:
		return "supabase", true
	case SourceGitHub:
		return "github", true
	}
	return "", false
}
