package notifications

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tracelight/tracelight/internal/domain"
)

// maxPayloadEvents caps how many correlated events ride along in one
// notification.
const maxPayloadEvents = 5

// EventSummary is the per-event slice of a notification payload.
type EventSummary struct {
	Type    string
	Source  string
	Message string
}

// Payload is the channel-independent notification content. Adapters render
// it into their platform's wire format.
type Payload struct {
	Incident *domain.Incident
	Events   []EventSummary
	Provider *domain.ProviderContext
}

// BuildPayload assembles a payload, capping the event list.
func BuildPayload(incident *domain.Incident, events []domain.Event, provider *domain.ProviderContext) Payload {
	summaries := make([]EventSummary, 0, maxPayloadEvents)
	for _, e := range events {
		if len(summaries) == maxPayloadEvents {
			break
		}
		summaries = append(summaries, EventSummary{
			Type:    string(e.Type),
			Source:  string(e.Source),
			Message: e.Message,
		})
	}
	return Payload{Incident: incident, Events: summaries, Provider: provider}
}

// SeverityEmoji returns the marker shown next to an incident title.
func SeverityEmoji(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "🚨"
	case domain.SeverityHigh:
		return "🔴"
	case domain.SeverityMedium:
		return "🟡"
	default:
		return "🔵"
	}
}

// SeverityColor returns the embed accent color for a severity.
func SeverityColor(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 0x992D22
	case domain.SeverityHigh:
		return 0xE74C3C
	case domain.SeverityMedium:
		return 0xF1C40F
	default:
		return 0x3498DB
	}
}

var titleCaser = cases.Title(language.English)

// ProviderDisplayName renders a tracked provider name for humans.
func ProviderDisplayName(provider string) string {
	if provider == "github" {
		return "GitHub"
	}
	return titleCaser.String(provider)
}

// Truncate cuts s to max runes, marking the cut with an ellipsis. Platform
// field-size limits are enforced with this at render time.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
