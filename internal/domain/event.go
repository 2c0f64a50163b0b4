package domain

import "time"

// EventType represents the kind of observation an event carries.
type EventType string

// Event types.
const (
	EventTypeError      EventType = "error"
	EventTypeSlow       EventType = "slow"
	EventTypeDown       EventType = "down"
	EventTypeUp         EventType = "up"
	EventTypeTraceError EventType = "trace_error"
	EventTypeSlowQuery  EventType = "slow_query"
)

// EventSource identifies which ingestion path produced an event.
type EventSource string

// Event sources.
const (
	SourceMonitor        EventSource = "monitor"
	SourceVercel         EventSource = "vercel"
	SourceStripe         EventSource = "stripe"
	SourceSupabase       EventSource = "supabase"
	SourceGitHub         EventSource = "github"
	SourceProviderStatus EventSource = "provider-status"
	SourceOTel           EventSource = "otel"
	SourceBrowser        EventSource = "browser"
)

// Severity represents event or incident impact.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Raw-data annotation keys written by the anomaly detector.
const (
	RawKeyAnomaly       = "anomaly"
	RawKeyAnomalyReason = "anomaly_reason"
	RawKeyEndpoint      = "endpoint"
)

// Event is one observed fact about a monitored application. Events are
// created by ingestion and never deleted here; the only mutation this core
// performs is the detector's raw_data annotation.
type Event struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	MonitorID *string        `json:"monitor_id,omitempty"`
	Type      EventType      `json:"type"`
	Source    EventSource    `json:"source"`
	Message   string         `json:"message"`
	RawData   map[string]any `json:"raw_data,omitempty"`
	Severity  Severity       `json:"severity"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsFailure reports whether the event signals a fault (error or down).
func (e *Event) IsFailure() bool {
	return e.Type == EventTypeError || e.Type == EventTypeDown
}

// Annotate sets a raw_data key, allocating the map on first use.
func (e *Event) Annotate(key string, value any) {
	if e.RawData == nil {
		e.RawData = make(map[string]any)
	}
	e.RawData[key] = value
}

// IsValid checks if the event type is valid.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeError, EventTypeSlow, EventTypeDown, EventTypeUp,
		EventTypeTraceError, EventTypeSlowQuery:
		return true
	}
	return false
}

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
