package domain

import "time"

// IncidentStatus is the incident state machine. Transitions:
// open -> investigating (diagnosis attached) -> resolved (terminal).
// Resolve is also reachable directly from open.
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// Incident is a tracked, deduplicated problem grouping one or more events.
// The events list is append-only; a resolved incident is never reopened.
type Incident struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"project_id"`
	EventIDs         []string       `json:"event_ids"`
	CorrelationGroup string         `json:"correlation_group,omitempty"`
	Status           IncidentStatus `json:"status"`
	Severity         Severity       `json:"severity"`
	DiagnosisText    string         `json:"diagnosis_text,omitempty"`
	DiagnosisFix     string         `json:"diagnosis_fix,omitempty"`
	FixPrompt        string         `json:"fix_prompt,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
}

// IsResolved reports whether the incident reached its terminal state.
func (i *Incident) IsResolved() bool {
	return i.Status == IncidentStatusResolved
}

// Diagnosis is the opaque output of the diagnosis generator.
type Diagnosis struct {
	RootCause    string   `json:"root_cause"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix"`
	FixPrompt    string   `json:"fix_prompt"`
}
