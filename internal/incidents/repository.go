// Package incidents owns the incident state machine and the escalation
// pipeline that feeds it.
package incidents

import (
	"context"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
)

// ListFilter narrows incident listings.
type ListFilter struct {
	ProjectID string
	Status    domain.IncidentStatus
	Limit     int
}

// Repository is the incident store.
type Repository interface {
	CreateIncident(ctx context.Context, incident *domain.Incident) error
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter ListFilter) ([]domain.Incident, error)

	// ListOpenIncidents returns every non-resolved incident for a project.
	ListOpenIncidents(ctx context.Context, projectID string) ([]domain.Incident, error)

	// AppendEvent adds an event id to an incident's ordered list. Appending
	// an id that is already present is a no-op, not an error.
	AppendEvent(ctx context.Context, incidentID, eventID string) error

	// AttachDiagnosis overwrites the diagnosis fields and severity and moves
	// an open incident to investigating. Resolved incidents are untouched;
	// the bool reports whether anything changed.
	AttachDiagnosis(ctx context.Context, id string, d *domain.Diagnosis) (bool, error)

	// Resolve moves an incident to resolved and stamps resolved_at. The bool
	// reports whether this call performed the transition; a second call on
	// the same incident returns false with no error.
	Resolve(ctx context.Context, id string, at time.Time) (bool, error)
}
