// Package postgres provides the PostgreSQL implementation of the incident
// store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/incidents"
)

const defaultListLimit = 50

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `id, project_id, event_ids, correlation_group, status, severity,
	diagnosis_text, diagnosis_fix, fix_prompt, created_at, resolved_at`

// CreateIncident inserts a new incident.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	query := `
		INSERT INTO incidents (id, project_id, event_ids, correlation_group, status, severity,
			diagnosis_text, diagnosis_fix, fix_prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		incident.ID,
		incident.ProjectID,
		incident.EventIDs,
		incident.CorrelationGroup,
		incident.Status,
		incident.Severity,
		incident.DiagnosisText,
		incident.DiagnosisFix,
		incident.FixPrompt,
	).Scan(&incident.CreatedAt)
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE id = $1`, incidentColumns)

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents lists incidents for a project, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.ListFilter) ([]domain.Incident, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM incidents
		WHERE project_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, incidentColumns)

	rows, err := r.db.Query(ctx, query, filter.ProjectID, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

// ListOpenIncidents returns every non-resolved incident for a project.
func (r *Repository) ListOpenIncidents(ctx context.Context, projectID string) ([]domain.Incident, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM incidents
		WHERE project_id = $1 AND status <> 'resolved'
		ORDER BY created_at DESC
	`, incidentColumns)

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}
	defer rows.Close()

	return collectIncidents(rows)
}

// AppendEvent adds an event id to the incident's list unless already there.
func (r *Repository) AppendEvent(ctx context.Context, incidentID, eventID string) error {
	query := `
		UPDATE incidents
		SET event_ids = array_append(event_ids, $2)
		WHERE id = $1 AND NOT ($2 = ANY(event_ids))
	`
	result, err := r.db.Exec(ctx, query, incidentID, eventID)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Either the event is already attached or the incident is gone;
		// distinguish so callers see real not-found errors.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1)`, incidentID).Scan(&exists); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		if !exists {
			return incidents.ErrIncidentNotFound
		}
	}
	return nil
}

// AttachDiagnosis overwrites diagnosis fields on a non-resolved incident and
// moves it to investigating.
func (r *Repository) AttachDiagnosis(ctx context.Context, id string, d *domain.Diagnosis) (bool, error) {
	query := `
		UPDATE incidents
		SET status = 'investigating',
		    severity = $2,
		    diagnosis_text = $3,
		    diagnosis_fix = $4,
		    fix_prompt = $5
		WHERE id = $1 AND status <> 'resolved'
	`
	result, err := r.db.Exec(ctx, query, id, d.Severity, d.RootCause, d.SuggestedFix, d.FixPrompt)
	if err != nil {
		return false, fmt.Errorf("attach diagnosis: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Resolve transitions an incident to resolved exactly once.
func (r *Repository) Resolve(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE incidents
		SET status = 'resolved', resolved_at = $2
		WHERE id = $1 AND status <> 'resolved'
	`
	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("resolve incident: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("resolve incident: %w", err)
	}
	if !exists {
		return false, incidents.ErrIncidentNotFound
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.ProjectID,
		&incident.EventIDs,
		&incident.CorrelationGroup,
		&incident.Status,
		&incident.Severity,
		&incident.DiagnosisText,
		&incident.DiagnosisFix,
		&incident.FixPrompt,
		&incident.CreatedAt,
		&incident.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func collectIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *incident)
	}
	return out, rows.Err()
}
