// Package postgres provides the PostgreSQL implementation of the event
// store consumed by the detector and the escalation pipeline.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracelight/tracelight/internal/detector"
	"github.com/tracelight/tracelight/internal/domain"
)

// Repository implements detector.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts a new event.
func (r *Repository) CreateEvent(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	query := `
		INSERT INTO events (id, project_id, monitor_id, type, source, message, raw_data, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		event.ID,
		event.ProjectID,
		event.MonitorID,
		event.Type,
		event.Source,
		event.Message,
		event.RawData,
		event.Severity,
	).Scan(&event.CreatedAt)
}

// GetEvent retrieves an event by ID.
func (r *Repository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, project_id, monitor_id, type, source, message, raw_data, severity, created_at
		FROM events
		WHERE id = $1
	`
	var event domain.Event
	err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.ProjectID,
		&event.MonitorID,
		&event.Type,
		&event.Source,
		&event.Message,
		&event.RawData,
		&event.Severity,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, detector.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// UpdateEventRawData overwrites the raw_data annotation on an event.
func (r *Repository) UpdateEventRawData(ctx context.Context, id string, raw map[string]any) error {
	result, err := r.db.Exec(ctx, `UPDATE events SET raw_data = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("update event raw_data: %w", err)
	}
	if result.RowsAffected() == 0 {
		return detector.ErrEventNotFound
	}
	return nil
}

// ListRecentProjectEvents returns project events created at or after since,
// newest first.
func (r *Repository) ListRecentProjectEvents(ctx context.Context, projectID string, since time.Time) ([]domain.Event, error) {
	query := `
		SELECT id, project_id, monitor_id, type, source, message, raw_data, severity, created_at
		FROM events
		WHERE project_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		var event domain.Event
		err := rows.Scan(
			&event.ID,
			&event.ProjectID,
			&event.MonitorID,
			&event.Type,
			&event.Source,
			&event.Message,
			&event.RawData,
			&event.Severity,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// ListFailureMessages returns messages of error/down events for a monitor
// inside [from, to), excluding one event.
func (r *Repository) ListFailureMessages(ctx context.Context, monitorID string, from, to time.Time, excludeEventID string) ([]string, error) {
	query := `
		SELECT message
		FROM events
		WHERE monitor_id = $1
		  AND type IN ('error', 'down')
		  AND created_at >= $2 AND created_at < $3
		  AND id <> $4
	`
	rows, err := r.db.Query(ctx, query, monitorID, from, to, excludeEventID)
	if err != nil {
		return nil, fmt.Errorf("list failure messages: %w", err)
	}
	defer rows.Close()

	messages := make([]string, 0)
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// CountRecentFailures counts error/down events for a monitor since the given time.
func (r *Repository) CountRecentFailures(ctx context.Context, monitorID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM events
		WHERE monitor_id = $1
		  AND type IN ('error', 'down')
		  AND created_at >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, monitorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return count, nil
}

// CountBaselineFailures counts error/down events for a monitor inside [from, to).
func (r *Repository) CountBaselineFailures(ctx context.Context, monitorID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM events
		WHERE monitor_id = $1
		  AND type IN ('error', 'down')
		  AND created_at >= $2 AND created_at < $3
	`
	var count int
	err := r.db.QueryRow(ctx, query, monitorID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count baseline failures: %w", err)
	}
	return count, nil
}
