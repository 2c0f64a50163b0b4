// Package postgres provides the PostgreSQL implementation of the channel
// and notification-log store.
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
	"github.com/tracelight/tracelight/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const channelColumns = `id, project_id, type, webhook_url, enabled, created_at, updated_at`

// CreateChannel inserts a new channel.
func (r *Repository) CreateChannel(ctx context.Context, channel *domain.NotificationChannel) error {
	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	query := `
		INSERT INTO notification_channels (id, project_id, type, webhook_url, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		channel.ID,
		channel.ProjectID,
		channel.Type,
		channel.WebhookURL,
		channel.Enabled,
	).Scan(&channel.CreatedAt, &channel.UpdatedAt)
}

// GetChannel retrieves a channel by ID.
func (r *Repository) GetChannel(ctx context.Context, id string) (*domain.NotificationChannel, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_channels WHERE id = $1`, channelColumns)

	var ch domain.NotificationChannel
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ch.ID,
		&ch.ProjectID,
		&ch.Type,
		&ch.WebhookURL,
		&ch.Enabled,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrChannelNotFound
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

// ListProjectChannels lists every channel of a project.
func (r *Repository) ListProjectChannels(ctx context.Context, projectID string) ([]domain.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notification_channels
		WHERE project_id = $1
		ORDER BY created_at
	`, channelColumns)
	return r.listChannels(ctx, query, projectID)
}

// ListEnabledChannels lists a project's enabled channels.
func (r *Repository) ListEnabledChannels(ctx context.Context, projectID string) ([]domain.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notification_channels
		WHERE project_id = $1 AND enabled
		ORDER BY created_at
	`, channelColumns)
	return r.listChannels(ctx, query, projectID)
}

func (r *Repository) listChannels(ctx context.Context, query, projectID string) ([]domain.NotificationChannel, error) {
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]domain.NotificationChannel, 0)
	for rows.Next() {
		var ch domain.NotificationChannel
		err := rows.Scan(
			&ch.ID,
			&ch.ProjectID,
			&ch.Type,
			&ch.WebhookURL,
			&ch.Enabled,
			&ch.CreatedAt,
			&ch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// SetChannelEnabled flips a channel's enabled flag.
func (r *Repository) SetChannelEnabled(ctx context.Context, id string, enabled bool) error {
	query := `
		UPDATE notification_channels
		SET enabled = $2, updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("toggle channel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrChannelNotFound
	}
	return nil
}

// DeleteChannel removes a channel and its log entries.
func (r *Repository) DeleteChannel(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notification_channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrChannelNotFound
	}
	return nil
}

// WasNotified reports whether a creation notification was logged for this
// channel and incident.
func (r *Repository) WasNotified(ctx context.Context, channelID, incidentID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM notification_log
			WHERE channel_id = $1 AND incident_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, channelID, incidentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check notification log: %w", err)
	}
	return exists, nil
}

// CountSentSince counts log entries for a channel at or after since.
func (r *Repository) CountSentSince(ctx context.Context, channelID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM notification_log
		WHERE channel_id = $1 AND sent_at >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, channelID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// LogNotification appends one log entry.
func (r *Repository) LogNotification(ctx context.Context, entry *domain.NotificationLogEntry) error {
	query := `
		INSERT INTO notification_log (channel_id, incident_id, sent_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.Exec(ctx, query, entry.ChannelID, entry.IncidentID, entry.SentAt); err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	return nil
}
