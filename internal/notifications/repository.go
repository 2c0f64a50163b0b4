// Package notifications fans incident transitions out to configured webhook
// channels under dedup and rate-limit policy.
package notifications

import (
	"context"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
)

// Repository persists channels and the append-only notification log.
type Repository interface {
	CreateChannel(ctx context.Context, channel *domain.NotificationChannel) error
	GetChannel(ctx context.Context, id string) (*domain.NotificationChannel, error)
	ListProjectChannels(ctx context.Context, projectID string) ([]domain.NotificationChannel, error)
	ListEnabledChannels(ctx context.Context, projectID string) ([]domain.NotificationChannel, error)
	SetChannelEnabled(ctx context.Context, id string, enabled bool) error
	DeleteChannel(ctx context.Context, id string) error

	// WasNotified reports whether a creation notification was already
	// logged for this channel and incident.
	WasNotified(ctx context.Context, channelID, incidentID string) (bool, error)

	// CountSentSince counts notifications logged for a channel at or after
	// since. Drives the trailing-hour rate limit.
	CountSentSince(ctx context.Context, channelID string, since time.Time) (int, error)

	// LogNotification appends one entry. Creation notifications only;
	// resolution sends are never logged.
	LogNotification(ctx context.Context, entry *domain.NotificationLogEntry) error
}
