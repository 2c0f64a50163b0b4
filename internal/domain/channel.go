package domain

import "time"

// ChannelType identifies a notification channel implementation. The set is
// open: new types are added by registering an adapter, not by editing a
// switch.
type ChannelType string

// Channel types with built-in adapters.
const (
	ChannelTypeDiscord ChannelType = "discord"
	ChannelTypeSlack   ChannelType = "slack"
)

// NotificationChannel is an external notification target configured per
// project.
type NotificationChannel struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	Type       ChannelType `json:"type"`
	WebhookURL string      `json:"webhook_url"`
	Enabled    bool        `json:"enabled"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NotificationLogEntry records one delivered creation notification. The log
// is append-only and exists solely to enforce the per-incident dedup and the
// trailing-hour rate limit.
type NotificationLogEntry struct {
	ChannelID  string    `json:"channel_id"`
	IncidentID string    `json:"incident_id"`
	SentAt     time.Time `json:"sent_at"`
}
