package notifications

import (
	"context"
	"fmt"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
)

// Service manages notification channel configuration.
type Service struct {
	repo       Repository
	dispatcher *Dispatcher
}

// NewService creates a channel configuration service.
func NewService(repo Repository, dispatcher *Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher}
}

// CreateChannel stores a new channel. A type without a registered adapter is
// rejected here so misconfiguration surfaces immediately, not at dispatch.
func (s *Service) CreateChannel(ctx context.Context, channel *domain.NotificationChannel) error {
	if !s.dispatcher.Supports(channel.Type) {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannelType, channel.Type)
	}

	if err := s.repo.CreateChannel(ctx, channel); err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	ctxlog.FromContext(ctx).Info("notification channel created",
		"channel_id", channel.ID,
		"project_id", channel.ProjectID,
		"type", channel.Type,
	)
	return nil
}

// GetChannel loads one channel.
func (s *Service) GetChannel(ctx context.Context, id string) (*domain.NotificationChannel, error) {
	return s.repo.GetChannel(ctx, id)
}

// ListChannels lists a project's channels.
func (s *Service) ListChannels(ctx context.Context, projectID string) ([]domain.NotificationChannel, error) {
	return s.repo.ListProjectChannels(ctx, projectID)
}

// ToggleChannel flips a channel's enabled flag.
func (s *Service) ToggleChannel(ctx context.Context, id string, enabled bool) (*domain.NotificationChannel, error) {
	if err := s.repo.SetChannelEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return s.repo.GetChannel(ctx, id)
}

// DeleteChannel removes a channel.
func (s *Service) DeleteChannel(ctx context.Context, id string) error {
	return s.repo.DeleteChannel(ctx, id)
}

// TestChannel sends a sample notification through the channel's adapter.
func (s *Service) TestChannel(ctx context.Context, id string) error {
	channel, err := s.repo.GetChannel(ctx, id)
	if err != nil {
		return err
	}
	return s.dispatcher.TestChannel(ctx, channel)
}
