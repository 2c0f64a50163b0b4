// Package providers tracks the last known health of upstream providers.
package providers

import (
	"context"
	"errors"

	"github.com/tracelight/tracelight/internal/domain"
)

// Repository errors.
var ErrProviderNotFound = errors.New("provider not found")

// Repository persists provider health between restarts.
type Repository interface {
	UpsertStatus(ctx context.Context, status *domain.ProviderStatus) error
	GetStatus(ctx context.Context, provider string) (*domain.ProviderStatus, error)
	ListStatuses(ctx context.Context) ([]domain.ProviderStatus, error)
}
