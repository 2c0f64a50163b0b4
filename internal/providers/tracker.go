package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
)

// Source yields the current provider health snapshot. Correlation consumes
// this read-only view.
type Source interface {
	Statuses(ctx context.Context) ([]domain.ProviderStatus, error)
}

// Tracker is the single source of truth for provider health. Writes go to
// the store and to an in-process cache so the hot correlation path does not
// hit the database per event.
type Tracker struct {
	repo Repository
	now  func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.ProviderStatus
}

// NewTracker creates a tracker with an empty cache. Call Warm once at
// startup to load persisted statuses.
func NewTracker(repo Repository) *Tracker {
	return &Tracker{
		repo:  repo,
		now:   time.Now,
		cache: make(map[string]domain.ProviderStatus),
	}
}

// Warm loads persisted statuses into the cache. A load failure is logged
// and leaves the cache empty; statuses repopulate on the next Set.
func (t *Tracker) Warm(ctx context.Context) {
	statuses, err := t.repo.ListStatuses(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to load provider statuses", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range statuses {
		t.cache[st.Provider] = st
	}
}

// Set records the health of a provider.
func (t *Tracker) Set(ctx context.Context, provider string, state domain.ProviderState, details string) (*domain.ProviderStatus, error) {
	status := &domain.ProviderStatus{
		Provider:      provider,
		Status:        state,
		LastCheckedAt: t.now(),
		Details:       details,
	}

	if err := t.repo.UpsertStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("upsert provider status: %w", err)
	}

	t.mu.Lock()
	t.cache[provider] = *status
	t.mu.Unlock()

	return status, nil
}

// Statuses returns the cached snapshot. The error return satisfies Source;
// the cache itself cannot fail.
func (t *Tracker) Statuses(_ context.Context) ([]domain.ProviderStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.ProviderStatus, 0, len(t.cache))
	for _, st := range t.cache {
		out = append(out, st)
	}
	return out, nil
}

// Get returns the cached status of one provider.
func (t *Tracker) Get(_ context.Context, provider string) (*domain.ProviderStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.cache[provider]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &st, nil
}
