package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelight/tracelight/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	stored    map[string]domain.ProviderStatus
	upsertErr error
	listErr   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{stored: make(map[string]domain.ProviderStatus)}
}

func (m *mockRepository) UpsertStatus(_ context.Context, status *domain.ProviderStatus) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.stored[status.Provider] = *status
	return nil
}

func (m *mockRepository) GetStatus(_ context.Context, provider string) (*domain.ProviderStatus, error) {
	st, ok := m.stored[provider]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &st, nil
}

func (m *mockRepository) ListStatuses(_ context.Context) ([]domain.ProviderStatus, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.ProviderStatus, 0, len(m.stored))
	for _, st := range m.stored {
		out = append(out, st)
	}
	return out, nil
}

func TestTracker_SetAndGet(t *testing.T) {
	repo := newMockRepository()
	tracker := NewTracker(repo)

	status, err := tracker.Set(context.Background(), "vercel", domain.ProviderOutage, "deploys failing")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOutage, status.Status)
	assert.False(t, status.LastCheckedAt.IsZero())

	got, err := tracker.Get(context.Background(), "vercel")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOutage, got.Status)
	assert.Equal(t, "deploys failing", got.Details)

	// The write reached the store too.
	assert.Contains(t, repo.stored, "vercel")
}

func TestTracker_GetUnknownProvider(t *testing.T) {
	tracker := NewTracker(newMockRepository())

	_, err := tracker.Get(context.Background(), "vercel")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestTracker_SetUpsertFailureLeavesCacheUntouched(t *testing.T) {
	repo := newMockRepository()
	repo.upsertErr = errors.New("connection reset")
	tracker := NewTracker(repo)

	_, err := tracker.Set(context.Background(), "stripe", domain.ProviderDegraded, "")
	require.Error(t, err)

	_, err = tracker.Get(context.Background(), "stripe")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestTracker_WarmLoadsPersistedStatuses(t *testing.T) {
	repo := newMockRepository()
	repo.stored["supabase"] = domain.ProviderStatus{Provider: "supabase", Status: domain.ProviderDegraded}

	tracker := NewTracker(repo)
	tracker.Warm(context.Background())

	statuses, err := tracker.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "supabase", statuses[0].Provider)
}

func TestTracker_WarmFailureIsNonFatal(t *testing.T) {
	repo := newMockRepository()
	repo.listErr = errors.New("relation does not exist")

	tracker := NewTracker(repo)
	tracker.Warm(context.Background())

	statuses, err := tracker.Statuses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
