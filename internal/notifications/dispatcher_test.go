package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelight/tracelight/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	channels    []domain.NotificationChannel
	log         []domain.NotificationLogEntry
	channelsErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{}
}

func (m *mockRepository) CreateChannel(_ context.Context, channel *domain.NotificationChannel) error {
	m.channels = append(m.channels, *channel)
	return nil
}

func (m *mockRepository) GetChannel(_ context.Context, id string) (*domain.NotificationChannel, error) {
	for i := range m.channels {
		if m.channels[i].ID == id {
			return &m.channels[i], nil
		}
	}
	return nil, ErrChannelNotFound
}

func (m *mockRepository) ListProjectChannels(_ context.Context, projectID string) ([]domain.NotificationChannel, error) {
	out := make([]domain.NotificationChannel, 0)
	for _, ch := range m.channels {
		if ch.ProjectID == projectID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockRepository) ListEnabledChannels(_ context.Context, projectID string) ([]domain.NotificationChannel, error) {
	if m.channelsErr != nil {
		return nil, m.channelsErr
	}
	out := make([]domain.NotificationChannel, 0)
	for _, ch := range m.channels {
		if ch.ProjectID == projectID && ch.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockRepository) SetChannelEnabled(_ context.Context, id string, enabled bool) error {
	for i := range m.channels {
		if m.channels[i].ID == id {
			m.channels[i].Enabled = enabled
			return nil
		}
	}
	return ErrChannelNotFound
}

func (m *mockRepository) DeleteChannel(_ context.Context, id string) error {
	for i := range m.channels {
		if m.channels[i].ID == id {
			m.channels = append(m.channels[:i], m.channels[i+1:]...)
			return nil
		}
	}
	return ErrChannelNotFound
}

func (m *mockRepository) WasNotified(_ context.Context, channelID, incidentID string) (bool, error) {
	for _, e := range m.log {
		if e.ChannelID == channelID && e.IncidentID == incidentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) CountSentSince(_ context.Context, channelID string, since time.Time) (int, error) {
	count := 0
	for _, e := range m.log {
		if e.ChannelID == channelID && !e.SentAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockRepository) LogNotification(_ context.Context, entry *domain.NotificationLogEntry) error {
	m.log = append(m.log, *entry)
	return nil
}

// mockAdapter implements Adapter for testing.
type mockAdapter struct {
	channelType     domain.ChannelType
	sends           []string
	resolutionSends int
	sendErr         error
}

func (m *mockAdapter) Type() domain.ChannelType { return m.channelType }

func (m *mockAdapter) Render(_ Payload) ([]byte, error) {
	return []byte(`{"kind":"creation"}`), nil
}

func (m *mockAdapter) RenderResolution(_ Payload) ([]byte, error) {
	return []byte(`{"kind":"resolution"}`), nil
}

func (m *mockAdapter) Send(_ context.Context, webhookURL string, body []byte) error {
	if string(body) == `{"kind":"resolution"}` {
		m.resolutionSends++
	} else {
		m.sends = append(m.sends, webhookURL)
	}
	return m.sendErr
}

func enabledChannel(id string, t domain.ChannelType) domain.NotificationChannel {
	return domain.NotificationChannel{
		ID:         id,
		ProjectID:  "proj-1",
		Type:       t,
		WebhookURL: "https://hooks.example.com/" + id,
		Enabled:    true,
	}
}

func openIncident() *domain.Incident {
	return &domain.Incident{
		ID:        "inc-1",
		ProjectID: "proj-1",
		Status:    domain.IncidentStatusOpen,
		Severity:  domain.SeverityHigh,
		CreatedAt: time.Now(),
	}
}

func TestDispatcher_Notify_SendsAndLogs(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{enabledChannel("ch-1", domain.ChannelTypeDiscord)}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{}, nil, adapter)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)

	assert.Len(t, adapter.sends, 1)
	require.Len(t, repo.log, 1)
	assert.Equal(t, "ch-1", repo.log[0].ChannelID)
	assert.Equal(t, "inc-1", repo.log[0].IncidentID)
}

func TestDispatcher_Notify_NoChannelsIsNoOp(t *testing.T) {
	repo := newMockRepository()
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{}, nil, adapter)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, adapter.sends)
}

func TestDispatcher_Notify_SkipsDisabledChannels(t *testing.T) {
	repo := newMockRepository()
	ch := enabledChannel("ch-1", domain.ChannelTypeDiscord)
	ch.Enabled = false
	repo.channels = []domain.NotificationChannel{ch}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{}, nil, adapter)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, adapter.sends)
}

func TestDispatcher_Notify_AtMostOncePerChannelAndIncident(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{enabledChannel("ch-1", domain.ChannelTypeDiscord)}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{}, nil, adapter)

	incident := openIncident()
	require.NoError(t, d.Notify(context.Background(), incident, nil, nil))
	require.NoError(t, d.Notify(context.Background(), incident, nil, nil))

	assert.Len(t, adapter.sends, 1)
	assert.Len(t, repo.log, 1)
}

func TestDispatcher_Notify_HourlyLimitSuppressesEleventh(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{enabledChannel("ch-1", domain.ChannelTypeDiscord)}
	now := time.Now()
	for i := 0; i < 10; i++ {
		repo.log = append(repo.log, domain.NotificationLogEntry{
			ChannelID:  "ch-1",
			IncidentID: "other",
			SentAt:     now.Add(-time.Duration(i) * time.Minute),
		})
	}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{HourlyLimit: 10}, nil, adapter)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, adapter.sends)
}

func TestDispatcher_Notify_LimitRollsOver(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{enabledChannel("ch-1", domain.ChannelTypeDiscord)}
	// All ten prior sends are older than the trailing hour.
	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 10; i++ {
		repo.log = append(repo.log, domain.NotificationLogEntry{
			ChannelID:  "ch-1",
			IncidentID: "other",
			SentAt:     old,
		})
	}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{HourlyLimit: 10}, nil, adapter)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, adapter.sends, 1)
}

func TestDispatcher_Notify_ChannelFailureDoesNotBlockOthers(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{
		enabledChannel("ch-1", domain.ChannelTypeDiscord),
		enabledChannel("ch-2", domain.ChannelTypeSlack),
	}
	failing := &mockAdapter{channelType: domain.ChannelTypeDiscord, sendErr: errors.New("webhook down")}
	healthy := &mockAdapter{channelType: domain.ChannelTypeSlack}
	d := NewDispatcher(repo, Config{}, nil, failing, healthy)

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.NoError(t, err)

	assert.Len(t, healthy.sends, 1)
	// Only the successful delivery is logged.
	require.Len(t, repo.log, 1)
	assert.Equal(t, "ch-2", repo.log[0].ChannelID)
}

func TestDispatcher_NotifyResolution_NotLogged(t *testing.T) {
	repo := newMockRepository()
	repo.channels = []domain.NotificationChannel{enabledChannel("ch-1", domain.ChannelTypeDiscord)}
	adapter := &mockAdapter{channelType: domain.ChannelTypeDiscord}
	d := NewDispatcher(repo, Config{}, nil, adapter)

	incident := openIncident()
	resolvedAt := time.Now()
	incident.Status = domain.IncidentStatusResolved
	incident.ResolvedAt = &resolvedAt

	require.NoError(t, d.NotifyResolution(context.Background(), incident))
	require.NoError(t, d.NotifyResolution(context.Background(), incident))

	// Resolution sends bypass the log; dedup is the resolver's job.
	assert.Equal(t, 2, adapter.resolutionSends)
	assert.Empty(t, repo.log)
}

func TestDispatcher_Notify_ChannelLookupFailurePropagates(t *testing.T) {
	repo := newMockRepository()
	repo.channelsErr = errors.New("db down")
	d := NewDispatcher(repo, Config{}, nil, &mockAdapter{channelType: domain.ChannelTypeDiscord})

	err := d.Notify(context.Background(), openIncident(), nil, nil)
	require.Error(t, err)
}

func TestDispatcher_TestChannel_UnsupportedType(t *testing.T) {
	repo := newMockRepository()
	d := NewDispatcher(repo, Config{}, nil)

	err := d.TestChannel(context.Background(), &domain.NotificationChannel{Type: "pager"})
	assert.ErrorIs(t, err, ErrUnsupportedChannelType)
}

func TestService_CreateChannel_UnsupportedTypeFailsFast(t *testing.T) {
	repo := newMockRepository()
	d := NewDispatcher(repo, Config{}, nil, &mockAdapter{channelType: domain.ChannelTypeDiscord})
	svc := NewService(repo, d)

	err := svc.CreateChannel(context.Background(), &domain.NotificationChannel{
		ProjectID:  "proj-1",
		Type:       "pager",
		WebhookURL: "https://hooks.example.com/x",
	})
	assert.ErrorIs(t, err, ErrUnsupportedChannelType)
	assert.Empty(t, repo.channels)
}

func TestBuildPayload_CapsEvents(t *testing.T) {
	events := make([]domain.Event, 8)
	for i := range events {
		events[i] = domain.Event{Type: domain.EventTypeError, Source: domain.SourceMonitor, Message: "boom"}
	}

	p := BuildPayload(openIncident(), events, nil)
	assert.Len(t, p.Events, 5)
}

func TestProviderDisplayName(t *testing.T) {
	assert.Equal(t, "Vercel", ProviderDisplayName("vercel"))
	assert.Equal(t, "GitHub", ProviderDisplayName("github"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("anything", 0))
}
