package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
)

// Dispatcher defaults.
const (
	defaultSendTimeout = 10 * time.Second
	defaultHourlyLimit = 10
)

// Config holds dispatcher tuning.
type Config struct {
	// SendTimeout bounds one outbound webhook call so a slow endpoint
	// cannot stall delivery to other channels.
	SendTimeout time.Duration

	// HourlyLimit caps notifications per channel in a trailing hour.
	HourlyLimit int

	// OutboundPerSec and OutboundBurst pace webhook calls across all
	// channels. Zero disables pacing.
	OutboundPerSec float64
	OutboundBurst  int
}

// Dispatcher fans incident transitions out to a project's enabled channels.
// Each channel is handled independently; one channel's failure never blocks
// the others.
type Dispatcher struct {
	repo        Repository
	adapters    map[domain.ChannelType]Adapter
	policy      DeliveryPolicy
	limiter     *rate.Limiter
	sendTimeout time.Duration
	hourlyLimit int
	now         func() time.Time
}

// NewDispatcher creates a dispatcher over the given channel adapters.
func NewDispatcher(repo Repository, cfg Config, policy DeliveryPolicy, adapters ...Adapter) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.HourlyLimit <= 0 {
		cfg.HourlyLimit = defaultHourlyLimit
	}
	limit := rate.Inf
	burst := 0
	if cfg.OutboundPerSec > 0 {
		limit = rate.Limit(cfg.OutboundPerSec)
		burst = cfg.OutboundBurst
		if burst <= 0 {
			burst = 1
		}
	}
	if policy == nil {
		policy = ImmediateDelivery{}
	}

	adapterMap := make(map[domain.ChannelType]Adapter)
	for _, a := range adapters {
		adapterMap[a.Type()] = a
	}

	return &Dispatcher{
		repo:        repo,
		adapters:    adapterMap,
		policy:      policy,
		limiter:     rate.NewLimiter(limit, burst),
		sendTimeout: cfg.SendTimeout,
		hourlyLimit: cfg.HourlyLimit,
		now:         time.Now,
	}
}

// Supports reports whether an adapter is registered for a channel type.
// Channel creation checks this so a bad type fails at configuration time,
// not at dispatch time.
func (d *Dispatcher) Supports(t domain.ChannelType) bool {
	_, ok := d.adapters[t]
	return ok
}

// Notify sends a creation notification for an incident to every enabled
// channel of its project. Per-channel failures are logged and swallowed;
// only the channel lookup itself can fail the call.
func (d *Dispatcher) Notify(ctx context.Context, incident *domain.Incident, events []domain.Event, provider *domain.ProviderContext) error {
	channels, err := d.repo.ListEnabledChannels(ctx, incident.ProjectID)
	if err != nil {
		return fmt.Errorf("list enabled channels: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}

	payload := BuildPayload(incident, events, provider)
	logger := ctxlog.FromContext(ctx)

	for _, ch := range channels {
		d.deliverCreation(ctx, logger, ch, incident, payload)
	}
	return nil
}

// NotifyResolution sends the resolution notice. Resolution sends are not
// logged or deduplicated here; resolve's own idempotence ensures they fire
// at most once.
func (d *Dispatcher) NotifyResolution(ctx context.Context, incident *domain.Incident) error {
	channels, err := d.repo.ListEnabledChannels(ctx, incident.ProjectID)
	if err != nil {
		return fmt.Errorf("list enabled channels: %w", err)
	}

	payload := BuildPayload(incident, nil, nil)
	logger := ctxlog.FromContext(ctx)

	for _, ch := range channels {
		adapter, ok := d.adapters[ch.Type]
		if !ok {
			logger.Error("no adapter for channel type", "channel_id", ch.ID, "type", ch.Type)
			recordSkipped(string(ch.Type), "no_adapter")
			continue
		}

		body, err := adapter.RenderResolution(payload)
		if err != nil {
			logger.Error("failed to render resolution notification", "channel_id", ch.ID, "error", err)
			recordSent(string(ch.Type), "failed")
			continue
		}
		if err := d.send(ctx, adapter, ch.WebhookURL, body); err != nil {
			logger.Error("failed to send resolution notification",
				"channel_id", ch.ID,
				"incident_id", incident.ID,
				"error", err,
			)
			recordSent(string(ch.Type), "failed")
			continue
		}
		recordSent(string(ch.Type), "ok")
	}
	return nil
}

// TestChannel renders a sample incident and sends it to one channel.
func (d *Dispatcher) TestChannel(ctx context.Context, channel *domain.NotificationChannel) error {
	adapter, ok := d.adapters[channel.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannelType, channel.Type)
	}

	payload := BuildPayload(&domain.Incident{
		ID:            "test",
		ProjectID:     channel.ProjectID,
		Status:        domain.IncidentStatusOpen,
		Severity:      domain.SeverityLow,
		DiagnosisText: "This is a test notification.",
		CreatedAt:     d.now(),
	}, nil, nil)

	body, err := adapter.Render(payload)
	if err != nil {
		return fmt.Errorf("render test notification: %w", err)
	}
	return d.send(ctx, adapter, channel.WebhookURL, body)
}

func (d *Dispatcher) deliverCreation(ctx context.Context, logger *slog.Logger, ch domain.NotificationChannel, incident *domain.Incident, payload Payload) {
	adapter, ok := d.adapters[ch.Type]
	if !ok {
		logger.Error("no adapter for channel type", "channel_id", ch.ID, "type", ch.Type)
		recordSkipped(string(ch.Type), "no_adapter")
		return
	}

	if !d.policy.SendNow(incident.Severity) {
		recordSkipped(string(ch.Type), "deferred")
		return
	}

	sent, err := d.repo.WasNotified(ctx, ch.ID, incident.ID)
	if err != nil {
		logger.Error("failed to check notification log", "channel_id", ch.ID, "error", err)
		return
	}
	if sent {
		recordSkipped(string(ch.Type), "duplicate")
		return
	}

	count, err := d.repo.CountSentSince(ctx, ch.ID, d.now().Add(-time.Hour))
	if err != nil {
		logger.Error("failed to count recent notifications", "channel_id", ch.ID, "error", err)
		return
	}
	if count >= d.hourlyLimit {
		logger.Warn("channel rate limit reached",
			"channel_id", ch.ID,
			"incident_id", incident.ID,
			"sent_last_hour", count,
		)
		recordSkipped(string(ch.Type), "rate_limited")
		return
	}

	body, err := adapter.Render(payload)
	if err != nil {
		logger.Error("failed to render notification", "channel_id", ch.ID, "error", err)
		recordSent(string(ch.Type), "failed")
		return
	}

	if err := d.send(ctx, adapter, ch.WebhookURL, body); err != nil {
		logger.Error("failed to send notification",
			"channel_id", ch.ID,
			"incident_id", incident.ID,
			"error", err,
		)
		recordSent(string(ch.Type), "failed")
		return
	}
	recordSent(string(ch.Type), "ok")

	entry := &domain.NotificationLogEntry{
		ChannelID:  ch.ID,
		IncidentID: incident.ID,
		SentAt:     d.now(),
	}
	if err := d.repo.LogNotification(ctx, entry); err != nil {
		logger.Warn("failed to log notification", "channel_id", ch.ID, "error", err)
	}
}

func (d *Dispatcher) send(ctx context.Context, adapter Adapter, webhookURL string, body []byte) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("outbound pacing: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	err := adapter.Send(ctx, webhookURL, body)
	recordSendDuration(string(adapter.Type()), time.Since(start))
	return err
}
