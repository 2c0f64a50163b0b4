package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
	"github.com/tracelight/tracelight/internal/pkg/metrics"
)

// Detection windows and thresholds.
const (
	noveltyWindow   = 7 * 24 * time.Hour
	spikeWindow     = time.Hour
	spikeMultiplier = 3.0

	// Monitors averaging under one failure per hour never trip the spike
	// rule; a couple of extra errors on a quiet monitor is noise.
	minBaselineRate = 1.0
)

// Escalation reasons.
const (
	ReasonNovelSignature = "new error type never seen before"
	ReasonRateSpike      = "error rate is 3x above baseline"
)

// Result is the detector's verdict on one event.
type Result struct {
	IsAnomaly      bool   `json:"is_anomaly"`
	Reason         string `json:"reason,omitempty"`
	ShouldEscalate bool   `json:"should_escalate"`
}

// Service implements the anomaly detector.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new detector service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Analyze classifies one event. Rules are evaluated in order and the first
// match wins: novel error signature, then rate spike. Events without a
// monitor back-reference are always routine.
func (s *Service) Analyze(ctx context.Context, event *domain.Event) (Result, error) {
	if event.MonitorID == nil {
		return Result{}, nil
	}
	monitorID := *event.MonitorID
	now := s.now()

	// Rule 1: novel signature. Only failure events carry signatures.
	if event.IsFailure() {
		pattern := NormalizePattern(event.Message)
		if pattern != "" {
			messages, err := s.repo.ListFailureMessages(ctx, monitorID, now.Add(-noveltyWindow), now, event.ID)
			if err != nil {
				return Result{}, fmt.Errorf("list failure messages: %w", err)
			}
			seen := false
			for _, msg := range messages {
				if strings.Contains(NormalizePattern(msg), pattern) {
					seen = true
					break
				}
			}
			if !seen {
				metrics.Escalations.WithLabelValues("novel_signature").Inc()
				return Result{IsAnomaly: true, Reason: ReasonNovelSignature, ShouldEscalate: true}, nil
			}
		}
	}

	// Rule 2: rate spike against the trailing-week baseline.
	recent, err := s.repo.CountRecentFailures(ctx, monitorID, now.Add(-spikeWindow))
	if err != nil {
		return Result{}, fmt.Errorf("count recent failures: %w", err)
	}

	baselineCount, err := s.repo.CountBaselineFailures(ctx, monitorID, now.Add(-noveltyWindow), now.Add(-spikeWindow))
	if err != nil {
		return Result{}, fmt.Errorf("count baseline failures: %w", err)
	}

	elapsed := (noveltyWindow - spikeWindow).Seconds()
	baselineRate := float64(baselineCount) / elapsed * 3600

	if baselineRate >= minBaselineRate && float64(recent) > spikeMultiplier*baselineRate {
		metrics.Escalations.WithLabelValues("rate_spike").Inc()
		return Result{IsAnomaly: true, Reason: ReasonRateSpike, ShouldEscalate: true}, nil
	}

	return Result{}, nil
}

// MarkForDiagnosis annotates the event's raw_data with the escalation flag
// and reason, and persists the annotation. The annotation is advisory; a
// write failure here must not block escalation.
func (s *Service) MarkForDiagnosis(ctx context.Context, event *domain.Event, reason string) {
	event.Annotate(domain.RawKeyAnomaly, true)
	event.Annotate(domain.RawKeyAnomalyReason, reason)

	if err := s.repo.UpdateEventRawData(ctx, event.ID, event.RawData); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to persist anomaly annotation",
			"event_id", event.ID,
			"error", err,
		)
	}
}

// Ingest validates and stores a new event.
func (s *Service) Ingest(ctx context.Context, event *domain.Event) error {
	if !event.Type.IsValid() {
		return fmt.Errorf("invalid event type: %s", event.Type)
	}
	if event.Severity == "" {
		event.Severity = domain.SeverityLow
	}
	if !event.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", event.Severity)
	}
	event.Message = strings.TrimSpace(event.Message)

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// RecentProjectEvents returns the working set consumed by correlation.
func (s *Service) RecentProjectEvents(ctx context.Context, projectID string, window time.Duration) ([]domain.Event, error) {
	return s.repo.ListRecentProjectEvents(ctx, projectID, s.now().Add(-window))
}

// GetEvent loads a stored event.
func (s *Service) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return s.repo.GetEvent(ctx, id)
}
