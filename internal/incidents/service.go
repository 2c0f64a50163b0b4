package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tracelight/tracelight/internal/correlation"
	"github.com/tracelight/tracelight/internal/diagnosis"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/ctxlog"
	"github.com/tracelight/tracelight/internal/providers"
)

// workingSetWindow bounds the recent-event set handed to correlation. It
// must cover every correlation rule window.
const workingSetWindow = 10 * time.Minute

// EventSource supplies the recent-event working set for correlation.
type EventSource interface {
	RecentProjectEvents(ctx context.Context, projectID string, window time.Duration) ([]domain.Event, error)
}

// Correlator decides group membership for an escalating event.
type Correlator interface {
	Correlate(newEvent *domain.Event, recentEvents []domain.Event, openIncidents []domain.Incident, providerStatuses []domain.ProviderStatus) correlation.Result
}

// Notifier fans incident transitions out to configured channels.
type Notifier interface {
	Notify(ctx context.Context, incident *domain.Incident, events []domain.Event, provider *domain.ProviderContext) error
	NotifyResolution(ctx context.Context, incident *domain.Incident) error
}

// Service owns the incident state machine.
type Service struct {
	repo           Repository
	events         EventSource
	correlator     Correlator
	providerSource providers.Source
	generator      diagnosis.Generator
	notifier       Notifier
	locks          *projectLocks
	now            func() time.Time
}

// NewService creates an incident service. generator and notifier may be nil;
// the pipeline then skips diagnosis or notification.
func NewService(repo Repository, events EventSource, correlator Correlator, providerSource providers.Source, generator diagnosis.Generator, notifier Notifier) *Service {
	return &Service{
		repo:           repo,
		events:         events,
		correlator:     correlator,
		providerSource: providerSource,
		generator:      generator,
		notifier:       notifier,
		locks:          newProjectLocks(),
		now:            time.Now,
	}
}

// ProcessEscalation runs the full pipeline for one escalating event:
// correlate against the working set, create or augment an incident, attempt
// a diagnosis, then notify. Diagnosis and notification are best-effort; only
// store failures on the correlate/mutate path propagate.
func (s *Service) ProcessEscalation(ctx context.Context, event *domain.Event, reason string) (*domain.Incident, error) {
	logger := ctxlog.FromContext(ctx)

	recent, err := s.events.RecentProjectEvents(ctx, event.ProjectID, workingSetWindow)
	if err != nil {
		return nil, fmt.Errorf("load working set: %w", err)
	}

	var statuses []domain.ProviderStatus
	if s.providerSource != nil {
		statuses, err = s.providerSource.Statuses(ctx)
		if err != nil {
			logger.Warn("failed to load provider statuses", "error", err)
		}
	}

	incident, err := s.correlateAndMutate(ctx, event, recent, statuses)
	if err != nil {
		return nil, err
	}

	if s.generator != nil {
		s.tryDiagnose(ctx, incident, event, recent, statuses, reason)
	}

	if s.notifier != nil {
		provCtx := providerContextFor(incident.CorrelationGroup, statuses)
		if nerr := s.notifier.Notify(ctx, incident, s.incidentEvents(incident, event, recent), provCtx); nerr != nil {
			logger.Warn("notification dispatch failed", "incident_id", incident.ID, "error", nerr)
		}
	}

	return incident, nil
}

// correlateAndMutate holds the project lock across the correlate decision
// and the incident write, so two concurrent events cannot both open an
// incident for the same group.
func (s *Service) correlateAndMutate(ctx context.Context, event *domain.Event, recent []domain.Event, statuses []domain.ProviderStatus) (*domain.Incident, error) {
	logger := ctxlog.FromContext(ctx)

	unlock := s.locks.lock(event.ProjectID)
	defer unlock()

	open, err := s.repo.ListOpenIncidents(ctx, event.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}

	result := s.correlator.Correlate(event, recent, open, statuses)

	// A correlation group maps to at most one open incident. Rules that
	// name a group without resolving an incident (provider outage, first
	// payment pairing) still join the group's open incident when one
	// exists.
	if result.ExistingIncidentID == "" && result.Group != "" {
		for i := range open {
			if open[i].CorrelationGroup == result.Group {
				result.ExistingIncidentID = open[i].ID
				break
			}
		}
	}

	if result.ExistingIncidentID != "" {
		if err := s.repo.AppendEvent(ctx, result.ExistingIncidentID, event.ID); err != nil {
			return nil, fmt.Errorf("append event: %w", err)
		}
		incident, err := s.repo.GetIncident(ctx, result.ExistingIncidentID)
		if err != nil {
			return nil, fmt.Errorf("reload incident: %w", err)
		}
		logger.Info("event joined incident",
			"incident_id", incident.ID,
			"event_id", event.ID,
			"reason", result.Reason,
		)
		return incident, nil
	}

	incident := &domain.Incident{
		ProjectID:        event.ProjectID,
		EventIDs:         []string{event.ID},
		CorrelationGroup: result.Group,
		Status:           domain.IncidentStatusOpen,
		Severity:         event.Severity,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	logger.Info("incident created",
		"incident_id", incident.ID,
		"event_id", event.ID,
		"correlation_group", incident.CorrelationGroup,
	)
	return incident, nil
}

// tryDiagnose asks the generator for a root cause and attaches it. Any
// failure leaves the incident open with empty diagnosis fields.
func (s *Service) tryDiagnose(ctx context.Context, incident *domain.Incident, event *domain.Event, recent []domain.Event, statuses []domain.ProviderStatus, reason string) {
	logger := ctxlog.FromContext(ctx)

	req := diagnosis.Request{
		Events:           s.incidentEvents(incident, event, recent),
		RecentHistory:    recent,
		ProviderStatuses: statuses,
		EscalationReason: reason,
	}

	d, err := s.generator.Diagnose(ctx, req)
	if err != nil {
		logger.Warn("diagnosis generation failed", "incident_id", incident.ID, "error", err)
		return
	}

	changed, err := s.repo.AttachDiagnosis(ctx, incident.ID, d)
	if err != nil {
		logger.Warn("failed to attach diagnosis", "incident_id", incident.ID, "error", err)
		return
	}
	if !changed {
		return
	}

	incident.DiagnosisText = d.RootCause
	incident.DiagnosisFix = d.SuggestedFix
	incident.FixPrompt = d.FixPrompt
	incident.Severity = d.Severity
	if incident.Status == domain.IncidentStatusOpen {
		incident.Status = domain.IncidentStatusInvestigating
	}
}

// CreateIncident inserts a new open incident.
func (s *Service) CreateIncident(ctx context.Context, projectID string, eventIDs []string, group string, severity domain.Severity) (*domain.Incident, error) {
	incident := &domain.Incident{
		ProjectID:        projectID,
		EventIDs:         eventIDs,
		CorrelationGroup: group,
		Status:           domain.IncidentStatusOpen,
		Severity:         severity,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	return incident, nil
}

// AttachDiagnosis overwrites diagnosis fields and moves the incident to
// investigating. Attaching to a resolved incident is a silent no-op.
func (s *Service) AttachDiagnosis(ctx context.Context, id string, d *domain.Diagnosis) error {
	changed, err := s.repo.AttachDiagnosis(ctx, id, d)
	if err != nil {
		return err
	}
	if !changed {
		ctxlog.FromContext(ctx).Info("diagnosis dropped, incident already resolved", "incident_id", id)
	}
	return nil
}

// Resolve moves an incident to its terminal state and fires the resolution
// notification. Calling it again is idempotent: the incident keeps its first
// resolved_at and no second notification is sent.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.Incident, error) {
	transitioned, err := s.repo.Resolve(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if transitioned && s.notifier != nil {
		if nerr := s.notifier.NotifyResolution(ctx, incident); nerr != nil {
			ctxlog.FromContext(ctx).Warn("resolution notification failed", "incident_id", id, "error", nerr)
		}
	}

	return incident, nil
}

// GetIncident loads one incident.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// ListIncidents lists incidents for a project.
func (s *Service) ListIncidents(ctx context.Context, filter ListFilter) ([]domain.Incident, error) {
	return s.repo.ListIncidents(ctx, filter)
}

// incidentEvents resolves the incident's event ids against the working set.
// The triggering event is always present even when the store has not caught
// up with it yet.
func (s *Service) incidentEvents(incident *domain.Incident, event *domain.Event, recent []domain.Event) []domain.Event {
	byID := make(map[string]domain.Event, len(recent)+1)
	for _, e := range recent {
		byID[e.ID] = e
	}
	byID[event.ID] = *event

	out := make([]domain.Event, 0, len(incident.EventIDs))
	seen := false
	for _, id := range incident.EventIDs {
		if e, ok := byID[id]; ok {
			out = append(out, e)
			if id == event.ID {
				seen = true
			}
		}
	}
	if !seen {
		out = append(out, *event)
	}
	return out
}

func providerContextFor(group string, statuses []domain.ProviderStatus) *domain.ProviderContext {
	const prefix = "provider-"
	if !strings.HasPrefix(group, prefix) {
		return nil
	}
	provider := strings.TrimPrefix(group, prefix)
	pc := &domain.ProviderContext{IsProviderIssue: true, Provider: provider}
	for _, st := range statuses {
		if st.Provider == provider {
			pc.Status = string(st.Status)
			pc.Details = st.Details
			break
		}
	}
	return pc
}
