// Package correlation decides whether a noteworthy event joins an existing
// open incident or starts a new group.
package correlation

import (
	"fmt"
	"strings"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/metrics"
)

// Rule windows.
const (
	endpointWindow = 5 * time.Minute
	paymentWindow  = 2 * time.Minute
	burstWindow    = 2 * time.Minute

	// Monitor burst needs the new event's monitor plus failures from at
	// least two others.
	burstMinOtherMonitors = 2
)

// Correlation groups.
const (
	GroupPaymentCheckout = "payment-checkout-failure"
	groupProviderPrefix  = "provider-"
	groupEndpointPrefix  = "endpoint-"
	groupMultiFailPrefix = "multi-failure-"
)

// Result is the correlator's verdict on one event.
type Result struct {
	ShouldCorrelate    bool   `json:"should_correlate"`
	Group              string `json:"correlation_group,omitempty"`
	ExistingIncidentID string `json:"existing_incident_id,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

// Correlator applies the grouping heuristics. It holds no state; all inputs
// arrive per call so the caller controls the working-set windows.
type Correlator struct {
	now func() time.Time
}

// NewCorrelator creates a correlator.
func NewCorrelator() *Correlator {
	return &Correlator{now: time.Now}
}

// Correlate evaluates the rules in strict priority order; the first rule
// that applies wins and later rules are not consulted. recentEvents is the
// caller's working set for the event's project and must cover every rule
// window; openIncidents must exclude resolved incidents.
func (c *Correlator) Correlate(newEvent *domain.Event, recentEvents []domain.Event, openIncidents []domain.Incident, providerStatuses []domain.ProviderStatus) Result {
	if r, ok := c.matchProviderOutage(newEvent, providerStatuses); ok {
		metrics.CorrelationMatches.WithLabelValues("provider_outage").Inc()
		return r
	}
	if r, ok := c.matchSameEndpoint(newEvent, recentEvents, openIncidents); ok {
		metrics.CorrelationMatches.WithLabelValues("same_endpoint").Inc()
		return r
	}
	if r, ok := c.matchPaymentCheckout(newEvent, recentEvents, openIncidents); ok {
		metrics.CorrelationMatches.WithLabelValues("payment_checkout").Inc()
		return r
	}
	if r, ok := c.matchMonitorBurst(newEvent, recentEvents, openIncidents); ok {
		metrics.CorrelationMatches.WithLabelValues("monitor_burst").Inc()
		return r
	}
	return Result{}
}

// Rule 1: the event's source depends on a tracked provider that is currently
// degraded or down.
func (c *Correlator) matchProviderOutage(event *domain.Event, statuses []domain.ProviderStatus) (Result, bool) {
	provider, ok := domain.ProviderForSource(event.Source)
	if !ok {
		return Result{}, false
	}
	for _, st := range statuses {
		if st.Provider == provider && st.IsDisrupted() {
			return Result{
				ShouldCorrelate: true,
				Group:           groupProviderPrefix + provider,
				Reason:          fmt.Sprintf("provider %s is %s", provider, st.Status),
			}, true
		}
	}
	return Result{}, false
}

// Rule 2: another recent event resolves to the same endpoint. If that event
// already belongs to an open incident the new event joins it, otherwise a
// fresh endpoint group is started.
func (c *Correlator) matchSameEndpoint(event *domain.Event, recent []domain.Event, open []domain.Incident) (Result, bool) {
	endpoint := ExtractEndpoint(event)
	if endpoint == "" {
		return Result{}, false
	}
	// A match already tracked by an open incident wins over newer
	// unattached matches, so the event joins the incident instead of
	// starting a parallel group.
	cutoff := event.CreatedAt.Add(-endpointWindow)
	var unattached *domain.Event
	for i := range recent {
		other := &recent[i]
		if other.ID == event.ID || other.CreatedAt.Before(cutoff) {
			continue
		}
		if ExtractEndpoint(other) != endpoint {
			continue
		}
		if inc := incidentContaining(open, other.ID); inc != nil {
			return Result{
				ShouldCorrelate:    true,
				Group:              inc.CorrelationGroup,
				ExistingIncidentID: inc.ID,
				Reason:             fmt.Sprintf("same endpoint %s as event %s", endpoint, other.ID),
			}, true
		}
		if unattached == nil {
			unattached = other
		}
	}
	if unattached != nil {
		return Result{
			ShouldCorrelate: true,
			Group:           groupEndpointPrefix + endpoint,
			Reason:          fmt.Sprintf("same endpoint %s as event %s", endpoint, unattached.ID),
		}, true
	}
	return Result{}, false
}

// Rule 3: a stripe-sourced event and a checkout/payment error from another
// source within the window of each other. Symmetric: either side may arrive
// first.
func (c *Correlator) matchPaymentCheckout(event *domain.Event, recent []domain.Event, open []domain.Incident) (Result, bool) {
	newIsStripe := event.Source == domain.SourceStripe
	newIsCheckout := isPaymentError(event)
	if !newIsStripe && !newIsCheckout {
		return Result{}, false
	}
	cutoff := event.CreatedAt.Add(-paymentWindow)
	for i := range recent {
		other := &recent[i]
		if other.ID == event.ID || other.CreatedAt.Before(cutoff) {
			continue
		}
		paired := (newIsStripe && other.Source != domain.SourceStripe && isPaymentError(other)) ||
			(newIsCheckout && other.Source == domain.SourceStripe)
		if !paired {
			continue
		}
		result := Result{
			ShouldCorrelate: true,
			Group:           GroupPaymentCheckout,
			Reason:          fmt.Sprintf("payment failure paired with event %s", other.ID),
		}
		if inc := incidentContaining(open, other.ID); inc != nil {
			result.Group = inc.CorrelationGroup
			result.ExistingIncidentID = inc.ID
		}
		return result, true
	}
	return Result{}, false
}

// Rule 4: failures from three or more distinct monitors inside the window
// point at shared infrastructure rather than one service.
func (c *Correlator) matchMonitorBurst(event *domain.Event, recent []domain.Event, open []domain.Incident) (Result, bool) {
	if event.MonitorID == nil || !event.IsFailure() {
		return Result{}, false
	}
	cutoff := event.CreatedAt.Add(-burstWindow)
	otherMonitors := make(map[string]struct{})
	for i := range recent {
		other := &recent[i]
		if other.ID == event.ID || other.CreatedAt.Before(cutoff) {
			continue
		}
		if !other.IsFailure() || other.MonitorID == nil || *other.MonitorID == *event.MonitorID {
			continue
		}
		otherMonitors[*other.MonitorID] = struct{}{}
	}
	if len(otherMonitors) < burstMinOtherMonitors {
		return Result{}, false
	}

	reason := fmt.Sprintf("failures across %d monitors", len(otherMonitors)+1)
	for i := range open {
		if strings.HasPrefix(open[i].CorrelationGroup, groupMultiFailPrefix) {
			return Result{
				ShouldCorrelate:    true,
				Group:              open[i].CorrelationGroup,
				ExistingIncidentID: open[i].ID,
				Reason:             reason,
			}, true
		}
	}
	return Result{
		ShouldCorrelate: true,
		Group:           fmt.Sprintf("%s%d", groupMultiFailPrefix, c.now().Unix()),
		Reason:          reason,
	}, true
}

func incidentContaining(open []domain.Incident, eventID string) *domain.Incident {
	for i := range open {
		for _, id := range open[i].EventIDs {
			if id == eventID {
				return &open[i]
			}
		}
	}
	return nil
}

var paymentKeywords = []string{"checkout", "payment", "stripe"}

// isPaymentError reports whether a failure event looks payment-related,
// judged from its message and recovered endpoint.
func isPaymentError(event *domain.Event) bool {
	if !event.IsFailure() {
		return false
	}
	haystack := strings.ToLower(event.Message) + " " + ExtractEndpoint(event)
	for _, kw := range paymentKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
