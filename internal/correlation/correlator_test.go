package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tracelight/tracelight/internal/domain"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func testEvent(id string, source domain.EventSource, eventType domain.EventType, message string, age time.Duration) domain.Event {
	return domain.Event{
		ID:        id,
		ProjectID: "proj-1",
		Type:      eventType,
		Source:    source,
		Message:   message,
		Severity:  domain.SeverityMedium,
		CreatedAt: baseTime.Add(-age),
	}
}

func monitorEvent(id, monitorID string, eventType domain.EventType, message string, age time.Duration) domain.Event {
	e := testEvent(id, domain.SourceMonitor, eventType, message, age)
	e.MonitorID = strPtr(monitorID)
	return e
}

func TestCorrelator_ProviderOutage(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-1", domain.SourceVercel, domain.EventTypeError, "deployment failed", 0)
	statuses := []domain.ProviderStatus{
		{Provider: "vercel", Status: domain.ProviderOutage},
		{Provider: "stripe", Status: domain.ProviderOperational},
	}

	result := c.Correlate(&event, nil, nil, statuses)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "provider-vercel", result.Group)
	assert.Empty(t, result.ExistingIncidentID)
}

func TestCorrelator_ProviderOperationalNoMatch(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-1", domain.SourceVercel, domain.EventTypeError, "deployment failed", 0)
	statuses := []domain.ProviderStatus{{Provider: "vercel", Status: domain.ProviderOperational}}

	result := c.Correlate(&event, nil, nil, statuses)
	assert.False(t, result.ShouldCorrelate)
}

func TestCorrelator_ProviderOutageWinsOverEndpoint(t *testing.T) {
	c := NewCorrelator()

	// The event matches both the provider rule and the endpoint rule.
	// Priority is fixed: provider wins.
	event := testEvent("evt-1", domain.SourceVercel, domain.EventTypeError, "GET /api/orders failed", 0)
	recent := []domain.Event{
		testEvent("evt-0", domain.SourceMonitor, domain.EventTypeError, "GET /api/orders failed with 500", time.Minute),
	}
	statuses := []domain.ProviderStatus{{Provider: "vercel", Status: domain.ProviderDegraded}}

	result := c.Correlate(&event, recent, nil, statuses)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "provider-vercel", result.Group)
}

func TestCorrelator_SameEndpointJoinsOpenIncident(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-2", domain.SourceMonitor, domain.EventTypeError, "GET /api/orders failed with 500", 0)
	recent := []domain.Event{
		testEvent("evt-1", domain.SourceVercel, domain.EventTypeError, "timeout on https://shop.example.com/api/orders", 2*time.Minute),
	}
	open := []domain.Incident{{
		ID:               "inc-1",
		EventIDs:         []string{"evt-1"},
		CorrelationGroup: "endpoint-/api/orders",
		Status:           domain.IncidentStatusOpen,
	}}

	result := c.Correlate(&event, recent, open, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "inc-1", result.ExistingIncidentID)
	assert.Equal(t, "endpoint-/api/orders", result.Group)
}

func TestCorrelator_SameEndpointPrefersIncidentOverNewerMatch(t *testing.T) {
	c := NewCorrelator()

	// Both recent events resolve to /api/users; only the older one belongs
	// to an open incident. The newer unattached match must not shadow it.
	event := testEvent("evt-3", domain.SourceMonitor, domain.EventTypeError, "GET /api/users failed with 500", 0)
	recent := []domain.Event{
		testEvent("evt-2", domain.SourceBrowser, domain.EventTypeError, "fetch /api/users returned 502", 30*time.Second),
		testEvent("evt-1", domain.SourceVercel, domain.EventTypeError, "timeout on https://shop.example.com/api/users", 2*time.Minute),
	}
	open := []domain.Incident{{
		ID:               "inc-1",
		EventIDs:         []string{"evt-1"},
		CorrelationGroup: "endpoint-/api/users",
		Status:           domain.IncidentStatusOpen,
	}}

	result := c.Correlate(&event, recent, open, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "inc-1", result.ExistingIncidentID)
	assert.Equal(t, "endpoint-/api/users", result.Group)
}

func TestCorrelator_SameEndpointFreshGroup(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-2", domain.SourceMonitor, domain.EventTypeError, "GET /api/orders failed with 500", 0)
	recent := []domain.Event{
		testEvent("evt-1", domain.SourceBrowser, domain.EventTypeError, "fetch /api/orders returned 502", 3*time.Minute),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "endpoint-/api/orders", result.Group)
	assert.Empty(t, result.ExistingIncidentID)
}

func TestCorrelator_SameEndpointOutsideWindow(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-2", domain.SourceMonitor, domain.EventTypeError, "GET /api/orders failed with 500", 0)
	recent := []domain.Event{
		testEvent("evt-1", domain.SourceBrowser, domain.EventTypeError, "fetch /api/orders returned 502", 6*time.Minute),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.False(t, result.ShouldCorrelate)
}

func TestCorrelator_PaymentCheckout(t *testing.T) {
	c := NewCorrelator()

	// Scenario: a stripe webhook error lands 30 seconds after the monitor
	// saw the checkout endpoint fail.
	event := testEvent("evt-2", domain.SourceStripe, domain.EventTypeError, "charge declined: card_error", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeError, "POST /checkout failed with 500", 30*time.Second),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, GroupPaymentCheckout, result.Group)
}

func TestCorrelator_PaymentCheckoutSymmetric(t *testing.T) {
	c := NewCorrelator()

	// Same pair, arrival order reversed.
	event := monitorEvent("evt-2", "mon-1", domain.EventTypeError, "POST /checkout failed with 500", 0)
	recent := []domain.Event{
		testEvent("evt-1", domain.SourceStripe, domain.EventTypeError, "charge declined: card_error", 45*time.Second),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, GroupPaymentCheckout, result.Group)
}

func TestCorrelator_PaymentCheckoutJoinsExistingIncident(t *testing.T) {
	c := NewCorrelator()

	event := testEvent("evt-2", domain.SourceStripe, domain.EventTypeError, "payment_intent failed", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeError, "POST /checkout failed with 500", time.Minute),
	}
	open := []domain.Incident{{
		ID:               "inc-7",
		EventIDs:         []string{"evt-1"},
		CorrelationGroup: GroupPaymentCheckout,
		Status:           domain.IncidentStatusOpen,
	}}

	result := c.Correlate(&event, recent, open, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "inc-7", result.ExistingIncidentID)
}

func TestCorrelator_MonitorBurst(t *testing.T) {
	c := NewCorrelator()

	// Three monitors go down within 90 seconds; the third event correlates
	// into a fresh multi-failure group covering all of them.
	event := monitorEvent("evt-3", "mon-3", domain.EventTypeDown, "no response", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeDown, "no response", 90*time.Second),
		monitorEvent("evt-2", "mon-2", domain.EventTypeDown, "no response", 40*time.Second),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Contains(t, result.Group, "multi-failure-")
	assert.Empty(t, result.ExistingIncidentID)
}

func TestCorrelator_MonitorBurstReusesOpenGroup(t *testing.T) {
	c := NewCorrelator()

	event := monitorEvent("evt-4", "mon-4", domain.EventTypeDown, "no response", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeDown, "no response", time.Minute),
		monitorEvent("evt-2", "mon-2", domain.EventTypeDown, "no response", 30*time.Second),
	}
	open := []domain.Incident{{
		ID:               "inc-3",
		EventIDs:         []string{"evt-1", "evt-2"},
		CorrelationGroup: "multi-failure-1770000000",
		Status:           domain.IncidentStatusOpen,
	}}

	result := c.Correlate(&event, recent, open, nil)
	assert.True(t, result.ShouldCorrelate)
	assert.Equal(t, "inc-3", result.ExistingIncidentID)
	assert.Equal(t, "multi-failure-1770000000", result.Group)
}

func TestCorrelator_TwoMonitorsIsNotABurst(t *testing.T) {
	c := NewCorrelator()

	event := monitorEvent("evt-2", "mon-2", domain.EventTypeDown, "no response", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeDown, "no response", time.Minute),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.False(t, result.ShouldCorrelate)
}

func TestCorrelator_SameMonitorRepeatsDoNotCount(t *testing.T) {
	c := NewCorrelator()

	event := monitorEvent("evt-3", "mon-1", domain.EventTypeDown, "no response", 0)
	recent := []domain.Event{
		monitorEvent("evt-1", "mon-1", domain.EventTypeDown, "no response", time.Minute),
		monitorEvent("evt-2", "mon-1", domain.EventTypeDown, "no response", 30*time.Second),
	}

	result := c.Correlate(&event, recent, nil, nil)
	assert.False(t, result.ShouldCorrelate)
}

func TestCorrelator_NoRuleMatched(t *testing.T) {
	c := NewCorrelator()

	event := monitorEvent("evt-1", "mon-1", domain.EventTypeError, "unhandled exception in worker", 0)

	result := c.Correlate(&event, nil, nil, nil)
	assert.False(t, result.ShouldCorrelate)
	assert.Empty(t, result.Group)
}

func TestExtractEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		event    domain.Event
		expected string
	}{
		{
			name: "structured field wins",
			event: domain.Event{
				Message: "GET /api/other failed",
				RawData: map[string]any{"endpoint": "/api/orders"},
			},
			expected: "/api/orders",
		},
		{
			name:     "url in message",
			event:    domain.Event{Message: "timeout on https://shop.example.com/api/orders?id=5"},
			expected: "/api/orders",
		},
		{
			name:     "path pattern in message",
			event:    domain.Event{Message: "POST /checkout/session failed with 500"},
			expected: "/checkout/session",
		},
		{
			name:     "no endpoint",
			event:    domain.Event{Message: "worker crashed"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractEndpoint(&tt.event))
		})
	}
}
