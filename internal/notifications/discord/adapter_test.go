package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/notifications"
)

func samplePayload() notifications.Payload {
	return notifications.Payload{
		Incident: &domain.Incident{
			ID:            "inc-1",
			ProjectID:     "proj-1",
			Status:        domain.IncidentStatusInvestigating,
			Severity:      domain.SeverityCritical,
			DiagnosisText: "connection pool exhausted",
			DiagnosisFix:  "raise max_conns",
			FixPrompt:     "Increase the pool size in config",
			CreatedAt:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Events: []notifications.EventSummary{
			{Type: "error", Source: "monitor", Message: "POST /checkout failed with 500"},
		},
		Provider: &domain.ProviderContext{
			IsProviderIssue: true,
			Provider:        "stripe",
			Status:          "degraded",
			Details:         "elevated API errors",
		},
	}
}

func TestNewAdapter_Defaults(t *testing.T) {
	adapter := NewAdapter(Config{})

	assert.Equal(t, defaultUsername, adapter.config.Username)
	assert.Equal(t, defaultTimeout, adapter.config.Timeout)
	assert.NotNil(t, adapter.httpClient)
}

func TestAdapter_Type(t *testing.T) {
	assert.Equal(t, domain.ChannelTypeDiscord, NewAdapter(Config{}).Type())
}

func TestAdapter_Render(t *testing.T) {
	adapter := NewAdapter(Config{})

	body, err := adapter.Render(samplePayload())
	require.NoError(t, err)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Embeds, 1)

	e := payload.Embeds[0]
	assert.Contains(t, e.Title, "Incident detected")
	assert.Equal(t, "connection pool exhausted", e.Description)
	assert.Equal(t, notifications.SeverityColor(domain.SeverityCritical), e.Color)

	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Severity", "Status", "Provider outage", "Events", "Suggested fix", "Fix prompt"}, names)

	assert.Contains(t, e.Fields[2].Value, "Stripe is reporting degraded")
	assert.Contains(t, e.Fields[3].Value, "[error/monitor] POST /checkout failed with 500")
}

func TestAdapter_Render_TruncatesFixPrompt(t *testing.T) {
	adapter := NewAdapter(Config{})
	p := samplePayload()
	p.Incident.FixPrompt = strings.Repeat("x", 5000)

	body, err := adapter.Render(p)
	require.NoError(t, err)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	fields := payload.Embeds[0].Fields
	last := fields[len(fields)-1]
	assert.Equal(t, "Fix prompt", last.Name)
	assert.LessOrEqual(t, len([]rune(last.Value)), maxFieldLen)
}

func TestAdapter_RenderResolution(t *testing.T) {
	adapter := NewAdapter(Config{})
	p := samplePayload()
	resolvedAt := p.Incident.CreatedAt.Add(45 * time.Minute)
	p.Incident.Status = domain.IncidentStatusResolved
	p.Incident.ResolvedAt = &resolvedAt

	body, err := adapter.RenderResolution(p)
	require.NoError(t, err)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "✅ Incident resolved", payload.Embeds[0].Title)
	assert.Contains(t, payload.Embeds[0].Description, "45m0s")
	assert.Equal(t, colorResolved, payload.Embeds[0].Color)
}

func TestAdapter_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := NewAdapter(Config{})
	err := adapter.Send(context.Background(), server.URL, []byte(`{}`))
	assert.NoError(t, err)
}

func TestAdapter_Send_EmptyURL(t *testing.T) {
	adapter := NewAdapter(Config{})

	err := adapter.Send(context.Background(), "", []byte(`{}`))
	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.False(t, permErr.IsRetryable())
}

func TestAdapter_Send_WebhookGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewAdapter(Config{})
	err := adapter.Send(context.Background(), server.URL, []byte(`{}`))

	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, http.StatusNotFound, permErr.Code)
}

func TestAdapter_Send_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewAdapter(Config{})
	err := adapter.Send(context.Background(), server.URL, []byte(`{}`))

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.True(t, retryErr.IsRetryable())
}

func TestAdapter_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer server.Close()

	adapter := NewAdapter(Config{})
	err := adapter.Send(context.Background(), server.URL, []byte(`{}`))

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Contains(t, retryErr.Message, "server error")
}

func TestAdapter_Send_NetworkError(t *testing.T) {
	adapter := NewAdapter(Config{Timeout: 100 * time.Millisecond})

	err := adapter.Send(context.Background(), "http://localhost:59999", []byte(`{}`))

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.True(t, retryErr.IsRetryable())
}
