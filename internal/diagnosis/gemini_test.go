package diagnosis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelight/tracelight/internal/domain"
)

func TestParseDiagnosis(t *testing.T) {
	text := `{"root_cause": "connection pool exhausted", "severity": "high", "suggested_fix": "raise max_conns", "fix_prompt": "Increase the pool size in config"}`

	d, err := parseDiagnosis(text)
	require.NoError(t, err)
	assert.Equal(t, "connection pool exhausted", d.RootCause)
	assert.Equal(t, domain.SeverityHigh, d.Severity)
	assert.Equal(t, "raise max_conns", d.SuggestedFix)
}

func TestParseDiagnosis_StripsCodeFence(t *testing.T) {
	text := "```json\n{\"root_cause\": \"bad deploy\", \"severity\": \"critical\", \"suggested_fix\": \"rollback\", \"fix_prompt\": \"Revert commit\"}\n```"

	d, err := parseDiagnosis(text)
	require.NoError(t, err)
	assert.Equal(t, "bad deploy", d.RootCause)
	assert.Equal(t, domain.SeverityCritical, d.Severity)
}

func TestParseDiagnosis_InvalidSeverityDefaultsToMedium(t *testing.T) {
	text := `{"root_cause": "unknown", "severity": "catastrophic", "suggested_fix": "", "fix_prompt": ""}`

	d, err := parseDiagnosis(text)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, d.Severity)
}

func TestParseDiagnosis_MissingRootCause(t *testing.T) {
	_, err := parseDiagnosis(`{"severity": "low"}`)
	require.Error(t, err)
}

func TestParseDiagnosis_NotJSON(t *testing.T) {
	_, err := parseDiagnosis("I think the database is down.")
	require.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	req := Request{
		MonitorName:      "checkout-api",
		EscalationReason: "error rate is 3x above baseline",
		Events: []domain.Event{
			{Type: domain.EventTypeError, Source: domain.SourceMonitor, Severity: domain.SeverityHigh, Message: "POST /checkout failed with 500"},
		},
		ProviderStatuses: []domain.ProviderStatus{
			{Provider: "stripe", Status: domain.ProviderDegraded, Details: "elevated API errors"},
			{Provider: "vercel", Status: domain.ProviderOperational},
		},
	}

	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "checkout-api")
	assert.Contains(t, prompt, "POST /checkout failed with 500")
	assert.Contains(t, prompt, "stripe: degraded")
	assert.NotContains(t, prompt, "vercel")
	assert.Contains(t, prompt, `"root_cause"`)
}

func TestBuildPrompt_CapsEventList(t *testing.T) {
	req := Request{Events: make([]domain.Event, 25)}

	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "and 15 more")
}

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	require.Error(t, err)
}
