package diagnosis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
	"google.golang.org/genai"
)

const (
	maxPromptEvents = 10

	defaultTimeout = 20 * time.Second
)

// GeminiConfig configures the Gemini-backed generator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini implements Generator against the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing diagnosis API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gemini{client: client, model: cfg.Model, timeout: timeout}, nil
}

// Diagnose sends the incident context to the model and parses its verdict.
func (g *Gemini) Diagnose(ctx context.Context, req Request) (*domain.Diagnosis, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := buildPrompt(req)
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("generate diagnosis: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("empty diagnosis response")
	}

	return parseDiagnosis(text)
}

func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are diagnosing a production incident for a web application.\n\n")
	if req.MonitorName != "" {
		fmt.Fprintf(&b, "Monitor: %s\n", req.MonitorName)
	}
	if req.EscalationReason != "" {
		fmt.Fprintf(&b, "Escalation reason: %s\n", req.EscalationReason)
	}

	b.WriteString("\nIncident events:\n")
	for i, e := range req.Events {
		if i >= maxPromptEvents {
			fmt.Fprintf(&b, "... and %d more\n", len(req.Events)-maxPromptEvents)
			break
		}
		fmt.Fprintf(&b, "- [%s/%s, severity %s] %s\n", e.Type, e.Source, e.Severity, e.Message)
	}

	if disrupted := disruptedProviders(req.ProviderStatuses); len(disrupted) > 0 {
		b.WriteString("\nUpstream provider status:\n")
		for _, p := range disrupted {
			fmt.Fprintf(&b, "- %s: %s %s\n", p.Provider, p.Status, p.Details)
		}
	}

	if len(req.RecentHistory) > 0 {
		fmt.Fprintf(&b, "\nThe project produced %d other events in the last 10 minutes.\n", len(req.RecentHistory))
	}

	b.WriteString(`
Respond with a single JSON object, no prose, with these keys:
  "root_cause": one-paragraph explanation of the most likely root cause
  "severity": one of "low", "medium", "high", "critical"
  "suggested_fix": concrete remediation steps for the on-call engineer
  "fix_prompt": a self-contained prompt a coding agent could use to fix the bug
`)

	return b.String()
}

func disruptedProviders(statuses []domain.ProviderStatus) []domain.ProviderStatus {
	out := make([]domain.ProviderStatus, 0, len(statuses))
	for _, p := range statuses {
		if p.IsDisrupted() {
			out = append(out, p)
		}
	}
	return out
}

// parseDiagnosis decodes the model output. Code fences are stripped first;
// models add them even when asked for bare JSON.
func parseDiagnosis(text string) (*domain.Diagnosis, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var d domain.Diagnosis
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("parse diagnosis: %w", err)
	}
	if d.RootCause == "" {
		return nil, fmt.Errorf("diagnosis missing root_cause")
	}
	if !d.Severity.IsValid() {
		d.Severity = domain.SeverityMedium
	}
	return &d, nil
}
