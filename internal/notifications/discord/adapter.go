// Package discord renders and delivers incident notifications through
// Discord webhook embeds.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "Tracelight"

	// Discord embed limits.
	maxTitleLen       = 256
	maxDescriptionLen = 4096
	maxFieldLen       = 1024
)

// Accent colors.
const colorResolved = 0x2ECC71

// Config holds Discord adapter configuration. The webhook URL lives on the
// channel, so there is little to configure globally.
type Config struct {
	Username string
	Timeout  time.Duration
}

// Adapter implements the Discord notification channel.
type Adapter struct {
	config     Config
	httpClient *http.Client
}

// NewAdapter creates a Discord adapter.
func NewAdapter(config Config) *Adapter {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (a *Adapter) Type() domain.ChannelType {
	return domain.ChannelTypeDiscord
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Render builds the creation-notification embed.
func (a *Adapter) Render(p notifications.Payload) ([]byte, error) {
	inc := p.Incident

	e := embed{
		Title:     notifications.Truncate(fmt.Sprintf("%s Incident detected", notifications.SeverityEmoji(inc.Severity)), maxTitleLen),
		Color:     notifications.SeverityColor(inc.Severity),
		Timestamp: inc.CreatedAt.UTC().Format(time.RFC3339),
	}
	if inc.DiagnosisText != "" {
		e.Description = notifications.Truncate(inc.DiagnosisText, maxDescriptionLen)
	}

	e.Fields = append(e.Fields,
		embedField{Name: "Severity", Value: strings.ToUpper(string(inc.Severity)), Inline: true},
		embedField{Name: "Status", Value: string(inc.Status), Inline: true},
	)

	if p.Provider != nil && p.Provider.IsProviderIssue {
		e.Fields = append(e.Fields, embedField{
			Name:  "Provider outage",
			Value: notifications.Truncate(providerCallout(p.Provider), maxFieldLen),
		})
	}

	if len(p.Events) > 0 {
		e.Fields = append(e.Fields, embedField{
			Name:  "Events",
			Value: notifications.Truncate(eventList(p.Events), maxFieldLen),
		})
	}

	if inc.DiagnosisFix != "" {
		e.Fields = append(e.Fields, embedField{
			Name:  "Suggested fix",
			Value: notifications.Truncate(inc.DiagnosisFix, maxFieldLen),
		})
	}
	if inc.FixPrompt != "" {
		e.Fields = append(e.Fields, embedField{
			Name:  "Fix prompt",
			Value: notifications.Truncate(inc.FixPrompt, maxFieldLen),
		})
	}

	return json.Marshal(webhookPayload{
		Username: a.config.Username,
		Embeds:   []embed{e},
	})
}

// RenderResolution builds the resolution embed.
func (a *Adapter) RenderResolution(p notifications.Payload) ([]byte, error) {
	inc := p.Incident

	e := embed{
		Title: "✅ Incident resolved",
		Color: colorResolved,
	}
	if inc.ResolvedAt != nil {
		e.Timestamp = inc.ResolvedAt.UTC().Format(time.RFC3339)
		e.Description = fmt.Sprintf("Resolved after %s.", inc.ResolvedAt.Sub(inc.CreatedAt).Round(time.Second))
	}
	if inc.DiagnosisText != "" {
		e.Fields = append(e.Fields, embedField{
			Name:  "Root cause",
			Value: notifications.Truncate(inc.DiagnosisText, maxFieldLen),
		})
	}

	return json.Marshal(webhookPayload{
		Username: a.config.Username,
		Embeds:   []embed{e},
	})
}

// Send posts one rendered payload to a Discord webhook.
func (a *Adapter) Send(ctx context.Context, webhookURL string, body []byte) error {
	if webhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return a.handleResponse(resp)
}

func (a *Adapter) handleResponse(resp *http.Response) error {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(respBody)),
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "invalid or revoked webhook",
		}

	case resp.StatusCode == http.StatusNotFound:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "webhook not found",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", string(respBody)),
		}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}

func providerCallout(p *domain.ProviderContext) string {
	name := notifications.ProviderDisplayName(p.Provider)
	msg := fmt.Sprintf("%s is reporting %s.", name, p.Status)
	if p.Details != "" {
		msg += " " + p.Details
	}
	return msg
}

func eventList(events []notifications.EventSummary) string {
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• [%s/%s] %s", e.Type, e.Source, e.Message)
	}
	return b.String()
}

// PermanentError indicates a failure that will not succeed on retry.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("discord error: %s", e.Message)
}

// IsRetryable returns false.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary failure.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("discord error: %s", e.Message)
}

// IsRetryable returns true.
func (e *RetryableError) IsRetryable() bool { return true }
