// Package slack renders and delivers incident notifications through Slack
// incoming webhooks using Block Kit.
package slack

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
	defaultTimeout = 10 * time.Second

	// Block Kit limits.
	maxHeaderLen  = 150
	maxSectionLen = 3000
)

// Config holds Slack adapter configuration.
type Config struct {
	Timeout time.Duration
}

// Adapter implements the Slack notification channel.
type Adapter struct {
	config     Config
	httpClient *http.Client
}

// NewAdapter creates a Slack adapter.
func NewAdapter(config Config) *Adapter {
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
	return domain.ChannelTypeSlack
}

type message struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type   string `json:"type"`
	Text   *text  `json:"text,omitempty"`
	Fields []text `json:"fields,omitempty"`
}

type text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Render builds the creation-notification Block Kit message.
func (a *Adapter) Render(p notifications.Payload) ([]byte, error) {
	inc := p.Incident

	blocks := []block{
		{
			Type: "header",
			Text: &text{
				Type:  "plain_text",
				Text:  notifications.Truncate(fmt.Sprintf("%s Incident detected", notifications.SeverityEmoji(inc.Severity)), maxHeaderLen),
				Emoji: true,
			},
		},
		{
			Type: "section",
			Fields: []text{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Severity:*\n%s", strings.ToUpper(string(inc.Severity)))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Opened:*\n%s", inc.CreatedAt.Format("2006-01-02 15:04:05 MST"))},
			},
		},
	}

	if p.Provider != nil && p.Provider.IsProviderIssue {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Provider outage:* %s", providerCallout(p.Provider))))
	}
	if inc.DiagnosisText != "" {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Root cause:*\n%s", inc.DiagnosisText)))
	}
	if len(p.Events) > 0 {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Events:*\n%s", eventList(p.Events))))
	}
	if inc.DiagnosisFix != "" {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Suggested fix:*\n%s", inc.DiagnosisFix)))
	}
	if inc.FixPrompt != "" {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Fix prompt:*\n```%s```", inc.FixPrompt)))
	}

	return json.Marshal(message{Blocks: blocks})
}

// RenderResolution builds the resolution Block Kit message.
func (a *Adapter) RenderResolution(p notifications.Payload) ([]byte, error) {
	inc := p.Incident

	blocks := []block{
		{
			Type: "header",
			Text: &text{Type: "plain_text", Text: "✅ Incident resolved", Emoji: true},
		},
	}
	if inc.ResolvedAt != nil {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("Resolved after %s.", inc.ResolvedAt.Sub(inc.CreatedAt).Round(time.Second))))
	}
	if inc.DiagnosisText != "" {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*Root cause:*\n%s", inc.DiagnosisText)))
	}

	return json.Marshal(message{Blocks: blocks})
}

// Send posts one rendered payload to a Slack webhook.
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
	case resp.StatusCode == http.StatusOK:
		return nil

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(respBody)),
		}

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		// Slack returns 403 for disabled and 410 for deleted webhooks.
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

func mrkdwnSection(body string) block {
	return block{
		Type: "section",
		Text: &text{Type: "mrkdwn", Text: notifications.Truncate(body, maxSectionLen)},
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
		fmt.Fprintf(&b, "• `[%s/%s]` %s", e.Type, e.Source, e.Message)
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
		return fmt.Sprintf("slack error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("slack error: %s", e.Message)
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
		return fmt.Sprintf("slack error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("slack error: %s", e.Message)
}

// IsRetryable returns true.
func (e *RetryableError) IsRetryable() bool { return true }
