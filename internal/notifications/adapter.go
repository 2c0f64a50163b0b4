package notifications

import (
	"context"

	"github.com/tracelight/tracelight/internal/domain"
)

// Adapter is one channel implementation. Render turns a payload into the
// platform's wire format; Send performs one webhook POST. New channel types
// register an adapter instead of growing a switch anywhere.
type Adapter interface {
	Type() domain.ChannelType
	Render(p Payload) ([]byte, error)
	RenderResolution(p Payload) ([]byte, error)
	Send(ctx context.Context, webhookURL string, body []byte) error
}
