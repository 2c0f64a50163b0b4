package notifications

import "github.com/tracelight/tracelight/internal/domain"

// DeliveryPolicy decides whether a creation notification for a given
// severity goes out right away. Digesting or delayed delivery slots in here
// without touching the dispatch loop.
type DeliveryPolicy interface {
	SendNow(severity domain.Severity) bool
}

// ImmediateDelivery sends every severity immediately.
type ImmediateDelivery struct{}

// SendNow always returns true.
func (ImmediateDelivery) SendNow(domain.Severity) bool { return true }
