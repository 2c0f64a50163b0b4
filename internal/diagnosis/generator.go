// Package diagnosis produces root-cause analyses for incidents through an
// external model. Generation is best-effort: callers must tolerate errors
// and timeouts, leaving the incident undiagnosed.
package diagnosis

import (
	"context"

	"github.com/tracelight/tracelight/internal/domain"
)

// Request carries the incident context handed to the generator.
type Request struct {
	Events           []domain.Event
	MonitorName      string
	RecentHistory    []domain.Event
	ProviderStatuses []domain.ProviderStatus
	EscalationReason string
}

// Generator turns incident context into a structured diagnosis.
type Generator interface {
	Diagnose(ctx context.Context, req Request) (*domain.Diagnosis, error)
}
