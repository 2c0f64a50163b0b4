// Package detector classifies incoming events as routine or noteworthy.
package detector

import (
	"context"
	"errors"
	"time"

	"github.com/tracelight/tracelight/internal/domain"
)

// Repository errors.
var ErrEventNotFound = errors.New("event not found")

// Repository is the event-store access the detector needs: the immutable
// event record plus three time-windowed counts per monitor.
type Repository interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	UpdateEventRawData(ctx context.Context, id string, raw map[string]any) error

	// ListRecentProjectEvents returns the correlation working set: all
	// events for a project created at or after since, newest first.
	ListRecentProjectEvents(ctx context.Context, projectID string, since time.Time) ([]domain.Event, error)

	// ListFailureMessages returns the messages of error/down events for a
	// monitor inside [from, to), excluding one event id. Signature matching
	// happens on the normalized form, so it is done caller-side.
	ListFailureMessages(ctx context.Context, monitorID string, from, to time.Time, excludeEventID string) ([]string, error)

	// CountRecentFailures counts error/down events for a monitor since the
	// given time.
	CountRecentFailures(ctx context.Context, monitorID string, since time.Time) (int, error)

	// CountBaselineFailures counts error/down events for a monitor inside
	// [from, to), used to derive the baseline hourly rate.
	CountBaselineFailures(ctx context.Context, monitorID string, from, to time.Time) (int, error)
}
