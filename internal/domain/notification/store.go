package notification

import (
	"context"
	"time"

	tmpl "outreach/internal/domain/template"
)

// LogStore defines the contract for persisting batch audit rows.
// Implementations live in infra/store/. The notification service is the only
// writer; rows are never updated after insert.
type LogStore interface {
	// Create inserts one log row for a completed batch.
	Create(ctx context.Context, log *NotificationLog) error

	// GetByBatchID retrieves a log row by its batch identifier.
	// Returns nil, nil if no row exists.
	GetByBatchID(ctx context.Context, batchID string) (*NotificationLog, error)

	// List retrieves log rows matching the filter, newest first, plus the
	// total row count for the filter.
	List(ctx context.Context, filter ListFilter) ([]*NotificationLog, int, error)

	// ListRange retrieves all rows in the date range for in-memory stats
	// aggregation. Either bound may be nil.
	ListRange(ctx context.Context, start, end *time.Time) ([]*NotificationLog, error)

	// DeleteOlderThan removes audit rows created before the cutoff and
	// returns how many were removed. Used only by the retention pruner.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TemplateSource supplies notification templates by name. The template
// domain owns writes; this service only reads.
type TemplateSource interface {
	// GetActiveByName returns nil, nil when no active template has the name.
	GetActiveByName(ctx context.Context, name string) (*tmpl.Template, error)
}

// Directory resolves people in the counselling programme's records. Both
// lookups are best-effort personalization/attribution aids; a miss returns
// empty, not an error.
type Directory interface {
	// DisplayName returns the recorded name for an email address, consulting
	// converts then counsellees.
	DisplayName(ctx context.Context, email string) (string, error)

	// UserEmail returns the email for an authenticated user ID.
	UserEmail(ctx context.Context, userID string) (string, error)
}

// SendRateLimiter caps how many batches an actor may dispatch per window.
// Implementations live in infra/ratelimit/.
type SendRateLimiter interface {
	// Allow reports whether the actor may dispatch another batch.
	Allow(ctx context.Context, actorKey string) (bool, error)
}
