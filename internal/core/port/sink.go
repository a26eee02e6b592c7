package port

import (
	"context"

	"signage-ads/internal/core/domain"
)

// Realtime room names.
const AdminRoom = "admin"

// UserRoom returns the per-account room name.
func UserRoom(userID string) string { return "user_" + userID }

// Broadcaster pushes an event to every connection in a room. Delivery is
// fire-and-forget.
type Broadcaster interface {
	Emit(ctx context.Context, room, event string, payload any) error
}

// Mailer sends a templated transactional email.
type Mailer interface {
	Send(ctx context.Context, template string, to domain.User, data map[string]any) error
}

// EventPublisher fans a committed state change out to its sinks. It never
// reports sink failures to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// FeedInvalidator drops cached driver feed candidates.
type FeedInvalidator interface {
	InvalidateFeed(ctx context.Context) error
}

// Metrics records domain counters. NopMetrics discards everything.
type Metrics interface {
	CycleRecorded(duplicate bool)
	SubscriptionCompleted()
	LedgerRetryable()
	PropagationFailed(sink string)
	EligibilityEvaluated(outcome string, n int)
}

type NopMetrics struct{}

func (NopMetrics) CycleRecorded(bool) {}
func (NopMetrics) SubscriptionCompleted() {}
func (NopMetrics) LedgerRetryable() {}
func (NopMetrics) PropagationFailed(string) {}
func (NopMetrics) EligibilityEvaluated(string, int) {}
