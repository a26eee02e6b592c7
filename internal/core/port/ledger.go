package port

import (
	"context"

	"signage-ads/internal/core/domain"
)

// Ledger runs cycle bookkeeping as one unit per subscription. Calls for the
// same subscription id are serialized; the work in fn commits atomically or
// not at all. Implementations return an error wrapping
// domain.ErrLedgerRetryable when the unit could not be committed.
type Ledger interface {
	WithSubscription(ctx context.Context, subscriptionID string, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the view of the store inside a ledger unit. Writes become
// visible to other callers only when the unit commits.
type LedgerTx interface {
	// Subscription is the locked subscription. Callers mutate it and save
	// it with SaveSubscription.
	Subscription() *domain.Subscription
	// GetUser reads the user as the unit sees it, including a staged
	// subscription switch.
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error)
	// AppendPlay adds p to the play history. It returns false without
	// writing when a play with the same campaign and dedupe key exists.
	AppendPlay(ctx context.Context, p domain.Play) (bool, error)
	SaveCampaign(ctx context.Context, c *domain.Campaign) error
	// UpdateCampaign saves c together with its location set.
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error
	// SetCurrentSubscription points the user at another plan instance.
	SetCurrentSubscription(ctx context.Context, userID, subscriptionID string) error
	SaveSubscription(ctx context.Context, s *domain.Subscription) error
}
