package port

import (
	"context"

	"signage-ads/internal/core/domain"
)

// CampaignRepository persists campaigns together with their ordered
// location set. It is an outbound port. Lookups of unknown ids return an
// error wrapping domain.ErrNotFound.
type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	// ListUserCampaigns returns every campaign owned by userID.
	ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error)
	// ListCampaignsByStatus returns campaigns whose status is one of statuses.
	ListCampaignsByStatus(ctx context.Context, statuses ...domain.CampaignStatus) ([]domain.Campaign, error)
	// ListFeedCandidates returns approved in-flight campaigns paired with the
	// owner's current subscription (nil when the owner has none).
	ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error)
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error
}

// SubscriptionRepository stores plan instances. Usage counters are only
// written through the Ledger.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, s *domain.Subscription) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// UpsertUser mirrors an account from the identity provider.
	UpsertUser(ctx context.Context, u *domain.User) error
	SetCurrentSubscription(ctx context.Context, userID, subscriptionID string) error
}

type LocationRepository interface {
	// GetLocations returns the locations for ids in the order given.
	GetLocations(ctx context.Context, ids []string) ([]domain.Location, error)
	ListUserLocations(ctx context.Context, userID string) ([]domain.Location, error)
	CreateLocation(ctx context.Context, l *domain.Location) error
}

// NotificationRepository stores inbox entries. Entries are never changed
// after creation except for the read flag.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	// ListNotifications returns entries addressed to userID, plus entries
	// addressed to role when role is admin, newest first.
	ListNotifications(ctx context.Context, userID string, role domain.Role) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string, role domain.Role) error
}

// Store groups every repository; both storage adapters implement it.
type Store interface {
	CampaignRepository
	SubscriptionRepository
	UserRepository
	LocationRepository
	NotificationRepository
	StatsRepository
	Ledger
}
