package port

import (
	"context"
	"time"

	"signage-ads/internal/core/domain"
)

// CampaignUseCase is the primary port for campaign management and the
// driver feed.
type CampaignUseCase interface {
	// Create stores a new pending campaign after checking it against the
	// owner's plan limits and notifies admins.
	Create(ctx context.Context, userID string, in CampaignInput) (*domain.Campaign, error)
	// Edit replaces the campaign content and sends it back to review.
	Edit(ctx context.Context, userID, id string, in CampaignInput) (*domain.Campaign, error)
	// Approve moves a pending campaign to active, scheduled or approved
	// depending on where now falls relative to its window.
	Approve(ctx context.Context, id string) (*domain.Campaign, error)
	Reject(ctx context.Context, id, reason string) (*domain.Campaign, error)
	List(ctx context.Context, userID string) ([]domain.Campaign, error)
	// ListByStatus lists every campaign in one of statuses, pending when
	// none are given.
	ListByStatus(ctx context.Context, statuses ...domain.CampaignStatus) ([]domain.Campaign, error)
	// DriverFeed returns the campaigns playable right now, without any
	// position filtering.
	DriverFeed(ctx context.Context) ([]domain.Candidate, error)
	// RefreshStatuses re-applies the approval-time rule to in-flight
	// campaigns and returns how many changed.
	RefreshStatuses(ctx context.Context) (int, error)
}

// LedgerUseCase records playback cycles and rewinds plan usage.
type LedgerUseCase interface {
	RecordCycle(ctx context.Context, req CycleRequest) (*CycleResult, error)
	ResetLedger(ctx context.Context, userID, subscriptionID, reason string) error
	// SwitchSubscription attaches a fresh plan instance to the user.
	SwitchSubscription(ctx context.Context, userID, subscriptionID, reason string) error
}

// SubscriptionUseCase covers plan creation and the events that attach a
// plan to an account.
type SubscriptionUseCase interface {
	CreatePlan(ctx context.Context, in PlanInput) (*domain.Subscription, error)
	PaymentSucceeded(ctx context.Context, in PaymentInput) error
	Gift(ctx context.Context, userID, subscriptionID string) error
	Reactivate(ctx context.Context, userID string) error
}

type LocationUseCase interface {
	List(ctx context.Context, userID string) ([]domain.Location, error)
	Create(ctx context.Context, userID string, in LocationInput) (*domain.Location, error)
}

// AccountUseCase mirrors identities verified by the HTTP layer into the
// user table.
type AccountUseCase interface {
	// Sync creates or refreshes the account and reports whether it was new.
	Sync(ctx context.Context, u domain.User) (*domain.User, bool, error)
}

type InboxUseCase interface {
	List(ctx context.Context, userID string, role domain.Role) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, role domain.Role, id string) error
}

// CampaignInput is the editable part of a campaign.
type CampaignInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	StartDateTime string           `json:"startDateTime" validate:"required"`
	EndDateTime   string           `json:"endDateTime" validate:"required"`
	LocationIDs   []string         `json:"locationIds" validate:"required,min=1,dive,required"`
	MediaType     domain.MediaType `json:"mediaType" validate:"required,oneof=video image"`
	MediaURL      string           `json:"mediaUrl" validate:"required,url"`
	MediaDuration int              `json:"mediaDuration" validate:"gte=0"`
}

type LocationInput struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Radius    float64 `json:"radius" validate:"gt=0"`
	State     string  `json:"state"`
}

type PlanInput struct {
	Name                string  `json:"name" validate:"required"`
	PriceID             string  `json:"priceId" validate:"required"`
	RunCycleLimit       int     `json:"runCycleLimit" validate:"gt=0"`
	CampaignLimit       int     `json:"campaignLimit" validate:"gt=0"`
	LocationLimit       int     `json:"locationLimit" validate:"gt=0"`
	AllowedRadius       float64 `json:"allowedRadius" validate:"gte=0"`
	AdCampaignTimeLimit int     `json:"adCampaignTimeLimit" validate:"gte=0"`
}

// PaymentInput is a billing provider payment that has already been
// verified upstream.
type PaymentInput struct {
	UserID         string `json:"userId" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	PaymentID      string `json:"paymentId"`
}

// CycleRequest reports one completed playback. PlayID makes retries
// idempotent; when empty, PlayedAt truncated to the second is used.
type CycleRequest struct {
	CampaignID string          `json:"-"`
	Position   domain.Position `json:"position"`
	PlayedAt   time.Time       `json:"playedAt"`
	PlayID     string          `json:"playId,omitempty"`
}

// CycleResult is the ledger state after a cycle.
type CycleResult struct {
	CampaignID            string                `json:"campaignId"`
	CampaignStatus        domain.CampaignStatus `json:"campaignStatus"`
	RunCycleCount         int                   `json:"runCycleCount"`
	CurrentCycles         int                   `json:"currentCycles"`
	RunCycleLimit         int                   `json:"runCycleLimit"`
	FirstCycle            bool                  `json:"firstCycle"`
	SubscriptionCompleted bool                  `json:"subscriptionCompleted"`
	Duplicate             bool                  `json:"duplicate"`
}
