package domain

import "time"

// EventKind enumerates the state changes that fan out to notifications,
// realtime rooms and email.
type EventKind string

const (
	EventWelcome            EventKind = "welcome"
	EventOTP                EventKind = "otp"
	EventPasswordReset      EventKind = "password_reset"
	EventChatMessageOffline EventKind = "chat_message_offline"

	EventCampaignCreated       EventKind = "campaign_created"
	EventCampaignApproved      EventKind = "campaign_approved"
	EventCampaignRejected      EventKind = "campaign_rejected"
	EventCampaignStatusChanged EventKind = "campaign_status_changed"

	EventCycleStarted           EventKind = "cycle_started"
	EventPlayedLocationsUpdated EventKind = "played_locations_updated"

	EventSubscriptionPurchased EventKind = "subscription_purchased"
	EventSubscriptionUpdated   EventKind = "subscription_updated"
	EventSubscriptionCompleted EventKind = "subscription_completed"
)

// Event is a committed state change. Recipient is the owning account and
// is nil for admin-only events.
type Event struct {
	Kind           EventKind      `json:"kind"`
	Recipient      *User          `json:"-"`
	CampaignID     string         `json:"campaignId,omitempty"`
	SubscriptionID string         `json:"subscriptionId,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
}
