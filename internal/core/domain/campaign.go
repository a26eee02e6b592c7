package domain

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	StatusPending   CampaignStatus = "pending"
	StatusApproved  CampaignStatus = "approved"
	StatusRejected  CampaignStatus = "rejected"
	StatusActive    CampaignStatus = "active"
	StatusScheduled CampaignStatus = "scheduled"
	StatusCompleted CampaignStatus = "completed"
	StatusPaused    CampaignStatus = "paused"
)

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusActive, StatusScheduled, StatusCompleted, StatusPaused:
		return true
	default:
		return false
	}
}

// InFlight reports whether campaigns in this status accumulate cycles and
// take part in the completion cascade.
func (s CampaignStatus) InFlight() bool {
	switch s {
	case StatusApproved, StatusActive, StatusScheduled:
		return true
	default:
		return false
	}
}

// MediaType is the kind of creative a campaign plays.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
)

// ApprovalStatus records the admin review outcome.
type ApprovalStatus struct {
	IsApproved      bool       `json:"isApproved"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
}

// Campaign is an advertising creative with a schedule, a set of geofenced
// locations and an owner. StartDateTime and EndDateTime are wall-clock
// strings interpreted in the operational timezone.
type Campaign struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	Name               string         `json:"name"`
	StartDateTime      string         `json:"startDateTime"`
	EndDateTime        string         `json:"endDateTime"`
	ApprovalStatus     ApprovalStatus `json:"approvalStatus"`
	Status             CampaignStatus `json:"status"`
	RunCycleCount      int            `json:"runCycleCount"`
	HasCompletedCycles bool           `json:"hasCompletedCycles"`
	Locations          []Location     `json:"locations"`
	MediaType          MediaType      `json:"mediaType"`
	MediaURL           string         `json:"mediaUrl"`
	MediaDuration      int            `json:"mediaDuration"` // seconds
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// LocationIDs returns the ids of the campaign locations in order.
func (c *Campaign) LocationIDs() []string {
	ids := make([]string, 0, len(c.Locations))
	for _, l := range c.Locations {
		ids = append(ids, l.ID)
	}
	return ids
}

// Clone returns a copy that shares no slices with c.
func (c Campaign) Clone() Campaign {
	out := c
	if c.Locations != nil {
		out.Locations = append([]Location(nil), c.Locations...)
	}
	if c.ApprovalStatus.ReviewedAt != nil {
		t := *c.ApprovalStatus.ReviewedAt
		out.ApprovalStatus.ReviewedAt = &t
	}
	return out
}

// Candidate is a campaign paired with the subscription that governs it.
// Subscription is nil when the owner has none. MaxRunCycleLimit mirrors
// Subscription.RunCycleLimit so callers can render "x/y cycles".
type Candidate struct {
	Campaign         Campaign      `json:"campaign"`
	Subscription     *Subscription `json:"subscription,omitempty"`
	MaxRunCycleLimit int           `json:"maxRunCycleLimit"`
}
