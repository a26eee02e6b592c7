package domain

import "time"

// DefaultAllowedRadiusKm applies when a plan leaves AllowedRadius unset.
const DefaultAllowedRadiusKm = 500.0

// Subscription is a billing plan instance with its limits and the usage
// accumulated since the last reset.
type Subscription struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	PriceID             string     `json:"priceId"`
	RunCycleLimit       int        `json:"runCycleLimit"`
	CampaignLimit       int        `json:"campaignLimit"`
	LocationLimit       int        `json:"locationLimit"`
	AllowedRadius       float64    `json:"allowedRadius"`       // km
	AdCampaignTimeLimit int        `json:"adCampaignTimeLimit"` // days, 0 means unlimited
	CurrentCycles       int        `json:"currentCycles"`
	IsCompleted         bool       `json:"isCompleted"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Radius returns the allowed geofence radius in kilometers.
func (s *Subscription) Radius() float64 {
	if s.AllowedRadius <= 0 {
		return DefaultAllowedRadiusKm
	}
	return s.AllowedRadius
}

// Clone returns a deep copy of s.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	out := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
