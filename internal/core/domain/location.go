package domain

import "time"

// Location is a geofence: a center and a radius in kilometers.
type Location struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Position is a device GPS sample.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Play is one entry of a campaign's play history. DedupeKey makes the
// append idempotent per campaign.
type Play struct {
	CampaignID string    `json:"campaignId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	PlayedAt   time.Time `json:"playedAt"`
	DedupeKey  string    `json:"-"`
}
