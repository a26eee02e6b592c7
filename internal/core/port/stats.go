package port

import (
	"context"
	"time"
)

// StatsRepository aggregates play history.
type StatsRepository interface {
	// PlayStats counts plays of the owner's campaigns recorded within
	// [From, To], optionally for one campaign only.
	PlayStats(ctx context.Context, req StatsReq) (*StatsResp, error)
}

// StatsUseCase reports delivered playbacks to campaign owners.
type StatsUseCase interface {
	// GetStats returns aggregated plays for the owner's campaigns in the
	// period. A zero period means the last 30 days. Asking for another
	// owner's campaign is forbidden.
	GetStats(ctx context.Context, req StatsReq) (*StatsResp, error)
}

type StatsReq struct {
	UserID     string
	From       time.Time
	To         time.Time
	CampaignID string
}

// StatsResp contains play counts for a period. Plays is the total over
// ByCampaign.
type StatsResp struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Plays      int64           `json:"plays"`
	ByCampaign []CampaignPlays `json:"byCampaign"`
}

type CampaignPlays struct {
	CampaignID string `json:"campaignId"`
	Plays      int64  `json:"plays"`
}
