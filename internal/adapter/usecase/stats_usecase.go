package usecase

import (
	"context"
	"time"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

const defaultStatsPeriod = 30 * 24 * time.Hour

// StatsUseCase reports play counts to campaign owners.
type StatsUseCase struct {
	repo      port.StatsRepository
	campaigns port.CampaignRepository
	common
}

var _ port.StatsUseCase = (*StatsUseCase)(nil)

func NewStatsUseCase(repo port.StatsRepository, campaigns port.CampaignRepository, opts ...Option) *StatsUseCase {
	return &StatsUseCase{repo: repo, campaigns: campaigns, common: newCommon("stats", opts)}
}

// GetStats fills in the default period, checks ownership of a requested
// campaign and returns the aggregate.
func (u *StatsUseCase) GetStats(ctx context.Context, req port.StatsReq) (*port.StatsResp, error) {
	if req.UserID == "" {
		return nil, validation.Errorf("user id is required")
	}
	if req.To.IsZero() {
		req.To = u.now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-defaultStatsPeriod)
	}
	if req.From.After(req.To) {
		return nil, validation.Errorf("from must not be after to")
	}
	if req.CampaignID != "" {
		c, err := u.campaigns.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return nil, err
		}
		if c.UserID != req.UserID {
			return nil, domain.ErrForbidden
		}
	}
	return u.repo.PlayStats(ctx, req)
}
