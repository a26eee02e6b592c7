package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signage-ads/internal/core/port"
)

// PlayStats returns per-campaign play counts for the owner in a period.
func (s *Store) PlayStats(ctx context.Context, req port.StatsReq) (*port.StatsResp, error) {
	args := []any{req.UserID, req.From, req.To}
	whereCampaign := ""
	if req.CampaignID != "" {
		whereCampaign = "AND p.campaign_id = $4"
		args = append(args, req.CampaignID)
	}
	query := fmt.Sprintf(`
        SELECT p.campaign_id, count(*)
        FROM plays p JOIN campaigns c ON c.id = p.campaign_id
        WHERE c.user_id = $1 AND p.played_at >= $2 AND p.played_at <= $3 %s
        GROUP BY p.campaign_id
        ORDER BY p.campaign_id`, whereCampaign)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	by, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (port.CampaignPlays, error) {
		var cp port.CampaignPlays
		err := row.Scan(&cp.CampaignID, &cp.Plays)
		return cp, err
	})
	if err != nil {
		return nil, err
	}

	resp := &port.StatsResp{From: req.From, To: req.To, ByCampaign: by}
	for _, cp := range by {
		resp.Plays += cp.Plays
	}
	return resp, nil
}
