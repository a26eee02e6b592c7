package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"signage-ads/internal/core/domain"
)

const campaignColumns = `c.id, c.user_id, c.name, c.start_date_time, c.end_date_time, c.is_approved, c.reviewed_at,
	c.rejection_reason, c.status, c.run_cycle_count, c.has_completed_cycles, c.media_type, c.media_url,
	c.media_duration, c.created_at, c.updated_at`

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.StartDateTime,
		&c.EndDateTime,
		&c.ApprovalStatus.IsApproved,
		&c.ApprovalStatus.ReviewedAt,
		&c.ApprovalStatus.RejectionReason,
		&c.Status,
		&c.RunCycleCount,
		&c.HasCompletedCycles,
		&c.MediaType,
		&c.MediaURL,
		&c.MediaDuration,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// queryCampaigns runs a campaign select and attaches the ordered locations.
func queryCampaigns(ctx context.Context, q querier, sql string, args ...any) ([]domain.Campaign, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	campaigns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		return scanCampaign(row)
	})
	if err != nil {
		return nil, err
	}
	if err = attachLocations(ctx, q, campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func attachLocations(ctx context.Context, q querier, campaigns []domain.Campaign) error {
	if len(campaigns) == 0 {
		return nil
	}
	ids := make([]string, len(campaigns))
	index := make(map[string]int, len(campaigns))
	for i, c := range campaigns {
		ids[i] = c.ID
		index[c.ID] = i
	}
	rows, err := q.Query(ctx, `
        SELECT cl.campaign_id, l.id, l.user_id, l.name, l.latitude, l.longitude, l.radius, l.state, l.created_at
        FROM campaign_locations cl
        JOIN locations l ON l.id = cl.location_id
        WHERE cl.campaign_id = ANY($1)
        ORDER BY cl.campaign_id, cl.position`, ids)
	if err != nil {
		return err
	}
	type linked struct {
		campaignID string
		loc        domain.Location
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (linked, error) {
		var lk linked
		err := row.Scan(&lk.campaignID, &lk.loc.ID, &lk.loc.UserID, &lk.loc.Name, &lk.loc.Latitude,
			&lk.loc.Longitude, &lk.loc.Radius, &lk.loc.State, &lk.loc.CreatedAt)
		return lk, err
	})
	if err != nil {
		return err
	}
	for _, lk := range links {
		i := index[lk.campaignID]
		campaigns[i].Locations = append(campaigns[i].Locations, lk.loc)
	}
	return nil
}

func getCampaign(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Campaign, error) {
	sql := `SELECT ` + campaignColumns + ` FROM campaigns c WHERE c.id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	list, err := queryCampaigns(ctx, q, sql, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, notFound("campaign", id, pgx.ErrNoRows)
	}
	return &list[0], nil
}

func listUserCampaigns(ctx context.Context, q querier, userID string, forUpdate bool) ([]domain.Campaign, error) {
	sql := `SELECT ` + campaignColumns + ` FROM campaigns c WHERE c.user_id = $1 ORDER BY c.created_at, c.id`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return queryCampaigns(ctx, q, sql, userID)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return getCampaign(ctx, s.pool, id, false)
}

func (s *Store) ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error) {
	return listUserCampaigns(ctx, s.pool, userID, false)
}

func (s *Store) ListCampaignsByStatus(ctx context.Context, statuses ...domain.CampaignStatus) ([]domain.Campaign, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return queryCampaigns(ctx, s.pool,
		`SELECT `+campaignColumns+` FROM campaigns c WHERE c.status = ANY($1) ORDER BY c.created_at, c.id`, names)
}

// ListFeedCandidates returns approved in-flight campaigns with the owner's
// current subscription.
func (s *Store) ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error) {
	campaigns, err := queryCampaigns(ctx, s.pool, `
        SELECT `+campaignColumns+`
        FROM campaigns c
        WHERE c.is_approved AND c.status IN ('approved', 'active', 'scheduled')
        ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}

	owners := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		owners = append(owners, c.UserID)
	}
	rows, err := s.pool.Query(ctx, `
        SELECT u.id, s.id, s.name, s.price_id, s.run_cycle_limit, s.campaign_limit, s.location_limit, s.allowed_radius,
               s.ad_campaign_time_limit, s.current_cycles, s.is_completed, s.completed_at, s.created_at, s.updated_at
        FROM users u
        JOIN subscriptions s ON s.id = u.current_subscription_id
        WHERE u.id = ANY($1)`, owners)
	if err != nil {
		return nil, err
	}
	type owned struct {
		userID string
		sub    domain.Subscription
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (owned, error) {
		var o owned
		err := row.Scan(&o.userID, &o.sub.ID, &o.sub.Name, &o.sub.PriceID, &o.sub.RunCycleLimit, &o.sub.CampaignLimit,
			&o.sub.LocationLimit, &o.sub.AllowedRadius, &o.sub.AdCampaignTimeLimit, &o.sub.CurrentCycles,
			&o.sub.IsCompleted, &o.sub.CompletedAt, &o.sub.CreatedAt, &o.sub.UpdatedAt)
		return o, err
	})
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]domain.Subscription, len(subs))
	for _, o := range subs {
		byUser[o.userID] = o.sub
	}

	out := make([]domain.Candidate, 0, len(campaigns))
	for _, c := range campaigns {
		cand := domain.Candidate{Campaign: c}
		if sub, ok := byUser[c.UserID]; ok {
			cand.Subscription = sub.Clone()
			cand.MaxRunCycleLimit = sub.RunCycleLimit
		}
		out = append(out, cand)
	}
	return out, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO campaigns
(id, user_id, name, start_date_time, end_date_time, is_approved, reviewed_at, rejection_reason, status,
 run_cycle_count, has_completed_cycles, media_type, media_url, media_duration, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			c.ID, c.UserID, c.Name, c.StartDateTime, c.EndDateTime, c.ApprovalStatus.IsApproved,
			c.ApprovalStatus.ReviewedAt, c.ApprovalStatus.RejectionReason, c.Status, c.RunCycleCount,
			c.HasCompletedCycles, c.MediaType, c.MediaURL, c.MediaDuration, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return err
		}
		return replaceLocations(ctx, tx, c)
	})
}

// UpdateCampaign saves the row and its location set.
func (s *Store) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := saveCampaign(ctx, tx, c); err != nil {
			return err
		}
		return replaceLocations(ctx, tx, c)
	})
}

func saveCampaign(ctx context.Context, q querier, c *domain.Campaign) error {
	tag, err := q.Exec(ctx, `UPDATE campaigns SET
    name = $1, start_date_time = $2, end_date_time = $3, is_approved = $4, reviewed_at = $5,
    rejection_reason = $6, status = $7, run_cycle_count = $8, has_completed_cycles = $9,
    media_type = $10, media_url = $11, media_duration = $12, updated_at = $13
WHERE id = $14`,
		c.Name, c.StartDateTime, c.EndDateTime, c.ApprovalStatus.IsApproved, c.ApprovalStatus.ReviewedAt,
		c.ApprovalStatus.RejectionReason, c.Status, c.RunCycleCount, c.HasCompletedCycles,
		c.MediaType, c.MediaURL, c.MediaDuration, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("campaign", c.ID, pgx.ErrNoRows)
	}
	return nil
}

func replaceLocations(ctx context.Context, q querier, c *domain.Campaign) error {
	if _, err := q.Exec(ctx, `DELETE FROM campaign_locations WHERE campaign_id = $1`, c.ID); err != nil {
		return err
	}
	for i, l := range c.Locations {
		if _, err := q.Exec(ctx, `INSERT INTO campaign_locations (campaign_id, location_id, position) VALUES ($1,$2,$3)`,
			c.ID, l.ID, i); err != nil {
			return err
		}
	}
	return nil
}
