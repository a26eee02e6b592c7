package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

const (
	seedAdminID = "demo-admin"
	seedUserID  = "demo-advertiser"
)

// Seed loads a demo admin, one advertiser on a small plan with two
// locations around downtown Chicago and three campaigns: one playing now,
// one waiting for review and one scheduled for next week. It does nothing
// when the demo admin already exists.
func Seed(ctx context.Context, store port.Store, now time.Time, layout string) error {
	if _, err := store.GetUser(ctx, seedAdminID); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	admin := &domain.User{ID: seedAdminID, Email: "admin@signage.local", Name: "Demo Admin", Role: domain.RoleAdmin}
	if err := store.UpsertUser(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	plan := &domain.Subscription{
		Name:                "Starter",
		PriceID:             "price_demo_starter",
		RunCycleLimit:       50,
		CampaignLimit:       5,
		LocationLimit:       3,
		AllowedRadius:       25,
		AdCampaignTimeLimit: 30,
	}
	if err := store.CreateSubscription(ctx, plan); err != nil {
		return fmt.Errorf("seed plan: %w", err)
	}
	instance := *plan
	instance.ID = ""
	if err := store.CreateSubscription(ctx, &instance); err != nil {
		return fmt.Errorf("seed subscription: %w", err)
	}

	user := &domain.User{ID: seedUserID, Email: "advertiser@signage.local", Name: "Demo Advertiser", Role: domain.RoleUser}
	if err := store.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("seed advertiser: %w", err)
	}
	if err := store.SetCurrentSubscription(ctx, user.ID, instance.ID); err != nil {
		return err
	}

	loop := &domain.Location{UserID: user.ID, Name: "The Loop", Latitude: 41.8837, Longitude: -87.6289, Radius: 3, State: "IL"}
	ohare := &domain.Location{UserID: user.ID, Name: "O'Hare", Latitude: 41.9742, Longitude: -87.9073, Radius: 5, State: "IL"}
	for _, l := range []*domain.Location{loop, ohare} {
		if err := store.CreateLocation(ctx, l); err != nil {
			return fmt.Errorf("seed location %s: %w", l.Name, err)
		}
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	reviewed := now
	campaigns := []*domain.Campaign{
		{
			Name:           "Deep dish week",
			StartDateTime:  day.AddDate(0, 0, -1).Format(layout),
			EndDateTime:    day.AddDate(0, 0, 7).Add(23*time.Hour + 59*time.Minute).Format(layout),
			Locations:      []domain.Location{*loop, *ohare},
			ApprovalStatus: domain.ApprovalStatus{IsApproved: true, ReviewedAt: &reviewed},
			Status:         domain.StatusActive,
			MediaType:      domain.MediaVideo,
			MediaURL:       "https://media.signage.local/deep-dish.mp4",
			MediaDuration:  15,
		},
		{
			Name:          "Lakefront run",
			StartDateTime: day.Format(layout),
			EndDateTime:   day.AddDate(0, 0, 10).Format(layout),
			Locations:     []domain.Location{*loop},
			Status:        domain.StatusPending,
			MediaType:     domain.MediaImage,
			MediaURL:      "https://media.signage.local/lakefront.jpg",
		},
		{
			Name:           "Airport shuttle",
			StartDateTime:  day.AddDate(0, 0, 7).Add(6 * time.Hour).Format(layout),
			EndDateTime:    day.AddDate(0, 0, 14).Add(22 * time.Hour).Format(layout),
			Locations:      []domain.Location{*ohare},
			ApprovalStatus: domain.ApprovalStatus{IsApproved: true, ReviewedAt: &reviewed},
			Status:         domain.StatusScheduled,
			MediaType:      domain.MediaImage,
			MediaURL:       "https://media.signage.local/shuttle.png",
		},
	}
	for _, c := range campaigns {
		c.UserID = user.ID
		if err := store.CreateCampaign(ctx, c); err != nil {
			return fmt.Errorf("seed campaign %s: %w", c.Name, err)
		}
	}
	return nil
}
