// Package storetest holds the behaviour every port.Store must share, run
// by each adapter's own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

type seed struct {
	store    port.Store
	sub      *domain.Subscription
	user     *domain.User
	campaign *domain.Campaign
	other    *domain.Location
}

func newSeed(t *testing.T, store port.Store) *seed {
	t.Helper()
	ctx := context.Background()
	s := &seed{store: store}

	s.sub = &domain.Subscription{Name: "plan", PriceID: "price-" + uuid.NewString(), RunCycleLimit: 1000}
	require.NoError(t, store.CreateSubscription(ctx, s.sub))

	id := uuid.NewString()
	s.user = &domain.User{ID: id, Email: id + "@example.com", Name: "owner", Role: domain.RoleUser, CurrentSubscriptionID: s.sub.ID}
	require.NoError(t, store.UpsertUser(ctx, s.user))

	first := &domain.Location{UserID: id, Name: "north", Latitude: 41.9, Longitude: -87.6, Radius: 2}
	require.NoError(t, store.CreateLocation(ctx, first))
	s.other = &domain.Location{UserID: id, Name: "south", Latitude: 41.8, Longitude: -87.6, Radius: 3}
	require.NoError(t, store.CreateLocation(ctx, s.other))

	s.campaign = &domain.Campaign{
		UserID:         id,
		Name:           "launch",
		StartDateTime:  "2024-06-01 08:00:00",
		EndDateTime:    "2024-06-10 20:00:00",
		ApprovalStatus: domain.ApprovalStatus{IsApproved: true},
		Status:         domain.StatusActive,
		MediaType:      domain.MediaImage,
		MediaURL:       "https://cdn.example.com/launch.png",
		Locations:      []domain.Location{*first},
	}
	require.NoError(t, store.CreateCampaign(ctx, s.campaign))
	return s
}

// count runs one cycle worth of ledger writes for play key.
func (s *seed) count(ctx context.Context, key string) (bool, error) {
	var added bool
	err := s.store.WithSubscription(ctx, s.sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
		c, err := tx.GetCampaign(ctx, s.campaign.ID)
		if err != nil {
			return err
		}
		if added, err = tx.AppendPlay(ctx, domain.Play{CampaignID: c.ID, DedupeKey: key}); err != nil || !added {
			return err
		}
		c.RunCycleCount++
		tx.Subscription().CurrentCycles++
		if err = tx.SaveCampaign(ctx, c); err != nil {
			return err
		}
		return tx.SaveSubscription(ctx, tx.Subscription())
	})
	return added, err
}

// Ledger checks the unit-of-work guarantees of newStore's WithSubscription.
func Ledger(t *testing.T, newStore func(t *testing.T) port.Store) {
	ctx := context.Background()

	t.Run("commits together", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		added, err := s.count(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, added)

		c, err := s.store.GetCampaign(ctx, s.campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.RunCycleCount)
		sub, err := s.store.GetSubscription(ctx, s.sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, sub.CurrentCycles)
	})

	t.Run("dedupes plays", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		added, err := s.count(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.count(ctx, "p1")
		require.NoError(t, err)
		assert.False(t, added)

		c, err := s.store.GetCampaign(ctx, s.campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.RunCycleCount)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		boom := errors.New("boom")
		err := s.store.WithSubscription(ctx, s.sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
			c, err := tx.GetCampaign(ctx, s.campaign.ID)
			if err != nil {
				return err
			}
			c.Status = domain.StatusCompleted
			if err = tx.SaveCampaign(ctx, c); err != nil {
				return err
			}
			if _, err = tx.AppendPlay(ctx, domain.Play{CampaignID: c.ID, DedupeKey: "p1"}); err != nil {
				return err
			}
			tx.Subscription().IsCompleted = true
			if err = tx.SaveSubscription(ctx, tx.Subscription()); err != nil {
				return err
			}
			if err = tx.SetCurrentSubscription(ctx, s.user.ID, s.sub.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		c, err := s.store.GetCampaign(ctx, s.campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, c.Status)
		sub, err := s.store.GetSubscription(ctx, s.sub.ID)
		require.NoError(t, err)
		assert.False(t, sub.IsCompleted)

		added, err := s.count(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, added, "a rolled back play must not block its retry")
	})

	t.Run("serializes concurrent units", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		const workers = 20
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := "p" + string(rune('a'+i))
				for {
					_, err := s.count(ctx, key)
					if errors.Is(err, domain.ErrLedgerRetryable) {
						continue
					}
					assert.NoError(t, err)
					return
				}
			}()
		}
		wg.Wait()

		c, err := s.store.GetCampaign(ctx, s.campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, c.RunCycleCount)
		sub, err := s.store.GetSubscription(ctx, s.sub.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, sub.CurrentCycles)
	})

	t.Run("switches subscription on commit", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		next := &domain.Subscription{Name: "next", PriceID: s.sub.PriceID, RunCycleLimit: 50}
		require.NoError(t, s.store.CreateSubscription(ctx, next))

		err := s.store.WithSubscription(ctx, s.sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
			if err := tx.SetCurrentSubscription(ctx, s.user.ID, next.ID); err != nil {
				return err
			}
			u, err := tx.GetUser(ctx, s.user.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, next.ID, u.CurrentSubscriptionID)
			return nil
		})
		require.NoError(t, err)

		u, err := s.store.GetUser(ctx, s.user.ID)
		require.NoError(t, err)
		assert.Equal(t, next.ID, u.CurrentSubscriptionID)
	})

	t.Run("switch to unknown subscription fails", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		err := s.store.WithSubscription(ctx, s.sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
			return tx.SetCurrentSubscription(ctx, s.user.ID, uuid.NewString())
		})
		assert.Error(t, err)

		u, err := s.store.GetUser(ctx, s.user.ID)
		require.NoError(t, err)
		assert.Equal(t, s.sub.ID, u.CurrentSubscriptionID)
	})

	t.Run("update replaces locations", func(t *testing.T) {
		s := newSeed(t, newStore(t))
		err := s.store.WithSubscription(ctx, s.sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
			c, err := tx.GetCampaign(ctx, s.campaign.ID)
			if err != nil {
				return err
			}
			c.Name = "relaunch"
			c.Locations = []domain.Location{*s.other}
			return tx.UpdateCampaign(ctx, c)
		})
		require.NoError(t, err)

		c, err := s.store.GetCampaign(ctx, s.campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, "relaunch", c.Name)
		require.Len(t, c.Locations, 1)
		assert.Equal(t, s.other.ID, c.Locations[0].ID)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		store := newStore(t)
		called := false
		err := store.WithSubscription(ctx, uuid.NewString(), func(context.Context, port.LedgerTx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, called)
	})
}
