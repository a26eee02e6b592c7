package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/adapter/storetest"
	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

func seeded(t *testing.T) (*Store, *domain.Subscription, *domain.Campaign) {
	t.Helper()
	ctx := context.Background()
	s := NewStore()
	sub := &domain.Subscription{RunCycleLimit: 1000}
	require.NoError(t, s.CreateSubscription(ctx, sub))
	s.PutUser(domain.User{ID: "u1", CurrentSubscriptionID: sub.ID})
	c := &domain.Campaign{UserID: "u1", Status: domain.StatusActive, ApprovalStatus: domain.ApprovalStatus{IsApproved: true}}
	require.NoError(t, s.CreateCampaign(ctx, c))
	return s, sub, c
}

func TestLedgerContract(t *testing.T) {
	storetest.Ledger(t, func(*testing.T) port.Store { return NewStore() })
}

func TestWithSubscription_SerializesUnits(t *testing.T) {
	s, sub, c := seeded(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithSubscription(ctx, sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
				camp, err := tx.GetCampaign(ctx, c.ID)
				if err != nil {
					return err
				}
				camp.RunCycleCount++
				tx.Subscription().CurrentCycles++
				if err = tx.SaveCampaign(ctx, camp); err != nil {
					return err
				}
				return tx.SaveSubscription(ctx, tx.Subscription())
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.CurrentCycles)
	camp, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, camp.RunCycleCount)
}

func TestWithSubscription_DiscardsOnError(t *testing.T) {
	s, sub, c := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithSubscription(ctx, sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
		camp, _ := tx.GetCampaign(ctx, c.ID)
		camp.Status = domain.StatusCompleted
		_ = tx.SaveCampaign(ctx, camp)
		_, _ = tx.AppendPlay(ctx, domain.Play{CampaignID: c.ID, DedupeKey: "k"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	camp, _ := s.GetCampaign(ctx, c.ID)
	assert.Equal(t, domain.StatusActive, camp.Status)
	assert.Empty(t, s.Plays(c.ID))
}

func TestWithSubscription_CommitHookFailureIsRetryable(t *testing.T) {
	s, sub, c := seeded(t)
	ctx := context.Background()
	s.SetCommitHook(func() error { return errors.New("disk full") })

	err := s.WithSubscription(ctx, sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
		tx.Subscription().CurrentCycles = 5
		_, _ = tx.AppendPlay(ctx, domain.Play{CampaignID: c.ID, DedupeKey: "k"})
		return tx.SaveSubscription(ctx, tx.Subscription())
	})
	assert.ErrorIs(t, err, domain.ErrLedgerRetryable)

	got, _ := s.GetSubscription(ctx, sub.ID)
	assert.Zero(t, got.CurrentCycles)
	assert.Empty(t, s.Plays(c.ID))
}

func TestAppendPlay_Dedupes(t *testing.T) {
	s, sub, c := seeded(t)
	ctx := context.Background()

	appendOnce := func() bool {
		var added bool
		require.NoError(t, s.WithSubscription(ctx, sub.ID, func(ctx context.Context, tx port.LedgerTx) error {
			var err error
			added, err = tx.AppendPlay(ctx, domain.Play{CampaignID: c.ID, DedupeKey: "play-1"})
			return err
		}))
		return added
	}
	assert.True(t, appendOnce())
	assert.False(t, appendOnce())
	assert.Len(t, s.Plays(c.ID), 1)
}

func TestWithSubscription_UnknownSubscription(t *testing.T) {
	s := NewStore()
	err := s.WithSubscription(context.Background(), "missing", func(context.Context, port.LedgerTx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotifications_Addressing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{RecipientID: "u1", Title: "mine"}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{RecipientID: "u2", Title: "theirs"}))
	admin := &domain.Notification{RecipientRole: domain.RoleAdmin, Title: "review"}
	require.NoError(t, s.CreateNotification(ctx, admin))

	mine, err := s.ListNotifications(ctx, "u1", domain.RoleUser)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Title)

	adminView, err := s.ListNotifications(ctx, "a1", domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, adminView, 1)
	assert.Equal(t, "review", adminView[0].Title)

	assert.ErrorIs(t, s.MarkRead(ctx, admin.ID, "u1", domain.RoleUser), domain.ErrNotFound)
	require.NoError(t, s.MarkRead(ctx, admin.ID, "a1", domain.RoleAdmin))
	adminView, _ = s.ListNotifications(ctx, "a1", domain.RoleAdmin)
	assert.True(t, adminView[0].Read)
}
