package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
	"signage-ads/internal/core/port/mocks"
)

// TestGetStats_DefaultPeriod ensures a zero period becomes the last 30 days.
func TestGetStats_DefaultPeriod(t *testing.T) {
	f := newFixture(t)
	repo := mocks.NewMockStatsRepository(t)
	now := f.now

	repo.EXPECT().
		PlayStats(mock.Anything, port.StatsReq{UserID: "u1", From: now.Add(-30 * 24 * time.Hour), To: now}).
		Return(&port.StatsResp{Plays: 3}, nil)

	svc := NewStatsUseCase(repo, f.store, WithNow(func() time.Time { return now }))
	resp, err := svc.GetStats(context.Background(), port.StatsReq{UserID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Plays)
}

func TestGetStats_RejectsInvertedPeriod(t *testing.T) {
	f := newFixture(t)
	svc := NewStatsUseCase(mocks.NewMockStatsRepository(t), f.store)
	_, err := svc.GetStats(f.ctx, port.StatsReq{UserID: "u1", From: f.now, To: f.now.Add(-time.Hour)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// TestGetStats_OtherOwnersCampaign ensures owners only see their own plays.
func TestGetStats_OtherOwnersCampaign(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 5)
	f.addUser("u2", 5)
	theirs := f.addCampaign("u2", domain.StatusActive)

	svc := NewStatsUseCase(mocks.NewMockStatsRepository(t), f.store)
	_, err := svc.GetStats(f.ctx, port.StatsReq{UserID: "u1", CampaignID: theirs.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// TestGetStats_CountsRecordedCycles runs against the memory store end to end.
func TestGetStats_CountsRecordedCycles(t *testing.T) {
	f := newFixture(t)
	f.addUser("u1", 10)
	f.addUser("u2", 10)
	a := f.addCampaign("u1", domain.StatusActive)
	b := f.addCampaign("u1", domain.StatusActive)
	other := f.addCampaign("u2", domain.StatusActive)

	for _, req := range []port.CycleRequest{cycle(a.ID, "p1"), cycle(a.ID, "p2"), cycle(b.ID, "p3"), cycle(other.ID, "p4")} {
		_, err := f.ledger.RecordCycle(f.ctx, req)
		require.NoError(t, err)
	}

	svc := NewStatsUseCase(f.store, f.store, WithNow(func() time.Time { return f.now.Add(time.Minute) }))
	resp, err := svc.GetStats(f.ctx, port.StatsReq{UserID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Plays)
	assert.Len(t, resp.ByCampaign, 2)

	resp, err = svc.GetStats(f.ctx, port.StatsReq{UserID: "u1", CampaignID: b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Plays)
}
