package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
)

func newTestEvaluator(t *testing.T) (*Evaluator, *time.Location) {
	t.Helper()
	loc := chicago(t)
	return NewEvaluator(FixedClock(loc, "", time.Time{}), nil), loc
}

func approvedCampaign() domain.Campaign {
	return domain.Campaign{
		ID:             "c1",
		UserID:         "u1",
		StartDateTime:  "2024-06-01 08:00:00 CST",
		EndDateTime:    "2024-06-10 20:00:00 CST",
		ApprovalStatus: domain.ApprovalStatus{IsApproved: true},
		Status:         domain.StatusApproved,
	}
}

func TestEvaluate(t *testing.T) {
	e, loc := newTestEvaluator(t)
	sub := &domain.Subscription{ID: "s1", RunCycleLimit: 3}
	at := func(day, hour, minute int) time.Time {
		return time.Date(2024, 6, day, hour, minute, 0, 0, loc)
	}

	tests := []struct {
		name   string
		mutate func(c *domain.Campaign, s **domain.Subscription)
		now    time.Time
		want   Outcome
	}{
		{name: "inside window", now: at(5, 10, 0), want: Playable},
		{name: "outside daily window", now: at(5, 22, 0), want: Expired},
		{name: "before daily window", now: at(5, 7, 59), want: NotYet},
		{name: "daily window bounds inclusive", now: at(5, 20, 0), want: Playable},
		{name: "first day at start", now: at(1, 8, 0), want: Playable},
		{name: "last day at end", now: at(10, 20, 0), want: Playable},
		{name: "before start date", now: at(1, 0, 0).AddDate(0, 0, -1).Add(12 * time.Hour), want: NotYet},
		{name: "after end date", now: at(11, 12, 0), want: Expired},
		{
			name:   "no subscription",
			mutate: func(_ *domain.Campaign, s **domain.Subscription) { *s = nil },
			now:    at(5, 10, 0),
			want:   NoSubscription,
		},
		{
			name: "completed subscription",
			mutate: func(_ *domain.Campaign, s **domain.Subscription) {
				done := *sub
				done.IsCompleted = true
				*s = &done
			},
			now:  at(5, 10, 0),
			want: NoSubscription,
		},
		{
			name:   "not approved",
			mutate: func(c *domain.Campaign, _ **domain.Subscription) { c.ApprovalStatus.IsApproved = false },
			now:    at(5, 10, 0),
			want:   Unapproved,
		},
		{
			name:   "pending status",
			mutate: func(c *domain.Campaign, _ **domain.Subscription) { c.Status = domain.StatusPending },
			now:    at(5, 10, 0),
			want:   Unapproved,
		},
		{
			name:   "completed status",
			mutate: func(c *domain.Campaign, _ **domain.Subscription) { c.Status = domain.StatusCompleted },
			now:    at(5, 10, 0),
			want:   Unapproved,
		},
		{
			name:   "malformed start",
			mutate: func(c *domain.Campaign, _ **domain.Subscription) { c.StartDateTime = "06/01/2024" },
			now:    at(5, 10, 0),
			want:   Unapproved,
		},
		{
			name:   "malformed end",
			mutate: func(c *domain.Campaign, _ **domain.Subscription) { c.EndDateTime = "" },
			now:    at(5, 10, 0),
			want:   Unapproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := approvedCampaign()
			s := sub
			if tt.mutate != nil {
				tt.mutate(&c, &s)
			}
			got := e.Evaluate(c, s, tt.now)
			assert.Equal(t, tt.want, got.Outcome)
			if s != nil {
				assert.Equal(t, s.RunCycleLimit, got.MaxRunCycleLimit)
			}
		})
	}
}

func TestEvaluate_OvernightWindowNeverPlays(t *testing.T) {
	e, loc := newTestEvaluator(t)
	sub := &domain.Subscription{RunCycleLimit: 10}
	c := approvedCampaign()
	c.StartDateTime = "2024-06-01 22:00:00"
	c.EndDateTime = "2024-06-10 06:00:00"

	for hour := 0; hour < 24; hour++ {
		got := e.Evaluate(c, sub, time.Date(2024, 6, 5, hour, 30, 0, 0, loc))
		assert.NotEqual(t, Playable, got.Outcome, "hour %d", hour)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e, loc := newTestEvaluator(t)
	sub := &domain.Subscription{RunCycleLimit: 3}
	now := time.Date(2024, 6, 5, 10, 0, 0, 0, loc)
	first := e.Evaluate(approvedCampaign(), sub, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(approvedCampaign(), sub, now))
	}
}

func TestEvaluate_UsesOperationalZone(t *testing.T) {
	e, _ := newTestEvaluator(t)
	sub := &domain.Subscription{RunCycleLimit: 3}
	// 15:00 UTC is 10:00 in Chicago, inside the daily window.
	assert.Equal(t, Playable, e.Evaluate(approvedCampaign(), sub, time.Date(2024, 6, 5, 15, 0, 0, 0, time.UTC)).Outcome)
	// 03:00 UTC on the 6th is 22:00 on the 5th in Chicago.
	assert.NotEqual(t, Playable, e.Evaluate(approvedCampaign(), sub, time.Date(2024, 6, 6, 3, 0, 0, 0, time.UTC)).Outcome)
}

func TestPlayable_KeepsOrderAndAttachesLimit(t *testing.T) {
	e, loc := newTestEvaluator(t)
	sub := &domain.Subscription{RunCycleLimit: 7}
	a, b, pending := approvedCampaign(), approvedCampaign(), approvedCampaign()
	a.ID, b.ID, pending.ID = "a", "b", "p"
	pending.Status = domain.StatusPending

	got := e.Playable([]domain.Candidate{
		{Campaign: b, Subscription: sub},
		{Campaign: pending, Subscription: sub},
		{Campaign: a, Subscription: sub},
	}, time.Date(2024, 6, 5, 10, 0, 0, 0, loc))

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Campaign.ID)
	assert.Equal(t, "a", got[1].Campaign.ID)
	assert.Equal(t, 7, got[0].MaxRunCycleLimit)
	assert.Equal(t, 7, got[1].MaxRunCycleLimit)
}

func TestStatusAt(t *testing.T) {
	e, loc := newTestEvaluator(t)
	c := approvedCampaign()

	tests := []struct {
		now  time.Time
		want domain.CampaignStatus
	}{
		{now: time.Date(2024, 5, 30, 12, 0, 0, 0, loc), want: domain.StatusScheduled},
		{now: time.Date(2024, 6, 5, 23, 0, 0, 0, loc), want: domain.StatusActive},
		{now: time.Date(2024, 6, 11, 0, 0, 0, 0, loc), want: domain.StatusApproved},
	}
	for _, tt := range tests {
		got, err := e.StatusAt(c, tt.now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.now.String())
	}

	c.EndDateTime = "soon"
	_, err := e.StatusAt(c, time.Now())
	assert.Error(t, err)
}
