package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

func TestGift_RearmsCompletedAndKeepsRejected(t *testing.T) {
	f := newFixture(t)
	_, sub := f.addUser("u1", 1)
	done := f.addCampaign("u1", domain.StatusActive)
	rejected := f.addCampaign("u1", domain.StatusRejected)

	_, err := f.ledger.RecordCycle(f.ctx, cycle(done.ID, "p1"))
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, f.campaign(done.ID).Status)

	plan, err := f.subs.CreatePlan(f.ctx, port.PlanInput{
		Name: "Gold", PriceID: "price_gold", RunCycleLimit: 100, CampaignLimit: 5, LocationLimit: 5,
	})
	require.NoError(t, err)
	f.events.reset()

	require.NoError(t, f.subs.Gift(f.ctx, "u1", plan.ID))

	c := f.campaign(done.ID)
	assert.Equal(t, domain.StatusApproved, c.Status)
	assert.Zero(t, c.RunCycleCount)
	assert.True(t, c.ApprovalStatus.IsApproved)
	assert.False(t, c.HasCompletedCycles)
	assert.Equal(t, domain.StatusRejected, f.campaign(rejected.ID).Status)

	user, err := f.store.GetUser(f.ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, user.CurrentSubscriptionID)
	assert.NotEqual(t, plan.ID, user.CurrentSubscriptionID, "the plan itself is never attached")
	inst := f.subscription(user.CurrentSubscriptionID)
	assert.Equal(t, 100, inst.RunCycleLimit)
	assert.Zero(t, inst.CurrentCycles)
	assert.Zero(t, f.subscription(plan.ID).CurrentCycles)

	assert.Equal(t, []domain.EventKind{domain.EventSubscriptionPurchased}, f.events.kinds())
}

func TestPaymentSucceeded_RenewsSamePrice(t *testing.T) {
	f := newFixture(t)
	_, sub := f.addUser("u1", 2)
	c := f.addCampaign("u1", domain.StatusActive)
	for _, id := range []string{"p1", "p2"} {
		_, err := f.ledger.RecordCycle(f.ctx, cycle(c.ID, id))
		require.NoError(t, err)
	}
	require.True(t, f.subscription(sub.ID).IsCompleted)
	f.events.reset()

	require.NoError(t, f.subs.PaymentSucceeded(f.ctx, port.PaymentInput{UserID: "u1", SubscriptionID: sub.ID, PaymentID: "pi_1"}))

	s := f.subscription(sub.ID)
	assert.False(t, s.IsCompleted)
	assert.Zero(t, s.CurrentCycles)
	assert.Equal(t, domain.StatusApproved, f.campaign(c.ID).Status)
	assert.Equal(t, []domain.EventKind{domain.EventSubscriptionUpdated}, f.events.kinds())

	user, _ := f.store.GetUser(f.ctx, "u1")
	assert.Equal(t, sub.ID, user.CurrentSubscriptionID)
}

func TestPaymentSucceeded_Validation(t *testing.T) {
	f := newFixture(t)
	err := f.subs.PaymentSucceeded(f.ctx, port.PaymentInput{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReactivate(t *testing.T) {
	f := newFixture(t)
	_, sub := f.addUser("u1", 1)
	c := f.addCampaign("u1", domain.StatusActive)
	_, err := f.ledger.RecordCycle(f.ctx, cycle(c.ID, "p1"))
	require.NoError(t, err)

	require.NoError(t, f.subs.Reactivate(f.ctx, "u1"))
	assert.False(t, f.subscription(sub.ID).IsCompleted)
	assert.Equal(t, domain.StatusApproved, f.campaign(c.ID).Status)

	f.store.PutUser(domain.User{ID: "free"})
	assert.ErrorIs(t, f.subs.Reactivate(f.ctx, "free"), domain.ErrNoSubscription)
}

func TestCreatePlan_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.subs.CreatePlan(f.ctx, port.PlanInput{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
