package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signage-ads/internal/adapter/memory"
	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/eligibility"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordedEvents) Publish(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordedEvents) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type countingMetrics struct {
	mu         sync.Mutex
	cycles     int
	duplicates int
	completed  int
	retryable  int
	failures   map[string]int
}

func (m *countingMetrics) CycleRecorded(dup bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dup {
		m.duplicates++
		return
	}
	m.cycles++
}

func (m *countingMetrics) SubscriptionCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
}

func (m *countingMetrics) LedgerRetryable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryable++
}

func (m *countingMetrics) PropagationFailed(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[sink]++
}

func (m *countingMetrics) EligibilityEvaluated(string, int) {}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	loc       *time.Location
	now       time.Time
	store     *memory.Store
	events    *recordedEvents
	metrics   *countingMetrics
	evaluator *eligibility.Evaluator
	ledger    *LedgerUseCase
	campaigns *CampaignUseCase
	subs      *SubscriptionUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		loc:     loc,
		now:     time.Date(2024, 6, 5, 10, 0, 0, 0, loc),
		store:   memory.NewStore(),
		events:  &recordedEvents{},
		metrics: &countingMetrics{},
	}
	clock := func() time.Time { return f.now }
	f.evaluator = eligibility.NewEvaluator(eligibility.FixedClock(loc, "", f.now), nil)
	opts := []Option{WithNow(clock), WithMetrics(f.metrics)}
	f.ledger = NewLedgerUseCase(f.store, f.store, f.store, f.events, opts...)
	f.campaigns = NewCampaignUseCase(f.store, nil, f.evaluator, f.events, opts...)
	f.subs = NewSubscriptionUseCase(f.store, f.store, f.ledger, f.events, opts...)
	return f
}

// addUser creates a user holding a fresh subscription with the given limit.
func (f *fixture) addUser(id string, runCycleLimit int) (*domain.User, *domain.Subscription) {
	f.t.Helper()
	sub := &domain.Subscription{
		Name:          "plan-" + id,
		PriceID:       "price-" + id,
		RunCycleLimit: runCycleLimit,
		CampaignLimit: 10,
		LocationLimit: 5,
		AllowedRadius: 50,
	}
	require.NoError(f.t, f.store.CreateSubscription(f.ctx, sub))
	u := domain.User{ID: id, Email: id + "@example.com", Name: id, Role: domain.RoleUser, CurrentSubscriptionID: sub.ID}
	f.store.PutUser(u)
	return &u, sub
}

func (f *fixture) addCampaign(userID string, status domain.CampaignStatus) *domain.Campaign {
	f.t.Helper()
	c := &domain.Campaign{
		UserID:         userID,
		Name:           "campaign of " + userID,
		StartDateTime:  "2024-06-01 08:00:00 CST",
		EndDateTime:    "2024-06-10 20:00:00 CST",
		ApprovalStatus: domain.ApprovalStatus{IsApproved: status.InFlight() || status == domain.StatusCompleted},
		Status:         status,
		MediaType:      domain.MediaImage,
		MediaURL:       "https://cdn.example.com/a.png",
		Locations:      []domain.Location{{ID: "l-" + userID, Latitude: 0, Longitude: 0.01, Radius: 5}},
	}
	require.NoError(f.t, f.store.CreateCampaign(f.ctx, c))
	return c
}

func (f *fixture) campaign(id string) *domain.Campaign {
	f.t.Helper()
	c, err := f.store.GetCampaign(f.ctx, id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) subscription(id string) *domain.Subscription {
	f.t.Helper()
	s, err := f.store.GetSubscription(f.ctx, id)
	require.NoError(f.t, err)
	return s
}
