package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port/mocks"
)

type propagatorMocks struct {
	notifications *mocks.MockNotificationRepository
	broadcaster   *mocks.MockBroadcaster
	mailer        *mocks.MockMailer
	metrics       *countingMetrics
}

func newTestPropagator(t *testing.T) (*Propagator, propagatorMocks) {
	m := propagatorMocks{
		notifications: mocks.NewMockNotificationRepository(t),
		broadcaster:   mocks.NewMockBroadcaster(t),
		mailer:        mocks.NewMockMailer(t),
		metrics:       &countingMetrics{},
	}
	at := time.Date(2024, 6, 5, 15, 0, 0, 0, time.UTC)
	p := NewPropagator(m.notifications, m.broadcaster, m.mailer,
		WithMetrics(m.metrics), WithNow(func() time.Time { return at }))
	return p, m
}

var owner = &domain.User{ID: "u1", Email: "owner@example.com", Name: "Owner"}

func TestPropagate_CampaignApproved(t *testing.T) {
	p, m := newTestPropagator(t)

	m.notifications.EXPECT().
		CreateNotification(mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.RecipientID == "u1" && n.RecipientRole == "" &&
				n.Kind == domain.EventCampaignApproved && n.Payload["campaignId"] == "c1"
		})).
		Return(nil).Once()
	m.broadcaster.EXPECT().
		Emit(mock.Anything, "user_u1", "campaign_approved", mock.Anything).
		Return(nil).Once()
	m.mailer.EXPECT().
		Send(mock.Anything, "campaign_status", *owner, mock.Anything).
		Return(nil).Once()

	p.Publish(context.Background(), domain.Event{
		Kind:       domain.EventCampaignApproved,
		Recipient:  owner,
		CampaignID: "c1",
		Data:       map[string]any{"campaignName": "Spring sale"},
	})
}

func TestPropagate_PlayedLocationsGoesToBothRooms(t *testing.T) {
	p, m := newTestPropagator(t)

	var rooms []string
	m.broadcaster.EXPECT().
		Emit(mock.Anything, mock.Anything, "played_locations_updated", mock.Anything).
		Run(func(_ context.Context, room, _ string, payload interface{}) {
			rooms = append(rooms, room)
			assert.Equal(t, 4, payload.(map[string]any)["runCycleCount"])
		}).
		Return(nil).Twice()

	p.Publish(context.Background(), domain.Event{
		Kind:       domain.EventPlayedLocationsUpdated,
		Recipient:  owner,
		CampaignID: "c1",
		Data:       map[string]any{"runCycleCount": 4},
	})
	assert.Equal(t, []string{"user_u1", "admin"}, rooms)
}

func TestPropagate_CampaignCreatedAddressesAdmins(t *testing.T) {
	p, m := newTestPropagator(t)

	m.notifications.EXPECT().
		CreateNotification(mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.RecipientRole == domain.RoleAdmin && n.RecipientID == ""
		})).
		Return(nil).Once()
	m.broadcaster.EXPECT().
		Emit(mock.Anything, "admin", "campaign_created", mock.Anything).
		Return(nil).Once()

	p.Publish(context.Background(), domain.Event{Kind: domain.EventCampaignCreated, Recipient: owner, CampaignID: "c1"})
}

func TestPropagate_CycleStartedIsNotPersisted(t *testing.T) {
	p, m := newTestPropagator(t)

	m.broadcaster.EXPECT().Emit(mock.Anything, "user_u1", "cycle_started", mock.Anything).Return(nil).Once()
	m.mailer.EXPECT().Send(mock.Anything, "cycle_started", *owner, mock.Anything).Return(nil).Once()

	p.Publish(context.Background(), domain.Event{Kind: domain.EventCycleStarted, Recipient: owner, CampaignID: "c1"})
}

func TestPropagate_SinkFailuresAreIsolated(t *testing.T) {
	p, m := newTestPropagator(t)

	m.notifications.EXPECT().CreateNotification(mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	m.broadcaster.EXPECT().Emit(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("hub gone")).Once()
	m.mailer.EXPECT().Send(mock.Anything, "subscription_completed", *owner, mock.Anything).Return(errors.New("smtp")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, domain.Event{Kind: domain.EventSubscriptionCompleted, Recipient: owner, SubscriptionID: "s1"})

	assert.Equal(t, map[string]int{"notification": 1, "realtime": 1, "email": 1}, m.metrics.failures)
}

func TestPropagate_EmailOnlyKinds(t *testing.T) {
	p, m := newTestPropagator(t)

	m.mailer.EXPECT().Send(mock.Anything, "welcome", *owner, mock.Anything).Return(nil).Once()
	p.Publish(context.Background(), domain.Event{Kind: domain.EventWelcome, Recipient: owner})

	// no recipient email: nothing to send
	p.Publish(context.Background(), domain.Event{Kind: domain.EventOTP, Recipient: &domain.User{ID: "u2"}})
}

func TestPropagate_UnknownKindIsDropped(t *testing.T) {
	p, _ := newTestPropagator(t)
	p.Publish(context.Background(), domain.Event{Kind: "mystery", Recipient: owner})
}
