package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

type audience int

const (
	audienceNone audience = iota
	audienceUser
	audienceAdmin
	audienceBoth
)

// route decides which sinks an event kind reaches.
type route struct {
	persist  domain.Role // empty: not persisted
	audience audience
	template string // empty: no email
	title    string
}

var routes = map[domain.EventKind]route{
	domain.EventWelcome:            {template: "welcome"},
	domain.EventOTP:                {template: "otp"},
	domain.EventPasswordReset:      {template: "password_reset"},
	domain.EventChatMessageOffline: {template: "chat_message_offline"},

	domain.EventCampaignCreated:       {persist: domain.RoleAdmin, audience: audienceAdmin, title: "New campaign for review"},
	domain.EventCampaignApproved:      {persist: domain.RoleUser, audience: audienceUser, template: "campaign_status", title: "Campaign approved"},
	domain.EventCampaignRejected:      {persist: domain.RoleUser, audience: audienceUser, template: "campaign_status", title: "Campaign rejected"},
	domain.EventCampaignStatusChanged: {audience: audienceAdmin, title: "Campaign status changed"},

	domain.EventCycleStarted:           {audience: audienceUser, template: "cycle_started", title: "Campaign started running"},
	domain.EventPlayedLocationsUpdated: {audience: audienceBoth},

	domain.EventSubscriptionPurchased: {persist: domain.RoleUser, audience: audienceAdmin, title: "Subscription purchased"},
	domain.EventSubscriptionUpdated:   {persist: domain.RoleUser, audience: audienceUser, title: "Subscription updated"},
	domain.EventSubscriptionCompleted: {persist: domain.RoleUser, audience: audienceUser, template: "subscription_completed", title: "Subscription completed"},
}

// Propagator fans committed events out to the inbox, realtime rooms and
// email. Every sink is attempted; failures are logged and counted and never
// returned, since the state change they describe is already committed.
type Propagator struct {
	notifications port.NotificationRepository
	broadcaster   port.Broadcaster
	mailer        port.Mailer
	common
}

var _ port.EventPublisher = (*Propagator)(nil)

func NewPropagator(notifications port.NotificationRepository, broadcaster port.Broadcaster, mailer port.Mailer, opts ...Option) *Propagator {
	return &Propagator{
		notifications: notifications,
		broadcaster:   broadcaster,
		mailer:        mailer,
		common:        newCommon("propagator", opts),
	}
}

func (p *Propagator) Publish(ctx context.Context, ev domain.Event) {
	r, ok := routes[ev.Kind]
	if !ok {
		p.logger.Warn("no route for event", slog.String("kind", string(ev.Kind)))
		return
	}
	// Sinks outlive the request that triggered the change.
	ctx = context.WithoutCancel(ctx)
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now()
	}
	payload := p.payload(ev)

	if r.persist != "" {
		p.persist(ctx, ev, r, payload)
	}

	switch r.audience {
	case audienceUser:
		p.emitUser(ctx, ev, payload)
	case audienceAdmin:
		p.emit(ctx, port.AdminRoom, ev, payload)
	case audienceBoth:
		p.emitUser(ctx, ev, payload)
		p.emit(ctx, port.AdminRoom, ev, payload)
	}

	if r.template != "" {
		p.mail(ctx, ev, r.template, payload)
	}
}

func (p *Propagator) payload(ev domain.Event) map[string]any {
	out := make(map[string]any, len(ev.Data)+4)
	maps.Copy(out, ev.Data)
	out["kind"] = string(ev.Kind)
	out["occurredAt"] = ev.OccurredAt.UTC().Format(time.RFC3339)
	if ev.CampaignID != "" {
		out["campaignId"] = ev.CampaignID
	}
	if ev.SubscriptionID != "" {
		out["subscriptionId"] = ev.SubscriptionID
	}
	if ev.Recipient != nil {
		out["userId"] = ev.Recipient.ID
	}
	return out
}

func (p *Propagator) persist(ctx context.Context, ev domain.Event, r route, payload map[string]any) {
	n := &domain.Notification{
		Kind:      ev.Kind,
		Title:     r.title,
		Message:   message(ev, r),
		Payload:   payload,
		CreatedAt: ev.OccurredAt,
	}
	if r.persist == domain.RoleAdmin {
		n.RecipientRole = domain.RoleAdmin
	} else {
		if ev.Recipient == nil {
			p.logger.Warn("user notification without recipient", slog.String("kind", string(ev.Kind)))
			return
		}
		n.RecipientID = ev.Recipient.ID
	}
	if err := p.notifications.CreateNotification(ctx, n); err != nil {
		p.failed("notification", ev, err)
	}
}

func (p *Propagator) emitUser(ctx context.Context, ev domain.Event, payload map[string]any) {
	if ev.Recipient == nil {
		p.logger.Warn("user event without recipient", slog.String("kind", string(ev.Kind)))
		return
	}
	p.emit(ctx, port.UserRoom(ev.Recipient.ID), ev, payload)
}

func (p *Propagator) emit(ctx context.Context, room string, ev domain.Event, payload map[string]any) {
	if p.broadcaster == nil {
		return
	}
	if err := p.broadcaster.Emit(ctx, room, string(ev.Kind), payload); err != nil {
		p.failed("realtime", ev, err)
	}
}

func (p *Propagator) mail(ctx context.Context, ev domain.Event, template string, payload map[string]any) {
	if p.mailer == nil || ev.Recipient == nil || ev.Recipient.Email == "" {
		return
	}
	if err := p.mailer.Send(ctx, template, *ev.Recipient, payload); err != nil {
		p.failed("email", ev, err)
	}
}

func (p *Propagator) failed(sink string, ev domain.Event, err error) {
	p.metrics.PropagationFailed(sink)
	p.logger.Error("event sink failed",
		slog.String("sink", sink),
		slog.String("kind", string(ev.Kind)),
		slog.String("campaign_id", ev.CampaignID),
		slog.Any("error", err))
}

func message(ev domain.Event, r route) string {
	if m, ok := ev.Data["message"].(string); ok && m != "" {
		return m
	}
	name, _ := ev.Data["campaignName"].(string)
	switch ev.Kind {
	case domain.EventCampaignCreated:
		return fmt.Sprintf("Campaign %q is waiting for review.", name)
	case domain.EventCampaignApproved:
		return fmt.Sprintf("Your campaign %q has been approved.", name)
	case domain.EventCampaignRejected:
		reason, _ := ev.Data["reason"].(string)
		return fmt.Sprintf("Your campaign %q was rejected: %s", name, reason)
	case domain.EventSubscriptionCompleted:
		return "Your plan has used all of its run cycles. Renew to resume playback."
	}
	return r.title
}
