package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/eligibility"
	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

// FeedSource lists driver feed candidates; the feed cache wraps the
// campaign repository behind it.
type FeedSource interface {
	ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error)
}

// CampaignUseCase implements campaign management and the driver feed.
type CampaignUseCase struct {
	campaigns     port.CampaignRepository
	subscriptions port.SubscriptionRepository
	users         port.UserRepository
	locations     port.LocationRepository
	ledger        port.Ledger
	feedSource    FeedSource
	evaluator     *eligibility.Evaluator
	events        port.EventPublisher
	common
}

var _ port.CampaignUseCase = (*CampaignUseCase)(nil)

// NewCampaignUseCase wires the use case to store. A nil feed falls back to
// the store itself.
func NewCampaignUseCase(store port.Store, feed FeedSource, evaluator *eligibility.Evaluator, events port.EventPublisher, opts ...Option) *CampaignUseCase {
	if feed == nil {
		feed = store
	}
	return &CampaignUseCase{
		campaigns:     store,
		subscriptions: store,
		users:         store,
		locations:     store,
		ledger:        store,
		feedSource:    feed,
		evaluator:     evaluator,
		events:        events,
		common:        newCommon("campaigns", opts),
	}
}

// Create stores a pending campaign owned by userID.
func (u *CampaignUseCase) Create(ctx context.Context, userID string, in port.CampaignInput) (*domain.Campaign, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, sub, err := u.ownerPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := u.campaigns.ListUserCampaigns(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.CampaignLimit > 0 && len(existing) >= sub.CampaignLimit {
		return nil, validation.Errorf("campaign limit of %d reached", sub.CampaignLimit)
	}

	locs, err := u.checkContent(ctx, userID, sub, in)
	if err != nil {
		return nil, err
	}

	c := &domain.Campaign{
		UserID:        userID,
		Name:          in.Name,
		StartDateTime: in.StartDateTime,
		EndDateTime:   in.EndDateTime,
		Status:        domain.StatusPending,
		Locations:     locs,
		MediaType:     in.MediaType,
		MediaURL:      in.MediaURL,
		MediaDuration: in.MediaDuration,
	}
	if err = u.campaigns.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	u.logger.Info("campaign created", slog.String("campaign_id", c.ID), slog.String("user_id", userID))
	u.events.Publish(ctx, domain.Event{
		Kind:       domain.EventCampaignCreated,
		Recipient:  user,
		CampaignID: c.ID,
		Data:       map[string]any{"campaignName": c.Name, "ownerEmail": user.Email},
	})
	return c, nil
}

// Edit replaces the content of a campaign and forces it back to review.
func (u *CampaignUseCase) Edit(ctx context.Context, userID, id string, in port.CampaignInput) (*domain.Campaign, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	c, err := u.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, domain.ErrForbidden
	}

	var previous domain.CampaignStatus
	c, _, err = u.mutate(ctx, c, func(ctx context.Context, cur *domain.Campaign, sub *domain.Subscription) (bool, error) {
		if sub == nil {
			return false, domain.ErrNoSubscription
		}
		locs, err := u.checkContent(ctx, userID, sub, in)
		if err != nil {
			return false, err
		}
		previous = cur.Status
		cur.Name = in.Name
		cur.StartDateTime = in.StartDateTime
		cur.EndDateTime = in.EndDateTime
		cur.Locations = locs
		cur.MediaType = in.MediaType
		cur.MediaURL = in.MediaURL
		cur.MediaDuration = in.MediaDuration
		cur.MarkEdited(u.now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	u.invalidateFeed(ctx)
	u.publishStatusChanged(ctx, c, previous)
	return c, nil
}

// mutate applies fn to a fresh copy of c read inside the owner's ledger
// unit and saves it when fn reports a change, so campaign writes never
// interleave with a cycle. sub is the locked subscription. Owners without
// a subscription cannot record cycles; their campaigns are updated
// directly with a nil sub.
func (u *CampaignUseCase) mutate(ctx context.Context, c *domain.Campaign, fn func(ctx context.Context, cur *domain.Campaign, sub *domain.Subscription) (bool, error)) (*domain.Campaign, bool, error) {
	var (
		out     *domain.Campaign
		changed bool
	)
	err := inOwnerUnit(ctx, u.users, u.ledger, c.UserID, func(ctx context.Context, tx port.LedgerTx, _ *domain.User) error {
		cur, err := tx.GetCampaign(ctx, c.ID)
		if err != nil {
			return err
		}
		if changed, err = fn(ctx, cur, tx.Subscription()); err != nil || !changed {
			out = cur
			return err
		}
		out = cur
		return tx.UpdateCampaign(ctx, cur)
	})
	if !errors.Is(err, domain.ErrNoSubscription) {
		return out, changed, err
	}

	cur := c.Clone()
	if changed, err = fn(ctx, &cur, nil); err != nil || !changed {
		return &cur, changed, err
	}
	if err = u.campaigns.UpdateCampaign(ctx, &cur); err != nil {
		return nil, false, err
	}
	return &cur, true, nil
}

// ownerPlan loads the user and the subscription that governs their
// campaigns.
func (u *CampaignUseCase) ownerPlan(ctx context.Context, userID string) (*domain.User, *domain.Subscription, error) {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.CurrentSubscriptionID == "" {
		return nil, nil, domain.ErrNoSubscription
	}
	sub, err := u.subscriptions.GetSubscription(ctx, user.CurrentSubscriptionID)
	if err != nil {
		return nil, nil, err
	}
	return user, sub, nil
}

// checkContent enforces the plan limits on a campaign body and resolves
// its locations.
func (u *CampaignUseCase) checkContent(ctx context.Context, userID string, sub *domain.Subscription, in port.CampaignInput) ([]domain.Location, error) {
	clock := u.evaluator.Clock()
	start, err := clock.Parse(in.StartDateTime)
	if err != nil {
		return nil, validation.Errorf("startDateTime: %v", err)
	}
	end, err := clock.Parse(in.EndDateTime)
	if err != nil {
		return nil, validation.Errorf("endDateTime: %v", err)
	}
	if end.Before(start) {
		return nil, validation.Errorf("endDateTime is before startDateTime")
	}
	if days := sub.AdCampaignTimeLimit; days > 0 {
		if span := clock.Date(end).Sub(clock.Date(start)); span.Hours() > float64(days*24) {
			return nil, validation.Errorf("campaign spans more than %d days", days)
		}
	}
	if in.MediaType == domain.MediaVideo && in.MediaDuration <= 0 {
		return nil, validation.Errorf("mediaDuration is required for video")
	}
	if sub.LocationLimit > 0 && len(in.LocationIDs) > sub.LocationLimit {
		return nil, validation.Errorf("at most %d locations allowed", sub.LocationLimit)
	}

	locs, err := u.locations.GetLocations(ctx, in.LocationIDs)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, validation.Errorf("unknown location: %v", err)
		}
		return nil, err
	}
	for _, l := range locs {
		if l.UserID != userID {
			return nil, fmt.Errorf("location %s: %w", l.ID, domain.ErrForbidden)
		}
		if l.Radius > sub.Radius() {
			return nil, validation.Errorf("location %s radius %.1f km exceeds plan limit %.1f km", l.ID, l.Radius, sub.Radius())
		}
	}
	return locs, nil
}

// Approve moves a pending campaign into the in-flight status its window
// calls for right now.
func (u *CampaignUseCase) Approve(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := u.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	now := u.now()
	var previous domain.CampaignStatus
	c, _, err = u.mutate(ctx, c, func(_ context.Context, cur *domain.Campaign, _ *domain.Subscription) (bool, error) {
		target, err := u.evaluator.StatusAt(*cur, now)
		if err != nil {
			return false, validation.Errorf("campaign window: %v", err)
		}
		previous = cur.Status
		return true, cur.Approve(target, now)
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("campaign approved", slog.String("campaign_id", c.ID), slog.String("status", string(c.Status)))
	u.invalidateFeed(ctx)
	u.publishReview(ctx, c, domain.EventCampaignApproved, nil)
	u.publishStatusChanged(ctx, c, previous)
	return c, nil
}

func (u *CampaignUseCase) Reject(ctx context.Context, id, reason string) (*domain.Campaign, error) {
	c, err := u.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	var previous domain.CampaignStatus
	c, _, err = u.mutate(ctx, c, func(_ context.Context, cur *domain.Campaign, _ *domain.Subscription) (bool, error) {
		previous = cur.Status
		return true, cur.Reject(reason, u.now())
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("campaign rejected", slog.String("campaign_id", c.ID))
	u.publishReview(ctx, c, domain.EventCampaignRejected, map[string]any{"reason": reason})
	u.publishStatusChanged(ctx, c, previous)
	return c, nil
}

func (u *CampaignUseCase) publishReview(ctx context.Context, c *domain.Campaign, kind domain.EventKind, extra map[string]any) {
	owner, err := u.users.GetUser(ctx, c.UserID)
	if err != nil {
		u.logger.Error("load campaign owner", slog.String("campaign_id", c.ID), slog.Any("error", err))
		return
	}
	data := map[string]any{"campaignName": c.Name, "status": string(c.Status)}
	for k, v := range extra {
		data[k] = v
	}
	u.events.Publish(ctx, domain.Event{Kind: kind, Recipient: owner, CampaignID: c.ID, Data: data})
}

func (u *CampaignUseCase) publishStatusChanged(ctx context.Context, c *domain.Campaign, previous domain.CampaignStatus) {
	u.events.Publish(ctx, domain.Event{
		Kind:       domain.EventCampaignStatusChanged,
		CampaignID: c.ID,
		Data: map[string]any{
			"campaignName":   c.Name,
			"status":         string(c.Status),
			"previousStatus": string(previous),
			"ownerId":        c.UserID,
		},
	})
}

func (u *CampaignUseCase) List(ctx context.Context, userID string) ([]domain.Campaign, error) {
	return u.campaigns.ListUserCampaigns(ctx, userID)
}

// ListByStatus is the admin review queue. Unknown statuses are a
// validation error.
func (u *CampaignUseCase) ListByStatus(ctx context.Context, statuses ...domain.CampaignStatus) ([]domain.Campaign, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, validation.Errorf("unknown status %q", st)
		}
	}
	if len(statuses) == 0 {
		statuses = []domain.CampaignStatus{domain.StatusPending}
	}
	return u.campaigns.ListCampaignsByStatus(ctx, statuses...)
}

// DriverFeed returns the campaigns playable right now. Position filtering
// happens on the device.
func (u *CampaignUseCase) DriverFeed(ctx context.Context) ([]domain.Candidate, error) {
	cands, err := u.feedSource.ListFeedCandidates(ctx)
	if err != nil {
		return nil, err
	}
	out := u.evaluator.Playable(cands, u.now())
	u.metrics.EligibilityEvaluated(string(eligibility.Playable), len(out))
	u.metrics.EligibilityEvaluated("excluded", len(cands)-len(out))
	return out, nil
}

// RefreshStatuses moves approved, scheduled and active campaigns between
// those three statuses as their windows open and close. Each update runs
// under the owner's subscription lock so it never races the completion
// cascade.
func (u *CampaignUseCase) RefreshStatuses(ctx context.Context) (int, error) {
	list, err := u.campaigns.ListCampaignsByStatus(ctx, domain.StatusApproved, domain.StatusScheduled, domain.StatusActive)
	if err != nil {
		return 0, err
	}

	var changed int
	for _, c := range list {
		if err = ctx.Err(); err != nil {
			return changed, err
		}
		ok, err := u.refreshOne(ctx, c)
		if err != nil {
			u.logger.Warn("status refresh failed", slog.String("campaign_id", c.ID), slog.Any("error", err))
			continue
		}
		if ok {
			changed++
		}
	}
	if changed > 0 {
		u.invalidateFeed(ctx)
	}
	return changed, nil
}

func (u *CampaignUseCase) refreshOne(ctx context.Context, c domain.Campaign) (bool, error) {
	if !c.ApprovalStatus.IsApproved {
		return false, nil
	}
	now := u.now()
	target, err := u.evaluator.StatusAt(c, now)
	if err != nil {
		return false, err
	}
	if target == c.Status {
		return false, nil
	}

	var previous domain.CampaignStatus
	updated, changed, err := u.mutate(ctx, &c, func(_ context.Context, cur *domain.Campaign, _ *domain.Subscription) (bool, error) {
		previous = cur.Status
		if !cur.Status.InFlight() {
			return false, nil
		}
		target, err := u.evaluator.StatusAt(*cur, now)
		if err != nil {
			return false, err
		}
		return cur.Refresh(target, now)
	})
	if err != nil || !changed {
		return false, err
	}
	u.publishStatusChanged(ctx, updated, previous)
	return true, nil
}
