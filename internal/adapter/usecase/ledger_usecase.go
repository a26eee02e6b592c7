package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

// LedgerUseCase records playback cycles against the campaign and its
// owner's subscription and rewinds the subscription on renewal.
type LedgerUseCase struct {
	campaigns port.CampaignRepository
	users     port.UserRepository
	ledger    port.Ledger
	events    port.EventPublisher
	common
}

var _ port.LedgerUseCase = (*LedgerUseCase)(nil)

func NewLedgerUseCase(campaigns port.CampaignRepository, users port.UserRepository, ledger port.Ledger, events port.EventPublisher, opts ...Option) *LedgerUseCase {
	return &LedgerUseCase{
		campaigns: campaigns,
		users:     users,
		ledger:    ledger,
		events:    events,
		common:    newCommon("ledger", opts),
	}
}

// planSwitchAttempts bounds how often a unit is reopened because the
// owner's current subscription changed between the lookup and the lock.
const planSwitchAttempts = 3

var errPlanSwitched = errors.New("current subscription changed")

// inOwnerUnit runs fn inside the ledger unit of the user's current
// subscription. The user is read again under the lock and the unit is
// reopened on the new subscription when a switch slipped in between.
func inOwnerUnit(ctx context.Context, users port.UserRepository, ledger port.Ledger, userID string, fn func(ctx context.Context, tx port.LedgerTx, owner *domain.User) error) error {
	for range planSwitchAttempts {
		owner, err := users.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if owner.CurrentSubscriptionID == "" {
			return domain.ErrNoSubscription
		}
		err = ledger.WithSubscription(ctx, owner.CurrentSubscriptionID, func(ctx context.Context, tx port.LedgerTx) error {
			cur, err := tx.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if cur.CurrentSubscriptionID != owner.CurrentSubscriptionID {
				return errPlanSwitched
			}
			return fn(ctx, tx, cur)
		})
		if !errors.Is(err, errPlanSwitched) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrLedgerRetryable, errPlanSwitched)
}

// dedupeKey identifies a play for idempotent retries.
func dedupeKey(req port.CycleRequest, playedAt time.Time) string {
	if req.PlayID != "" {
		return req.PlayID
	}
	return playedAt.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// RecordCycle appends the play, counts it against the campaign and the
// subscription, and completes every in-flight campaign of the owner when
// the plan runs out. All of it commits as one unit under the lock of the
// subscription the owner holds at that moment. A retry with the same play
// id returns the current state with Duplicate set and fires nothing.
func (u *LedgerUseCase) RecordCycle(ctx context.Context, req port.CycleRequest) (*port.CycleResult, error) {
	if req.CampaignID == "" {
		return nil, validation.Errorf("campaign id is required")
	}
	camp, err := u.campaigns.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	playedAt := req.PlayedAt
	if playedAt.IsZero() {
		playedAt = now
	}
	play := domain.Play{
		CampaignID: req.CampaignID,
		Latitude:   req.Position.Latitude,
		Longitude:  req.Position.Longitude,
		PlayedAt:   playedAt.UTC(),
		DedupeKey:  dedupeKey(req, playedAt),
	}

	var (
		res       port.CycleResult
		outcome   domain.CycleOutcome
		completed []domain.Campaign
		sub       domain.Subscription
		owner     *domain.User
	)
	err = inOwnerUnit(ctx, u.users, u.ledger, camp.UserID, func(ctx context.Context, tx port.LedgerTx, o *domain.User) error {
		owner = o
		s := tx.Subscription()
		c, err := tx.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return err
		}

		added, err := tx.AppendPlay(ctx, play)
		if err != nil {
			return fmt.Errorf("append play: %w", err)
		}
		if !added {
			res = snapshot(c, s)
			res.Duplicate = true
			return nil
		}
		if s.IsCompleted {
			return domain.ErrSubscriptionCompleted
		}
		if !c.Status.InFlight() {
			return fmt.Errorf("%w: status %s", domain.ErrCampaignNotRunning, c.Status)
		}

		outcome = domain.ApplyCycle(c, s, now)
		if err = tx.SaveCampaign(ctx, c); err != nil {
			return fmt.Errorf("save campaign: %w", err)
		}

		if outcome.SubscriptionCompleted {
			all, err := tx.ListUserCampaigns(ctx, c.UserID)
			if err != nil {
				return fmt.Errorf("list owner campaigns: %w", err)
			}
			completed = domain.CompleteInFlight(all, now)
			for i := range completed {
				if err = tx.SaveCampaign(ctx, &completed[i]); err != nil {
					return fmt.Errorf("complete campaign %s: %w", completed[i].ID, err)
				}
				if completed[i].ID == c.ID {
					*c = completed[i]
				}
			}
		}

		if err = tx.SaveSubscription(ctx, s); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		res = snapshot(c, s)
		res.FirstCycle = outcome.FirstCycle
		sub = *s
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLedgerRetryable) {
			u.metrics.LedgerRetryable()
			u.logger.Warn("cycle not committed", slog.String("campaign_id", req.CampaignID), slog.Any("error", err))
		}
		return nil, err
	}

	u.metrics.CycleRecorded(res.Duplicate)
	if res.Duplicate {
		u.logger.Info("duplicate cycle ignored",
			slog.String("campaign_id", req.CampaignID),
			slog.String("dedupe_key", play.DedupeKey))
		return &res, nil
	}

	u.invalidateFeed(ctx)
	u.publishCycle(ctx, owner, camp.Name, play, res, sub, outcome, completed)
	return &res, nil
}

func snapshot(c *domain.Campaign, s *domain.Subscription) port.CycleResult {
	return port.CycleResult{
		CampaignID:            c.ID,
		CampaignStatus:        c.Status,
		RunCycleCount:         c.RunCycleCount,
		CurrentCycles:         s.CurrentCycles,
		RunCycleLimit:         s.RunCycleLimit,
		SubscriptionCompleted: s.IsCompleted,
	}
}

func (u *LedgerUseCase) publishCycle(ctx context.Context, owner *domain.User, name string, play domain.Play, res port.CycleResult, sub domain.Subscription, outcome domain.CycleOutcome, completed []domain.Campaign) {
	if outcome.FirstCycle {
		u.events.Publish(ctx, domain.Event{
			Kind:           domain.EventCycleStarted,
			Recipient:      owner,
			CampaignID:     res.CampaignID,
			SubscriptionID: sub.ID,
			Data:           map[string]any{"campaignName": name},
		})
	}
	if outcome.SubscriptionCompleted {
		u.metrics.SubscriptionCompleted()
		ids := make([]string, 0, len(completed))
		for _, c := range completed {
			ids = append(ids, c.ID)
		}
		u.logger.Info("subscription completed",
			slog.String("subscription_id", sub.ID),
			slog.String("user_id", owner.ID),
			slog.Int("campaigns_completed", len(ids)))
		u.events.Publish(ctx, domain.Event{
			Kind:           domain.EventSubscriptionCompleted,
			Recipient:      owner,
			CampaignID:     res.CampaignID,
			SubscriptionID: sub.ID,
			Data: map[string]any{
				"currentCycles":      res.CurrentCycles,
				"runCycleLimit":      res.RunCycleLimit,
				"completedCampaigns": ids,
			},
		})
	}
	u.events.Publish(ctx, domain.Event{
		Kind:           domain.EventPlayedLocationsUpdated,
		Recipient:      owner,
		CampaignID:     res.CampaignID,
		SubscriptionID: sub.ID,
		Data: map[string]any{
			"campaignName":  name,
			"status":        string(res.CampaignStatus),
			"runCycleCount": res.RunCycleCount,
			"currentCycles": res.CurrentCycles,
			"runCycleLimit": res.RunCycleLimit,
			"latitude":      play.Latitude,
			"longitude":     play.Longitude,
			"playedAt":      play.PlayedAt.Format(time.RFC3339),
		},
	})
}

// SwitchSubscription makes subscriptionID the user's current plan instance
// and re-arms the campaigns completed under the previous one. It commits in
// the unit of the subscription being replaced, so no cycle can exhaust that
// one after the switch. A user without a plan locks the new instance.
func (u *LedgerUseCase) SwitchSubscription(ctx context.Context, userID, subscriptionID, reason string) error {
	now := u.now()
	var rearmed int
	apply := func(ctx context.Context, tx port.LedgerTx) error {
		all, err := tx.ListUserCampaigns(ctx, userID)
		if err != nil {
			return fmt.Errorf("list user campaigns: %w", err)
		}
		changed := domain.RearmCompleted(all, now)
		for i := range changed {
			if err = tx.SaveCampaign(ctx, &changed[i]); err != nil {
				return fmt.Errorf("re-arm campaign %s: %w", changed[i].ID, err)
			}
		}
		rearmed = len(changed)
		return tx.SetCurrentSubscription(ctx, userID, subscriptionID)
	}

	err := inOwnerUnit(ctx, u.users, u.ledger, userID, func(ctx context.Context, tx port.LedgerTx, _ *domain.User) error {
		return apply(ctx, tx)
	})
	if errors.Is(err, domain.ErrNoSubscription) {
		err = u.ledger.WithSubscription(ctx, subscriptionID, apply)
	}
	if err != nil {
		return err
	}
	u.invalidateFeed(ctx)
	u.logger.Info("subscription switched",
		slog.String("user_id", userID),
		slog.String("subscription_id", subscriptionID),
		slog.String("reason", reason),
		slog.Int("campaigns_rearmed", rearmed))
	return nil
}

// ResetLedger rewinds the subscription usage and re-arms every completed
// campaign of the user. It mirrors the completion cascade and runs under
// the same lock.
func (u *LedgerUseCase) ResetLedger(ctx context.Context, userID, subscriptionID, reason string) error {
	now := u.now()
	var rearmed int
	err := u.ledger.WithSubscription(ctx, subscriptionID, func(ctx context.Context, tx port.LedgerTx) error {
		s := tx.Subscription()
		domain.ResetSubscription(s, now)

		all, err := tx.ListUserCampaigns(ctx, userID)
		if err != nil {
			return fmt.Errorf("list user campaigns: %w", err)
		}
		changed := domain.RearmCompleted(all, now)
		for i := range changed {
			if err = tx.SaveCampaign(ctx, &changed[i]); err != nil {
				return fmt.Errorf("re-arm campaign %s: %w", changed[i].ID, err)
			}
		}
		rearmed = len(changed)
		return tx.SaveSubscription(ctx, s)
	})
	if err != nil {
		return err
	}
	u.invalidateFeed(ctx)
	u.logger.Info("ledger reset",
		slog.String("user_id", userID),
		slog.String("subscription_id", subscriptionID),
		slog.String("reason", reason),
		slog.Int("campaigns_rearmed", rearmed))
	return nil
}
