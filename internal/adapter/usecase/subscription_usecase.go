package usecase

import (
	"context"
	"log/slog"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

// SubscriptionUseCase creates plans and attaches them to accounts. Paying
// for or being gifted a plan either renews the account's current instance
// of it with a ledger reset or switches the account to a fresh instance.
type SubscriptionUseCase struct {
	subscriptions port.SubscriptionRepository
	users         port.UserRepository
	ledger        port.LedgerUseCase
	events        port.EventPublisher
	common
}

var _ port.SubscriptionUseCase = (*SubscriptionUseCase)(nil)

func NewSubscriptionUseCase(subscriptions port.SubscriptionRepository, users port.UserRepository, ledger port.LedgerUseCase, events port.EventPublisher, opts ...Option) *SubscriptionUseCase {
	return &SubscriptionUseCase{
		subscriptions: subscriptions,
		users:         users,
		ledger:        ledger,
		events:        events,
		common:        newCommon("subscriptions", opts),
	}
}

// CreatePlan stores a plan paired with a billing price.
func (u *SubscriptionUseCase) CreatePlan(ctx context.Context, in port.PlanInput) (*domain.Subscription, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	s := &domain.Subscription{
		Name:                in.Name,
		PriceID:             in.PriceID,
		RunCycleLimit:       in.RunCycleLimit,
		CampaignLimit:       in.CampaignLimit,
		LocationLimit:       in.LocationLimit,
		AllowedRadius:       in.AllowedRadius,
		AdCampaignTimeLimit: in.AdCampaignTimeLimit,
	}
	if err := u.subscriptions.CreateSubscription(ctx, s); err != nil {
		return nil, err
	}
	u.logger.Info("plan created", slog.String("subscription_id", s.ID), slog.String("price_id", s.PriceID))
	return s, nil
}

func (u *SubscriptionUseCase) PaymentSucceeded(ctx context.Context, in port.PaymentInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	return u.attach(ctx, in.UserID, in.SubscriptionID, "payment")
}

func (u *SubscriptionUseCase) Gift(ctx context.Context, userID, subscriptionID string) error {
	if userID == "" || subscriptionID == "" {
		return validation.Errorf("user id and subscription id are required")
	}
	return u.attach(ctx, userID, subscriptionID, "gift")
}

// Reactivate rewinds the user's current subscription without a payment.
func (u *SubscriptionUseCase) Reactivate(ctx context.Context, userID string) error {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.CurrentSubscriptionID == "" {
		return domain.ErrNoSubscription
	}
	if err = u.ledger.ResetLedger(ctx, userID, user.CurrentSubscriptionID, "reactivation"); err != nil {
		return err
	}
	u.events.Publish(ctx, domain.Event{
		Kind:           domain.EventSubscriptionUpdated,
		Recipient:      user,
		SubscriptionID: user.CurrentSubscriptionID,
		Data:           map[string]any{"reason": "reactivation"},
	})
	return nil
}

func (u *SubscriptionUseCase) attach(ctx context.Context, userID, planID, reason string) error {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	plan, err := u.subscriptions.GetSubscription(ctx, planID)
	if err != nil {
		return err
	}

	kind := domain.EventSubscriptionPurchased
	target := ""
	if user.CurrentSubscriptionID != "" {
		current, err := u.subscriptions.GetSubscription(ctx, user.CurrentSubscriptionID)
		if err != nil {
			return err
		}
		// Same price: renewal of the instance the user already holds.
		if current.ID == plan.ID || current.PriceID == plan.PriceID {
			target = current.ID
			kind = domain.EventSubscriptionUpdated
		}
	}

	if target == "" {
		inst := &domain.Subscription{
			Name:                plan.Name,
			PriceID:             plan.PriceID,
			RunCycleLimit:       plan.RunCycleLimit,
			CampaignLimit:       plan.CampaignLimit,
			LocationLimit:       plan.LocationLimit,
			AllowedRadius:       plan.AllowedRadius,
			AdCampaignTimeLimit: plan.AdCampaignTimeLimit,
		}
		if err = u.subscriptions.CreateSubscription(ctx, inst); err != nil {
			return err
		}
		if err = u.ledger.SwitchSubscription(ctx, userID, inst.ID, reason); err != nil {
			return err
		}
		target = inst.ID
		user.CurrentSubscriptionID = inst.ID
	} else if err = u.ledger.ResetLedger(ctx, userID, target, reason); err != nil {
		return err
	}

	u.logger.Info("subscription attached",
		slog.String("user_id", userID),
		slog.String("subscription_id", target),
		slog.String("reason", reason))
	u.events.Publish(ctx, domain.Event{
		Kind:           kind,
		Recipient:      user,
		SubscriptionID: target,
		Data: map[string]any{
			"planName":      plan.Name,
			"reason":        reason,
			"runCycleLimit": plan.RunCycleLimit,
			"userEmail":     user.Email,
		},
	})
	return nil
}
