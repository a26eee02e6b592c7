package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

// AccountUseCase keeps the local user table in step with the identity
// provider. New accounts get the welcome email.
type AccountUseCase struct {
	users  port.UserRepository
	events port.EventPublisher
	common
}

var _ port.AccountUseCase = (*AccountUseCase)(nil)

func NewAccountUseCase(users port.UserRepository, events port.EventPublisher, opts ...Option) *AccountUseCase {
	return &AccountUseCase{users: users, events: events, common: newCommon("accounts", opts)}
}

func (u *AccountUseCase) Sync(ctx context.Context, in domain.User) (*domain.User, bool, error) {
	if in.ID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	existing, err := u.users.GetUser(ctx, in.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, false, err
	default:
		if existing.Email == in.Email && existing.Name == in.Name && existing.Role == in.Role {
			return existing, false, nil
		}
	}

	// the current subscription is owned by billing, never by the token
	in.CurrentSubscriptionID = ""
	if err := u.users.UpsertUser(ctx, &in); err != nil {
		return nil, false, err
	}
	synced, err := u.users.GetUser(ctx, in.ID)
	if err != nil {
		return nil, false, err
	}

	created := existing == nil
	if created {
		u.logger.Info("account created", slog.String("user_id", synced.ID))
		u.events.Publish(ctx, domain.Event{Kind: domain.EventWelcome, Recipient: synced})
	}
	return synced, created, nil
}
