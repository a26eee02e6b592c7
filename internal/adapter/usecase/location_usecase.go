package usecase

import (
	"context"
	"errors"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
	"signage-ads/internal/validation"
)

// LocationUseCase manages an owner's geofences.
type LocationUseCase struct {
	locations     port.LocationRepository
	users         port.UserRepository
	subscriptions port.SubscriptionRepository
	common
}

var _ port.LocationUseCase = (*LocationUseCase)(nil)

func NewLocationUseCase(locations port.LocationRepository, users port.UserRepository, subscriptions port.SubscriptionRepository, opts ...Option) *LocationUseCase {
	return &LocationUseCase{
		locations:     locations,
		users:         users,
		subscriptions: subscriptions,
		common:        newCommon("locations", opts),
	}
}

func (u *LocationUseCase) List(ctx context.Context, userID string) ([]domain.Location, error) {
	return u.locations.ListUserLocations(ctx, userID)
}

// Create stores a location. The radius may not exceed the allowed radius
// of the owner's plan, or the default when the owner has none.
func (u *LocationUseCase) Create(ctx context.Context, userID string, in port.LocationInput) (*domain.Location, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := domain.DefaultAllowedRadiusKm
	if user.CurrentSubscriptionID != "" {
		sub, err := u.subscriptions.GetSubscription(ctx, user.CurrentSubscriptionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if sub != nil {
			limit = sub.Radius()
		}
	}
	if in.Radius > limit {
		return nil, validation.Errorf("radius %.1f km exceeds allowed %.1f km", in.Radius, limit)
	}

	l := &domain.Location{
		UserID:    userID,
		Name:      in.Name,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Radius:    in.Radius,
		State:     in.State,
	}
	if err = u.locations.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
