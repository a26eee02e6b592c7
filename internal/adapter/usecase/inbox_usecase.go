package usecase

import (
	"context"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

// InboxUseCase reads persisted notifications.
type InboxUseCase struct {
	notifications port.NotificationRepository
}

var _ port.InboxUseCase = (*InboxUseCase)(nil)

func NewInboxUseCase(notifications port.NotificationRepository) *InboxUseCase {
	return &InboxUseCase{notifications: notifications}
}

func (u *InboxUseCase) List(ctx context.Context, userID string, role domain.Role) ([]domain.Notification, error) {
	return u.notifications.ListNotifications(ctx, userID, role)
}

// MarkRead flips the read flag. It is the only change a notification ever
// sees.
func (u *InboxUseCase) MarkRead(ctx context.Context, userID string, role domain.Role, id string) error {
	return u.notifications.MarkRead(ctx, id, userID, role)
}
