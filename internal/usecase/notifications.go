package usecase

import (
	"context"
	"log/slog"

	"github.com/V4T54L/notification-service/internal/domain"
)

// DefaultListLimit is used when a list request carries no usable limit.
const DefaultListLimit = 10

// NotificationUseCase serves the read-state and listing commands of the HTTP API.
type NotificationUseCase struct {
	repo   domain.NotificationRepository
	logger *slog.Logger
}

// NewNotificationUseCase creates a NotificationUseCase.
func NewNotificationUseCase(repo domain.NotificationRepository, logger *slog.Logger) *NotificationUseCase {
	return &NotificationUseCase{repo: repo, logger: logger.With("component", "notifications")}
}

// List returns the newest notifications of userID.
func (uc *NotificationUseCase) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	items, err := uc.repo.FindByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// SetReadState marks one notification read or unread. When actorID is empty
// the ownership check is skipped.
func (uc *NotificationUseCase) SetReadState(ctx context.Context, id, actorID string, isRead bool) (*domain.Notification, error) {
	if err := uc.authorize(ctx, id, actorID); err != nil {
		return nil, err
	}
	return uc.repo.UpdateReadState(ctx, id, isRead)
}

// MarkAllRead flips every unread notification of userID.
func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrMissingUser
	}
	n, err := uc.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	uc.logger.Debug("marked notifications read", "user_id", userID, "count", n)
	return n, nil
}

// Delete removes one notification, subject to the same ownership rule as SetReadState.
func (uc *NotificationUseCase) Delete(ctx context.Context, id, actorID string) error {
	if err := uc.authorize(ctx, id, actorID); err != nil {
		return err
	}
	return uc.repo.DeleteByID(ctx, id)
}

// CountUnread returns the number of unread notifications of userID.
func (uc *NotificationUseCase) CountUnread(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrMissingUser
	}
	return uc.repo.CountUnread(ctx, userID)
}

func (uc *NotificationUseCase) authorize(ctx context.Context, id, actorID string) error {
	n, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if actorID != "" && n.UserID != actorID {
		uc.logger.Warn("rejected access to foreign notification", "notification_id", id, "actor_id", actorID)
		return domain.ErrForbidden
	}
	return nil
}
