package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/notification-service/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository in memory.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]domain.Notification
}

// NewNotificationRepository creates an empty NotificationRepository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[string]domain.Notification)}
}

func (r *NotificationRepository) Insert(ctx context.Context, n domain.Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = domain.TypeInfo
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = n
	return n.ID, nil
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	out := make([]domain.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (r *NotificationRepository) UpdateReadState(ctx context.Context, id string, isRead bool) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n.IsRead = isRead
	r.notifications[id] = n
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for id, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r *NotificationRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.notifications, id)
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
