package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/notification-service/internal/domain"
)

const notificationColumns = `id, user_id, subject, content, type, is_read, created_at`

// NotificationRepository implements domain.NotificationRepository on PostgreSQL.
type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNotificationRepository creates a new PostgreSQL notification repository.
func NewNotificationRepository(db *sql.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger.With("component", "postgres_notifications")}
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

	const query = `INSERT INTO notifications (` + notificationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Subject, n.Content, string(n.Type), n.IsRead, n.CreatedAt)
	if err != nil {
		return "", &domain.StoreError{Op: "insert notification", Err: err}
	}
	return n.ID, nil
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "find notifications", Err: err}
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "scan notification", Err: err}
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "find notifications", Err: err}
	}
	return out, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "find notification", Err: err}
	}
	return n, nil
}

func (r *NotificationRepository) UpdateReadState(ctx context.Context, id string, isRead bool) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = $2 WHERE id = $1 RETURNING `+notificationColumns, id, isRead)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "update read state", Err: err}
	}
	return n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, &domain.StoreError{Op: "mark all read", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StoreError{Op: "mark all read", Err: err}
	}
	return n, nil
}

func (r *NotificationRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return &domain.StoreError{Op: "delete notification", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StoreError{Op: "delete notification", Err: err}
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, &domain.StoreError{Op: "count unread", Err: err}
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var (
		n     domain.Notification
		ntype string
	)
	if err := s.Scan(&n.ID, &n.UserID, &n.Subject, &n.Content, &ntype, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(ntype)
	return &n, nil
}
