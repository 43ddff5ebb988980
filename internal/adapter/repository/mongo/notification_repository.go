package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/V4T54L/notification-service/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository on a MongoDB collection.
type NotificationRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewNotificationRepository creates a repository backed by the notifications collection of db.
func NewNotificationRepository(db *mongo.Database, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		coll:   db.Collection(notificationCollection),
		logger: logger.With("component", "mongo_notifications"),
	}
}

// EnsureIndexes creates the per-user listing index.
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}
	if _, err := r.coll.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}
	return nil
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
	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		return "", &domain.StoreError{Op: "insert notification", Err: err}
	}
	return n.ID, nil
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
	if err != nil {
		return nil, &domain.StoreError{Op: "find notifications", Err: err}
	}
	out := make([]domain.Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, &domain.StoreError{Op: "decode notifications", Err: err}
	}
	return out, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "find notification", Err: err}
	}
	return &n, nil
}

func (r *NotificationRepository) UpdateReadState(ctx context.Context, id string, isRead bool) (*domain.Notification, error) {
	var n domain.Notification
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isRead", Value: isRead}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "update read state", Err: err}
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "userId", Value: userID}, {Key: "isRead", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isRead", Value: true}}}},
	)
	if err != nil {
		return 0, &domain.StoreError{Op: "mark all read", Err: err}
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return &domain.StoreError{Op: "delete notification", Err: err}
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.D{{Key: "userId", Value: userID}, {Key: "isRead", Value: false}})
	if err != nil {
		return 0, &domain.StoreError{Op: "count unread", Err: err}
	}
	return count, nil
}
