package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/V4T54L/notification-service/internal/domain"
)

// AuditRepository implements domain.AuditRepository on a MongoDB collection.
// Expiry is enforced by a TTL index on timestamp.
type AuditRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewAuditRepository creates a repository backed by the events collection of db.
func NewAuditRepository(db *mongo.Database, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{
		coll:   db.Collection(auditCollection),
		logger: logger.With("component", "mongo_audit"),
	}
}

// EnsureIndexes creates the retention TTL index and the lookup indexes.
func (r *AuditRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("timestamp_ttl").SetExpireAfterSeconds(int32(retention / time.Second)),
		},
		{
			Keys: bson.D{{Key: "serviceSource", Value: 1}, {Key: "entityId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "metadata.projectId", Value: 1}},
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, event); err != nil {
		return "", &domain.StoreError{Op: "append audit event", Err: err}
	}
	return event.ID, nil
}

func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.coll.Find(ctx, buildAuditFilter(filter), opts)
	if err != nil {
		return nil, &domain.StoreError{Op: "query audit events", Err: err}
	}
	events := make([]domain.AuditEvent, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, &domain.StoreError{Op: "decode audit events", Err: err}
	}
	return events, nil
}

func (r *AuditRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
	if err != nil {
		return 0, &domain.StoreError{Op: "purge audit events", Err: err}
	}
	return res.DeletedCount, nil
}

func buildAuditFilter(f domain.AuditFilter) bson.D {
	filter := bson.D{}

	project := bson.A{}
	if f.ProjectNumber != nil {
		project = append(project,
			bson.D{{Key: "metadata.projectId", Value: *f.ProjectNumber}},
			bson.D{{Key: "metadata.projet", Value: *f.ProjectNumber}})
	}
	if f.ProjectID != "" {
		project = append(project, bson.D{
			{Key: "entityId", Value: f.ProjectID},
			{Key: "serviceSource", Value: domain.ProjectSource},
		})
	}
	if len(project) > 0 {
		filter = append(filter, bson.E{Key: "$or", Value: project})
	}
	if f.ServiceSource != "" {
		filter = append(filter, bson.E{Key: "serviceSource", Value: f.ServiceSource})
	}
	if f.EntityID != "" {
		filter = append(filter, bson.E{Key: "entityId", Value: f.EntityID})
	}
	if f.UserID != "" {
		filter = append(filter, bson.E{Key: "userId", Value: f.UserID})
	}
	return filter
}
