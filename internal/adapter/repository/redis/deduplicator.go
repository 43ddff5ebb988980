package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "notification-service:dedup:"

// Deduplicator implements domain.Deduplicator with expiring Redis keys.
type Deduplicator struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewDeduplicator creates a Deduplicator whose marks expire after ttl.
func NewDeduplicator(client redis.Cmdable, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, ttl: ttl}
}

func (d *Deduplicator) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return n > 0, nil
}

func (d *Deduplicator) Mark(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, dedupKeyPrefix+key, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dedup key: %w", err)
	}
	return nil
}
