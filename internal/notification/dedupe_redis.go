package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper marks event ids with SETNX and a TTL so all members of the
// notification consumer group share one dedup window.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper over an existing redis client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) MarkIfFirst(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, "ipm:notified:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", eventID, err)
	}
	return first, nil
}
