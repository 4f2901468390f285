package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers webhook delivery ids for a TTL so a captured delivery
// replayed inside the signature tolerance window is still caught.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func deliveryKey(provider, deliveryID string) string {
	return fmt.Sprintf("webhook_seen:%s:%s", provider, deliveryID)
}

// Seen reports whether the delivery id was already recorded. It does not
// record anything itself: a delivery only counts as seen once Mark ran
// after a successful persist, so a failed persist leaves the provider's
// retry able to get through.
func (c *Cache) Seen(ctx context.Context, provider, deliveryID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, deliveryKey(provider, deliveryID)).Result()
	if err != nil {
		return false, fmt.Errorf("error checking replay cache: %w", err)
	}
	return n > 0, nil
}

// Mark records the delivery id for the cache TTL.
func (c *Cache) Mark(ctx context.Context, provider, deliveryID string) error {
	if err := c.rdb.Set(ctx, deliveryKey(provider, deliveryID), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("error recording delivery id: %w", err)
	}
	return nil
}
