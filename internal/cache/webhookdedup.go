// Package cache holds the Redis-backed helpers. Authorization state is
// never cached here; revoking a key must take effect on the next request
// regardless of process count.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// WebhookDedup remembers processed provider event ids so at-least-once
// webhook delivery collapses to once-per-event across all processes.
type WebhookDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWebhookDedup(client *redis.Client, ttl time.Duration) *WebhookDedup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &WebhookDedup{client: client, ttl: ttl}
}

// FirstDelivery atomically claims the event id. It returns true exactly once
// per id within the TTL window; concurrent claims race on Redis SETNX.
func (d *WebhookDedup) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil || eventID == "" {
		return true, nil
	}
	return d.client.SetNX(ctx, "webhook:"+eventID, 1, d.ttl).Result()
}
