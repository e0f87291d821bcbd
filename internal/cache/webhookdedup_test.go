package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDedup(t *testing.T) *WebhookDedup {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWebhookDedup(client, time.Hour)
}

func TestFirstDeliveryClaimsOnce(t *testing.T) {
	dedup := newTestDedup(t)
	ctx := context.Background()

	first, err := dedup.FirstDelivery(ctx, "evt-1")
	if err != nil {
		t.Fatalf("FirstDelivery: %v", err)
	}
	if !first {
		t.Fatal("first claim rejected")
	}

	second, err := dedup.FirstDelivery(ctx, "evt-1")
	if err != nil {
		t.Fatalf("FirstDelivery: %v", err)
	}
	if second {
		t.Fatal("duplicate claim accepted")
	}

	other, err := dedup.FirstDelivery(ctx, "evt-2")
	if err != nil {
		t.Fatalf("FirstDelivery: %v", err)
	}
	if !other {
		t.Fatal("distinct event id rejected")
	}
}

func TestFirstDeliveryWithoutClientIsOpen(t *testing.T) {
	var dedup *WebhookDedup
	first, err := dedup.FirstDelivery(context.Background(), "evt-1")
	if err != nil || !first {
		t.Fatalf("nil dedup should admit: %v, %v", first, err)
	}
}
