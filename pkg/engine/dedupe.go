package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper filters duplicate trigger deliveries. Webhook providers redeliver;
// without dedupe a redelivered trigger starts a second execution and the
// subscriber sees the conversation twice.
type Deduper interface {
	// FirstSeen reports whether this event id has not been processed before.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

const dedupeKeyPrefix = "botflow:trigger:"

// RedisDeduper implements Deduper with a SETNX claim per event id. The claim
// expires after the TTL so the key space stays bounded.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	claimed, err := d.client.SetNX(ctx, dedupeKeyPrefix+eventID, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim trigger event %s: %w", eventID, err)
	}

	return claimed, nil
}
