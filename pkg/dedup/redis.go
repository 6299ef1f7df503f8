package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "orion:dedup:"

// RedisGuard keeps dedup keys in Redis so cool-downs survive a process
// restart. SET NX with a TTL gives the same atomic check-and-insert as the
// memory guard; Redis expires the entries itself, no sweep needed.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// TryAcquire implements Guard.
func (g *RedisGuard) TryAcquire(ctx context.Context, key Key, cooldown time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, redisKey(key), time.Now().UTC().Format(time.RFC3339), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring dedup key for %s/%s: %w", key.Subject, key.ActionType, err)
	}
	return ok, nil
}

func redisKey(key Key) string {
	return redisKeyPrefix + key.ActionType + ":" + key.Subject
}
