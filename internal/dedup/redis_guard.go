package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

type RedisGuard struct {
	rdb *redis.Client
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb}
}

// TryClaim uses SET NX EX as the single atomic primitive. A separate
// exists-check followed by a set would race under concurrent submissions.
func (g *RedisGuard) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return true, nil
	}

	ok, err := g.rdb.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, errors.Join(ErrUnavailable, err)
	}
	return ok, nil
}

// Healthcheck returns a probe validating redis connectivity.
func (g *RedisGuard) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := g.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("dedup: ping: %w", err)
		}
		return nil
	}
}
