package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "challenge:"

// RedisStore keeps challenges as JSON values with a native key expiry.
// SET replaces the previous value atomically, which gives the
// one-challenge-per-handle guarantee across server instances.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration

	// Now returns the current time. Tests replace it with a fake clock.
	Now func() time.Time
}

// NewRedisStore creates a RedisStore whose challenges live for ttl.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, Now: time.Now}
}

func (s *RedisStore) Put(ctx context.Context, ch *Challenge) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+ch.Handle, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set challenge in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, handle string) (*Challenge, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+handle).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge from redis: %w", err)
	}
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	// Key expiry has one-second granularity; the timestamp check is exact.
	if ch.Expired(s.Now(), s.ttl) {
		return nil, ErrChallengeNotFound
	}
	return &ch, nil
}

func (s *RedisStore) Delete(ctx context.Context, handle string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+handle).Err(); err != nil {
		return fmt.Errorf("delete challenge from redis: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (s *RedisStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
