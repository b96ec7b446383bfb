package idempotency

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers which order an idempotency key produced. It is a fast
// path only: the unique index on the orders table is authoritative, so a
// cache miss or a cold cache is always safe.
type Store interface {
	Recall(ctx context.Context, scope, key string) (int, bool, error)
	Remember(ctx context.Context, scope, key string, orderID int) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Recall(ctx context.Context, scope, key string) (int, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:"+scope+":"+key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (s *RedisStore) Remember(ctx context.Context, scope, key string, orderID int) error {
	return s.rdb.Set(ctx, "idemp:"+scope+":"+key, strconv.Itoa(orderID), s.ttl).Err()
}

var _ Store = (*RedisStore)(nil)
