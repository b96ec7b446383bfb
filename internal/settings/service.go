package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service reads configuration with a Redis read-through cache in front of
// the repository. Every read is fail-soft: when the key is missing or the
// storage misbehaves the caller-supplied default is returned, so pricing
// stays available even when configuration storage is down.
type Service struct {
	repo Repository
	rdb  *redis.Client // optional; nil disables caching
	ttl  time.Duration
	log  *slog.Logger
}

func NewService(repo Repository, rdb *redis.Client, log *slog.Logger) *Service {
	return &Service{repo: repo, rdb: rdb, ttl: 5 * time.Minute, log: log}
}

// Get returns the stored value for key, or def when the key is absent or
// the lookup fails.
func (s *Service) Get(ctx context.Context, key, def string) string {
	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, cacheKey(key)).Result()
		if err == nil {
			return val
		}
		if err != redis.Nil {
			s.log.Warn("settings cache read failed", "key", key, "err", err)
		}
	}

	val, err := s.repo.Get(key)
	if err != nil {
		if err != ErrNotFound {
			s.log.Warn("settings read failed, using default", "key", key, "err", err)
		}
		return def
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey(key), val, s.ttl).Err(); err != nil {
			s.log.Warn("settings cache write failed", "key", key, "err", err)
		}
	}
	return val
}

// Set writes a value and drops any cached copy.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(key, value); err != nil {
		return err
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey(key)).Err(); err != nil {
			s.log.Warn("settings cache invalidation failed", "key", key, "err", err)
		}
	}
	return nil
}

func cacheKey(key string) string {
	return "settings:" + key
}
