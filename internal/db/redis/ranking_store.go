package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Mosaic/internal/core/listing"

	goredis "github.com/redis/go-redis/v9"
)

// RankingStore is the cache service backing listing.RankingCache.
// Values are opaque; expiry is delegated to Redis key TTLs.
type RankingStore struct {
	client goredis.Cmdable
	prefix string
}

// NewRankingStore wraps a Redis client. prefix namespaces every key.
func NewRankingStore(client goredis.Cmdable, prefix string) *RankingStore {
	return &RankingStore{client: client, prefix: prefix}
}

var _ listing.RankingStore = (*RankingStore)(nil)

func (s *RankingStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, listing.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *RankingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the cache service is reachable
func (s *RankingStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
