package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ComputeFunc recomputes a ranking from the primary store
type ComputeFunc func(ctx context.Context) ([]RankedEntry, error)

// RankingCache is a cache-aside wrapper for expensive rankings.
// Entries expire by TTL only; there is no invalidation path. Two concurrent
// misses on one key both compute and both write an equivalent payload.
type RankingCache struct {
	store  RankingStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRankingCache creates a ranking cache. A nil store disables caching and
// every call computes directly.
func NewRankingCache(store RankingStore, logger *slog.Logger) *RankingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingCache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCompute returns the cached ranking for key, computing and storing it on a miss.
// Cache failures degrade to computing; only compute errors are returned.
func (c *RankingCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]RankedEntry, error) {
	if c.store != nil {
		entries, err := c.lookup(ctx, key)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("ranking cache read failed, computing directly",
				"key", key,
				"error", err)
		}
	}

	entries, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ranking %s: %w", key, err)
	}

	if c.store != nil {
		c.save(ctx, key, ttl, entries)
	}

	return entries, nil
}

func (c *RankingCache) lookup(ctx context.Context, key string) ([]RankedEntry, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var list RankedIDList
	if err := json.Unmarshal(raw, &list); err != nil || list.Key != key {
		c.logger.Warn("discarding unreadable ranking cache entry", "key", key)
		return nil, ErrCacheMiss
	}

	c.logger.Debug("ranking cache hit",
		"key", key,
		"entries", len(list.Entries),
		"computed_at", list.ComputedAt)

	return list.Entries, nil
}

func (c *RankingCache) save(ctx context.Context, key string, ttl time.Duration, entries []RankedEntry) {
	if entries == nil {
		entries = []RankedEntry{}
	}
	raw, err := json.Marshal(RankedIDList{
		Key:        key,
		Entries:    entries,
		ComputedAt: c.now().UTC(),
	})
	if err != nil {
		c.logger.Warn("failed to encode ranking", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("ranking cache write failed",
			"key", key,
			"error", fmt.Errorf("%w: %v", ErrCacheUnavailable, err))
	}
}
