package redis

import (
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ResultCache stores hybrid results under "reco:user:{id}:limit:{n}" with SET EX.
// Redis failures are logged and reported as misses.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: client,
		ttl:    ttl,
	}
}

func resultKey(userID uint64, limit int) string {
	return fmt.Sprintf("reco:user:%d:limit:%d", userID, limit)
}

func userPattern(userID uint64) string {
	return fmt.Sprintf("reco:user:%d:limit:*", userID)
}

func (c *ResultCache) Get(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, bool) {
	val, err := c.client.Get(ctx, resultKey(userID, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Failed to read cached recommendations", "user_id", userID, "error", err)
		}
		return nil, false
	}

	var recs []domain.Recommendation
	if err := json.Unmarshal(val, &recs); err != nil {
		logger.Warn("Discarding unreadable cache entry", "user_id", userID, "error", err)
		return nil, false
	}
	return recs, true
}

func (c *ResultCache) Set(ctx context.Context, userID uint64, limit int, recs []domain.Recommendation) {
	data, err := json.Marshal(recs)
	if err != nil {
		logger.Warn("Failed to encode recommendations for cache", "user_id", userID, "error", err)
		return
	}

	if err := c.client.Set(ctx, resultKey(userID, limit), data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache recommendations", "user_id", userID, "error", err)
	}
}

// InvalidateUser scans the user's keys and deletes them in batches.
func (c *ResultCache) InvalidateUser(ctx context.Context, userID uint64) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, userPattern(userID), 100).Result()
		if err != nil {
			logger.Warn("Failed to scan cached recommendations", "user_id", userID, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				logger.Warn("Failed to invalidate cached recommendations", "user_id", userID, "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
