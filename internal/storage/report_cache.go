package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tappo/tappo/internal/models"
)

const reportKeyPrefix = "tappo:report:"

// RedisReportCache stores reports as JSON strings with a TTL.
type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(client *redis.Client) *RedisReportCache {
	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (*models.Report, bool, error) {
	val, err := c.client.Get(ctx, reportKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached report: %w", err)
	}

	var r models.Report
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return &r, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, r *models.Report, ttl time.Duration) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.client.Set(ctx, reportKeyPrefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}
