package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokoku/backend/internal/domain"
)

type RedisSaleSummaryCache struct {
	client *redis.Client
}

func NewRedisSaleSummaryCache(addr string, password string, db int) *RedisSaleSummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSaleSummaryCache{client: client}
}

func (c *RedisSaleSummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSaleSummaryCache) Close() error {
	return c.client.Close()
}

func (c *RedisSaleSummaryCache) Get(ctx context.Context, saleID string) (*domain.SaleSummary, bool, error) {
	val, err := c.client.Get(ctx, summaryKey(saleID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.SaleSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisSaleSummaryCache) Set(ctx context.Context, saleID string, summary *domain.SaleSummary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(saleID), payload, ttl).Err()
}

func (c *RedisSaleSummaryCache) Invalidate(ctx context.Context, saleID string) error {
	return c.client.Del(ctx, summaryKey(saleID)).Err()
}

func summaryKey(saleID string) string {
	return "sale-summary:" + saleID
}
