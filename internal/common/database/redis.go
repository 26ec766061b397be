package database

import (
	"context"
	"time"

	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the submission guard, the daily mail quota and the
// reconcile lock.
type RedisClient struct {
	Client *redis.Client
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
		MinIdleConns: 2,
	}
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, errors.NewValidationError("redis address is required", "database.redis.address")
	}
	return &RedisClient{Client: redis.NewClient(redisOptions(cfg))}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.NewExternalServiceError("redis", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
