package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency and rate-limit calls are bounded well under a request timeout.
const redisCommandTimeout = 2 * time.Second

// NewRedisClient connects the idempotency and rate-limit store and verifies
// it answers.
func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opt, err := redisOptions(url, poolSize)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redisOptions(url string, poolSize int) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	opt.ReadTimeout = redisCommandTimeout
	opt.WriteTimeout = redisCommandTimeout
	return opt, nil
}
