package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentops/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisTaskTracker keeps the last task id under a single key.
type RedisTaskTracker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisClient builds a client from the redis section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisTaskTracker(client *redis.Client, key string, ttl time.Duration) *RedisTaskTracker {
	return &RedisTaskTracker{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisTaskTracker) LastTaskID(ctx context.Context) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last task id from redis: %w", err)
	}
	return val, nil
}

func (r *RedisTaskTracker) SetLastTaskID(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if id == "" {
		return r.ClearLastTaskID(ctx)
	}
	if err := r.client.Set(ctx, r.key, id, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set last task id in redis: %w", err)
	}
	return nil
}

func (r *RedisTaskTracker) ClearLastTaskID(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete last task id from redis: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
