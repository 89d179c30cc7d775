// Package cache keeps model completions in Redis so that identical conversations are not paid for twice.
package cache

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"time"
)

type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis connects lazily to the Redis server at addr.
func NewRedis(addr string, logger *slog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}), //nolint:exhaustruct // defaults are fine
		logger: logger,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}

// Get returns false when the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get", slog.String("key", key))
	}
	return value, true, nil
}

// Set stores the value. Zero ttl keeps it forever.
func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set", slog.String("key", key))
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "cached value", slog.String("key", key), slog.Int("length", len(value)))
	return nil
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "close redis client")
	}
	return nil
}
