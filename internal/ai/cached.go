package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"github.com/myrjola/sleuth/internal/errors"
	"log/slog"
	"time"
)

const cacheKeyPrefix = "sleuth:completion:"

// Cache stores completions by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Cached serves identical conversations from the cache. Cache failures are logged and never fail the call.
type Cached struct {
	next   TextGenerator
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next TextGenerator, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) Generate(ctx context.Context, messages []Message) (string, error) {
	key, err := CacheKey(messages)
	if err != nil {
		return "", err
	}

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "completion cache get failed", errors.SlogError(err))
	} else if ok {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "completion cache hit", slog.String("key", key))
		return cached, nil
	}

	completion, err := c.next.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if err = c.cache.Set(ctx, key, completion, c.ttl); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "completion cache set failed", errors.SlogError(err))
	}
	return completion, nil
}

// CacheKey is the SHA-256 of the JSON encoded conversation.
func CacheKey(messages []Message) (string, error) {
	b, err := json.Marshal(messages)
	if err != nil {
		return "", errors.Wrap(err, "marshal messages")
	}
	sum := sha256.Sum256(b)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
