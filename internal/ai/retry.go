package ai

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"log/slog"
	"time"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// RetryPolicy is a fixed backoff: up to Attempts calls with Delay in between.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Retrying retries a [TextGenerator] according to the policy.
type Retrying struct {
	next   TextGenerator
	policy RetryPolicy
	logger *slog.Logger
}

func NewRetrying(next TextGenerator, policy RetryPolicy, logger *slog.Logger) *Retrying {
	return &Retrying{next: next, policy: policy, logger: logger}
}

func (r *Retrying) Generate(ctx context.Context, messages []Message) (string, error) {
	return retry(ctx, r.policy, r.logger, "generate text", func() (string, error) {
		return r.next.Generate(ctx, messages)
	})
}

// RetryingImages retries an [ImageGenerator] according to the policy.
type RetryingImages struct {
	next   ImageGenerator
	policy RetryPolicy
	logger *slog.Logger
}

func NewRetryingImages(next ImageGenerator, policy RetryPolicy, logger *slog.Logger) *RetryingImages {
	return &RetryingImages{next: next, policy: policy, logger: logger}
}

func (r *RetryingImages) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return retry(ctx, r.policy, r.logger, "generate image", func() ([]byte, error) {
		return r.next.GenerateImage(ctx, prompt)
	})
}

func retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := max(policy.Attempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if IsPermanent(err) || ctx.Err() != nil {
			return zero, err
		}
		logger.LogAttrs(ctx, slog.LevelWarn, "attempt failed",
			slog.String("op", op), slog.Int("attempt", attempt), errors.SlogError(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, errors.Wrap(ctx.Err(), "wait for retry", slog.String("op", op))
		case <-time.After(policy.Delay):
		}
	}
	return zero, errors.Wrap(errors.Join(ErrRetriesExhausted, lastErr), op, slog.Int("attempts", attempts))
}
