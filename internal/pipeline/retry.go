package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"timetable-collator/internal/cache"
	apperrors "timetable-collator/pkg/errors"
)

// ErrRetriesExhausted 临时性错误用完重试次数
var ErrRetriesExhausted = errors.New("重试次数已用完")

// RetryPolicy 有界重试；只有临时性错误会重试，认证与不存在错误立即返回
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // 两次尝试之间的固定等待，0 表示立即重试
}

func withRetry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !apperrors.IsRetryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		logger.Warn("上游请求失败，准备重试",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(policy.Backoff):
			}
		}
	}
	return zero, fmt.Errorf("%s: %w: %w", op, ErrRetriesExhausted, lastErr)
}

// fetch 读穿缓存 + 有界重试
func fetch[T any](ctx context.Context, r *run, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return cache.ReadThrough(ctx, r.p.cache, key, ttl, r.logger, func(ctx context.Context) (T, error) {
		return withRetry(ctx, r.p.opts.Retry, r.logger, key, fn)
	})
}
