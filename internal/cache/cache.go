package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Cache 键值缓存，值为已编码的 JSON
// ttl <= 0 时使用实现方的默认过期时间
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReadThrough 命中缓存时直接返回，否则调用 fetch 并写回缓存
// 缓存读写失败只记录日志，不影响结果
func ReadThrough[T any](ctx context.Context, c Cache, key string, ttl time.Duration, logger *zap.Logger, fetch func(context.Context) (T, error)) (T, error) {
	logger = logger.With(zap.String("cache_key", key))

	data, ok, err := c.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("读取缓存失败，回源获取", zap.Error(err))
	case ok:
		var cached T
		if err := sonic.Unmarshal(data, &cached); err != nil {
			logger.Warn("缓存内容无法解析，回源获取", zap.Error(err))
			break
		}
		logger.Debug("命中缓存")
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := sonic.Marshal(value)
	if err != nil {
		logger.Warn("编码缓存内容失败", zap.Error(err))
		return value, nil
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		logger.Warn("写入缓存失败", zap.Error(err))
	}
	return value, nil
}
