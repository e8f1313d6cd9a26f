package kv

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// New returns the backend for backendType. A nil Backend with a nil error means
// caching is off; the entity cache treats that as an unavailable store.
func New(ctx context.Context, backendType string, redisCfg RedisConfig, log *zap.Logger) (Backend, error) {
	switch backendType {
	case "redis":
		backend, err := NewRedisBackend(ctx, redisCfg, log)
		if err != nil {
			log.Warn("Redis unavailable, entity cache disabled", zap.String("addr", redisCfg.Addr), zap.Error(err))
			return nil, nil
		}
		log.Info("Using redis entity cache", zap.String("addr", redisCfg.Addr))
		return backend, nil
	case "memory":
		log.Info("Using memory entity cache")
		return NewMemoryBackend(), nil
	case "disabled":
		log.Info("Entity cache disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown kv backend: %s (supported: redis, memory, disabled)", backendType)
	}
}
