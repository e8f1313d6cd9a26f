// Package entitycache is the read-through, invalidate-on-write cache for
// structured records. Caching is best-effort: every backend failure degrades to
// "no cache" and is logged, never returned.
package entitycache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/detach"
	"inkwell/internal/kv"
	"inkwell/internal/logger"
	"inkwell/internal/metrics"
)

// FetchFn loads the authoritative value on a miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Helper wraps an optional kv.Backend. A nil backend means the store is
// unavailable and every call goes straight to the fetcher.
type Helper struct {
	backend kv.Backend
	tasks   *detach.Group
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(backend kv.Backend, tasks *detach.Group, log *zap.Logger, m *metrics.Metrics) *Helper {
	if tasks == nil {
		tasks = detach.New(0, log)
	}
	return &Helper{
		backend: backend,
		tasks:   tasks,
		logger:  logger.Component(log, "EntityCache"),
		metrics: m,
	}
}

// Available reports whether a backend was configured.
func (h *Helper) Available() bool {
	return h != nil && h.backend != nil
}

// Wait blocks until pending write-backs have finished.
func (h *Helper) Wait() {
	if h != nil {
		h.tasks.Wait()
	}
}

// GetOrFetch returns the cached value for key, or calls fetch and writes the
// result back in the background with ttl. Absent results (nil pointers, maps,
// interfaces) are returned but never stored. Errors from fetch are returned
// as-is; cache errors are not.
func GetOrFetch[T any](ctx context.Context, h *Helper, key string, fetch FetchFn[T], ttl time.Duration) (T, error) {
	if !h.Available() {
		if h != nil {
			h.logger.Debug("KV backend is not available", zap.String("key", key))
			h.metrics.EntityLookup(metrics.ResultUnavailable)
		}
		return fetch(ctx)
	}

	data, err := h.backend.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		decodeErr := json.Unmarshal(data, &cached)
		if decodeErr == nil {
			h.metrics.EntityLookup(metrics.ResultHit)
			return cached, nil
		}
		h.logger.Warn("KV cache entry is corrupt", zap.String("key", key), zap.Error(decodeErr))
		h.metrics.EntityLookup(metrics.ResultCorrupt)
	case errors.Is(err, kv.ErrNotFound):
		h.metrics.EntityLookup(metrics.ResultMiss)
	default:
		h.logger.Warn("KV cache read error", zap.String("key", key), zap.Error(err))
		h.metrics.EntityLookup(metrics.ResultError)
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if isAbsent(value) {
		return value, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		h.logger.Warn("KV cache encode error", zap.String("key", key), zap.Error(err))
		return value, nil
	}

	backend := h.backend
	h.tasks.Go(ctx, "kv write "+key, func(ctx context.Context) error {
		return backend.Put(ctx, key, payload, ttl)
	})

	return value, nil
}

// Invalidate deletes every key independently. One failed delete does not stop
// the others; failures are logged per key.
func (h *Helper) Invalidate(ctx context.Context, keys []string) {
	if !h.Available() || len(keys) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, key := range dedupe(keys) {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if err := h.backend.Delete(ctx, key); err != nil {
				h.logger.Warn("Failed to invalidate cache key", zap.String("key", key), zap.Error(err))
				h.metrics.EntityInvalidation(metrics.ResultError)
				return
			}
			h.metrics.EntityInvalidation(metrics.ResultOK)
		}(key)
	}
	wg.Wait()
}

// InvalidateByPrefix deletes every key the backend lists under prefix. A listing
// failure is logged and nothing is deleted.
func (h *Helper) InvalidateByPrefix(ctx context.Context, prefix string) {
	if !h.Available() {
		return
	}

	keys, err := h.backend.List(ctx, prefix)
	if err != nil {
		h.logger.Warn("Failed to list cache keys", zap.String("prefix", prefix), zap.Error(err))
		return
	}

	h.logger.Debug("Invalidating by prefix", zap.String("prefix", prefix), zap.Int("keys", len(keys)))
	h.Invalidate(ctx, keys)
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
