package edgecache

import "context"

// NoopCache never stores anything.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Match(ctx context.Context, key string) (*CachedResponse, bool) {
	return nil, false
}

func (c *NoopCache) Put(ctx context.Context, key string, resp *CachedResponse) error {
	return nil
}
