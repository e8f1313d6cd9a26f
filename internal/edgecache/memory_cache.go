package edgecache

import (
	"container/list"
	"context"
	"sync"
)

type entry struct {
	key   string
	value *CachedResponse
}

// MemoryCache is a bounded in-process LRU.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lruList *list.List
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lruList: list.New(),
	}
}

func (c *MemoryCache) Match(ctx context.Context, key string) (*CachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry).value.clone(), true
}

func (c *MemoryCache) Put(ctx context.Context, key string, resp *CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	value := resp.clone()
	value.Key = key

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		c.lruList.MoveToFront(elem)
		return nil
	}

	if c.lruList.Len() >= c.maxSize {
		oldest := c.lruList.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.lruList.Remove(oldest)
		}
	}

	elem := c.lruList.PushFront(&entry{key: key, value: value})
	c.items[key] = elem
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
