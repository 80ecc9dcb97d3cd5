package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/ports/repository"
)

var _ repository.QueryCache = (*QueryCache)(nil)

type cacheEntry struct {
	data    []byte
	expires time.Time
}

// QueryCache is a process-local JSON cache with per-entry TTL.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewQueryCache() *QueryCache {
	return &QueryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *QueryCache) Get(ctx context.Context, key string, dst any) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return domain.ErrCacheMiss
	}
	return json.Unmarshal(e.data, dst)
}

func (c *QueryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := cacheEntry{data: b}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *QueryCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}
