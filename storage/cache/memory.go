package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// sweepInterval bounds how often writes scan for expired items.
const sweepInterval = time.Minute

type memoryItem struct {
	val       []byte
	expiresAt time.Time // zero: never
}

// MemoryCache is an in-process cache, used when no redis server is configured.
type MemoryCache struct {
	mutex     sync.Mutex
	items     map[string]memoryItem
	lastSweep time.Time
	nowFunc   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:   make(map[string]memoryItem),
		nowFunc: time.Now,
	}
}

// get must be called with the mutex held. Expired items are evicted.
func (c *MemoryCache) get(key string) (memoryItem, bool) {
	item, ok := c.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if item.expired(c.nowFunc()) {
		delete(c.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (item memoryItem) expired(now time.Time) bool {
	return !item.expiresAt.IsZero() && !now.Before(item.expiresAt)
}

// sweep drops every expired item, at most once per sweepInterval. Keys that are never read again
// (old generations, one-off searches) would otherwise stay forever. Must be called with the mutex held.
func (c *MemoryCache) sweep() {
	now := c.nowFunc()
	if now.Sub(c.lastSweep) < sweepInterval {
		return
	}
	c.lastSweep = now
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
		}
	}
}

// Len returns the number of items held, expired ones included until they are swept.
func (c *MemoryCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, ok := c.get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.val...), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sweep()

	item := memoryItem{val: append([]byte(nil), val...)}
	if ttl > 0 {
		item.expiresAt = c.nowFunc().Add(ttl)
	}
	c.items[key] = item
	return nil
}

// Incr behaves like redis INCR: a missing key starts at 0 and the expiry is kept.
func (c *MemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sweep()

	item, _ := c.get(key)
	var n int64
	if len(item.val) > 0 {
		var err error
		if n, err = strconv.ParseInt(string(item.val), 10, 64); err != nil {
			return 0, errors.Errorf("value of %q is not an integer", key)
		}
	}
	n++
	item.val = []byte(strconv.FormatInt(n, 10))
	c.items[key] = item
	return n, nil
}
