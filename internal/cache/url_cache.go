// Package cache implements URLCache: a bounded, TTL-expiring, single-flight
// coalescing key/value store used to memoize obfuscated-URL resolution.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/streamgate/streamgate/internal/health"
)

// Fetch resolves the value for a cache miss. It is invoked at most once per
// key per epoch, regardless of how many concurrent callers requested it.
type Fetch func(ctx context.Context) (string, error)

// Options bounds the cache.
type Options struct {
	MaxResolved int
	MaxPending  int
}

// pendingEntry tracks in-flight resolveOnce calls so the pending-overflow
// bound can evict the oldest bookkeeping entry without disturbing the
// singleflight call already underway.
type pendingEntry struct {
	key      string
	refcount int
	elem     *list.Element
}

// URLCache is a bounded TTL cache with single-flight request coalescing,
// implementing spec §4.1's get/put/resolveOnce contract.
type URLCache struct {
	store *gocache.Cache
	sf    singleflight.Group

	mu          sync.Mutex
	order       *list.List // FIFO order of resolved keys, front = oldest
	elemByKey   map[string]*list.Element
	maxResolved int

	pendingMu    sync.Mutex
	pendingOrder *list.List // FIFO order of pending keys, front = oldest
	pending      map[string]*pendingEntry
	maxPending   int
}

// New creates a URLCache with the given TTL-default and bounds.
func New(defaultTTL time.Duration, opts Options) *URLCache {
	maxResolved := opts.MaxResolved
	if maxResolved <= 0 {
		maxResolved = 500
	}
	maxPending := opts.MaxPending
	if maxPending <= 0 {
		maxPending = 100
	}

	c := &URLCache{
		store:        gocache.New(defaultTTL, defaultTTL/2),
		order:        list.New(),
		elemByKey:    make(map[string]*list.Element),
		maxResolved:  maxResolved,
		pendingOrder: list.New(),
		pending:      make(map[string]*pendingEntry),
		maxPending:   maxPending,
	}

	return c
}

// Get returns the cached value for key, if present and unexpired.
func (c *URLCache) Get(key string) (string, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		health.CacheMissesTotal.Inc()
		return "", false
	}
	health.CacheHitsTotal.Inc()
	return v.(string), true
}

// Put inserts value for key with the given ttl, evicting the oldest entry
// (FIFO-as-LRU) if the cache is at capacity.
func (c *URLCache) Put(key, value string, ttl time.Duration) {
	c.mu.Lock()
	if elem, ok := c.elemByKey[key]; ok {
		// Re-insertion cancels and replaces any existing expiration, and
		// moves the key to the back of the FIFO order.
		c.order.Remove(elem)
		delete(c.elemByKey, key)
	}

	for c.order.Len() >= c.maxResolved {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		oldestKey := oldest.Value.(string)
		c.order.Remove(oldest)
		delete(c.elemByKey, oldestKey)
		c.store.Delete(oldestKey)
	}

	elem := c.order.PushBack(key)
	c.elemByKey[key] = elem
	c.mu.Unlock()

	if ttl > 0 {
		c.store.Set(key, value, ttl)
	} else {
		c.store.SetDefault(key, value)
	}
}

// ResolveOnce implements the get/coalesce/fetch contract: a cache hit
// returns immediately; a miss joins any in-flight fetch for key, or starts
// one. Fetch errors are surfaced to every coalesced waiter and never cached.
func (c *URLCache) ResolveOnce(ctx context.Context, key string, ttl time.Duration, fetch Fetch) (string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.registerPending(key)
	defer c.releasePending(key)

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		c.Put(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// registerPending tracks key as in-flight, evicting the oldest pending
// bookkeeping entry if the pending bound is exceeded. Eviction only drops
// our own accounting; it does not cancel the shared singleflight fetch,
// whose remaining waiters (if any) still proceed independently.
func (c *URLCache) registerPending(key string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if pe, ok := c.pending[key]; ok {
		pe.refcount++
		return
	}

	for c.pendingOrder.Len() >= c.maxPending {
		oldest := c.pendingOrder.Front()
		if oldest == nil {
			break
		}
		oldestKey := oldest.Value.(string)
		c.pendingOrder.Remove(oldest)
		delete(c.pending, oldestKey)
	}

	elem := c.pendingOrder.PushBack(key)
	c.pending[key] = &pendingEntry{key: key, refcount: 1, elem: elem}
}

// releasePending decrements the refcount for key; the last waiter removes
// the bookkeeping entry entirely (see §9's "cancellation of coalesced work").
func (c *URLCache) releasePending(key string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	pe, ok := c.pending[key]
	if !ok {
		return
	}
	pe.refcount--
	if pe.refcount <= 0 {
		c.pendingOrder.Remove(pe.elem)
		delete(c.pending, key)
	}
}

// Len reports the number of resolved entries in the FIFO eviction list. An
// entry whose TTL has lapsed still counts until it is evicted or replaced.
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// PendingLen reports the number of distinct keys with an in-flight resolve.
func (c *URLCache) PendingLen() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pendingOrder.Len()
}
