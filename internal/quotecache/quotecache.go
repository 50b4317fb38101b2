// Package quotecache memoizes QuoteResults keyed on the request shape
// that determines them (§4.7): (chain id, tokenIn, tokenOut, a
// bucketed amount, slippage bps, max hops, max splits). Entries expire
// after a TTL and the cache evicts least-recently-used entries once it
// reaches capacity.
//
// No library in the retrieval pack provides LRU-with-TTL caching or
// single-flight request coalescing (neither hashicorp/golang-lru nor
// golang.org/x/sync/singleflight appear in any example's go.mod), so
// this is built directly on container/list + a guarded map, the same
// doubly-linked-list-plus-map shape container/list's own docs
// recommend for an LRU and the one the teacher's
// internal/cache/memory_store.go uses for its pool-graph cache (a
// mutex-guarded map with manual expiry, generalized here to also
// maintain recency order for eviction).
package quotecache

import (
	"container/list"
	"fmt"
	"math/big"
	"sync"
	"time"

	"routing-engine/internal/metrics"
	"routing-engine/internal/types"
)

// DefaultTTL and DefaultCapacity are the cache defaults when the
// caller does not override them (§6 configuration table:
// cache_ttl_seconds, cache_capacity).
const (
	DefaultTTL      = 15 * time.Second
	DefaultCapacity = 1000
)

// Key identifies a cacheable quote request. Amount is expected to
// already be bucketed (see Bucket) before constructing a Key so that
// nearby amounts share a cache entry.
type Key struct {
	ChainID     int64
	TokenIn     string
	TokenOut    string
	Amount      string // bucketed amount, decimal string
	SlippageBps int
	MaxHops     int
	MaxSplits   int
}

func (k Key) string() string {
	return fmt.Sprintf("%d|%s|%s|%s|%d|%d|%d", k.ChainID, k.TokenIn, k.TokenOut, k.Amount, k.SlippageBps, k.MaxHops, k.MaxSplits)
}

// Bucket rounds amount down to the nearest multiple of granularity, so
// e.g. 1_050_000 and 1_090_000 (granularity 1_000_000) share a cache
// entry. The bucket width is fixed at granularity; it does not scale
// with the size of the amount. granularity of 0 or 1 disables
// bucketing (amount is used as-is).
func Bucket(amount *big.Int, granularity int64) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if granularity <= 1 {
		return new(big.Int).Set(amount)
	}
	g := big.NewInt(granularity)
	bucketed := new(big.Int).Div(amount, g)
	return bucketed.Mul(bucketed, g)
}

type entry struct {
	key       string
	value     *types.QuoteResult
	expiresAt time.Time
	elem      *list.Element
}

// Cache is a TTL + LRU cache of QuoteResults. The zero value is not
// usable; construct with New.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	items    map[string]*entry
	order    *list.List // front = most recently used

	hits   uint64
	misses uint64
	evictions uint64

	metrics *metrics.Metrics
}

// New returns an empty Cache. ttl<=0 or capacity<=0 fall back to the
// package defaults.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[string]*entry),
		order:    list.New(),
	}
}

// SetMetrics attaches a Metrics bundle so Get/Put mirror their hit,
// miss, and eviction counts into Prometheus. Passing nil disables
// reporting, which is also the zero-value behavior.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Get returns the cached result for key if present and unexpired,
// promoting it to most-recently-used.
func (c *Cache) Get(key Key) (*types.QuoteResult, bool) {
	k := key.string()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[k]
	if !ok {
		c.misses++
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		c.misses++
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return nil, false
	}

	c.order.MoveToFront(e.elem)
	c.hits++
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
	return e.value, true
}

// Put inserts or refreshes the entry for key, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(key Key, value *types.QuoteResult) {
	k := key.string()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[k]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(e.elem)
		return
	}

	e := &entry{key: k, value: value, expiresAt: time.Now().Add(c.ttl)}
	e.elem = c.order.PushFront(e)
	c.items[k] = e

	if len(c.items) > c.capacity {
		c.evictOldestLocked()
	}
}

func (c *Cache) evictOldestLocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*entry))
	c.evictions++
	if c.metrics != nil {
		c.metrics.CacheEvictions.Inc()
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.items, e.key)
}

// Stats reports cache hit/miss/eviction counters and current size,
// surfaced by the /cache/stats introspection endpoint.
type Stats struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.items),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
