package cache

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

const numShards = 16

// Quote is the last known market state of one symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	Timestamp int64   `json:"timestamp"` // unix ms of the producing tick
}

// ShardedPriceCache holds the last quote per symbol, sharded to keep
// readers off the writer's lock.
type ShardedPriceCache struct {
	shards [numShards]*priceShard
	now    func() time.Time
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

// NewShardedPriceCache creates a new sharded cache.
func NewShardedPriceCache() *ShardedPriceCache {
	c := &ShardedPriceCache{now: time.Now}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{items: make(map[string]Quote)}
	}
	return c
}

func key(symbol string) string {
	return strings.ToUpper(symbol)
}

func (c *ShardedPriceCache) getShard(k string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(k))
	return c.shards[h.Sum32()%numShards]
}

// Set stores the quote for q.Symbol. A quote older than the stored one is
// ignored.
func (c *ShardedPriceCache) Set(q Quote) {
	k := key(q.Symbol)
	if q.Timestamp == 0 {
		q.Timestamp = c.now().UnixMilli()
	}
	shard := c.getShard(k)
	shard.mu.Lock()
	if prev, ok := shard.items[k]; !ok || prev.Timestamp <= q.Timestamp {
		shard.items[k] = q
	}
	shard.mu.Unlock()
}

// Get retrieves the last quote for a symbol.
func (c *ShardedPriceCache) Get(symbol string) (Quote, bool) {
	k := key(symbol)
	shard := c.getShard(k)
	shard.mu.RLock()
	q, ok := shard.items[k]
	shard.mu.RUnlock()
	return q, ok
}

// Price is the PriceFunc view of the cache.
func (c *ShardedPriceCache) Price(symbol string) (float64, bool) {
	q, ok := c.Get(symbol)
	if !ok || q.Price <= 0 {
		return 0, false
	}
	return q.Price, true
}

// GetWithAge retrieves the quote and how long ago it was produced.
func (c *ShardedPriceCache) GetWithAge(symbol string) (Quote, time.Duration, bool) {
	q, ok := c.Get(symbol)
	if !ok {
		return Quote{}, 0, false
	}
	return q, c.now().Sub(time.UnixMilli(q.Timestamp)), true
}

// Delete removes a symbol from the cache.
func (c *ShardedPriceCache) Delete(symbol string) {
	k := key(symbol)
	shard := c.getShard(k)
	shard.mu.Lock()
	delete(shard.items, k)
	shard.mu.Unlock()
}

// Len returns total items across all shards.
func (c *ShardedPriceCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// All returns every cached quote sorted by symbol.
func (c *ShardedPriceCache) All() []Quote {
	out := make([]Quote, 0, c.Len())
	for _, shard := range c.shards {
		shard.mu.RLock()
		for _, q := range shard.items {
			out = append(out, q)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Stale returns the symbols whose last quote is older than maxAge.
func (c *ShardedPriceCache) Stale(maxAge time.Duration) []string {
	cutoff := c.now().Add(-maxAge).UnixMilli()
	var out []string
	for _, shard := range c.shards {
		shard.mu.RLock()
		for _, q := range shard.items {
			if q.Timestamp < cutoff {
				out = append(out, q.Symbol)
			}
		}
		shard.mu.RUnlock()
	}
	sort.Strings(out)
	return out
}
