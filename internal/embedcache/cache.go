// Package embedcache provides a bounded LRU cache for embedding vectors.
package embedcache

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
const DefaultCapacity = 10000

// Cache is a bounded LRU keyed by a hash of model and text. Both lookups
// and stores refresh recency. Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[[32]byte, []float32]
}

// New creates a cache holding up to capacity entries.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.New[[32]byte, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: inner}, nil
}

func cacheKey(text, model string) [32]byte {
	return sha256.Sum256([]byte(model + ":" + text))
}

// Get returns the cached vector for (text, model), refreshing its recency.
func (c *Cache) Get(text, model string) ([]float32, bool) {
	return c.lru.Get(cacheKey(text, model))
}

// Put stores a vector for (text, model), evicting the least recently used
// entry when full.
func (c *Cache) Put(text, model string, vector []float32) {
	c.lru.Add(cacheKey(text, model), vector)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
