package cache

import (
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is the read-cache contract used by retrieval paths.
type Cache[K comparable, V any] interface {
	Get(key K) (value V, ok bool)
	Add(key K, value V) (evicted bool)
	Remove(key K) bool
}

// LRU adapts hashicorp's expirable LRU to the Cache interface.
type LRU[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

func NewLRU[K comparable, V any](lru *expirable.LRU[K, V]) *LRU[K, V] {
	return &LRU[K, V]{lru: lru}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.lru.Add(key, value)
}

func (c *LRU[K, V]) Remove(key K) bool {
	return c.lru.Remove(key)
}
