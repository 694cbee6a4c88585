// internal/cache/lru.go
//
// Tiny generic LRU used by the in-process site cache.  Not safe for
// concurrent use; callers guard it with their own mutex so they can
// combine lookups with expiry checks atomically.
package cache

import "container/list"

// LRU is a least-recently-used map bounded to a fixed capacity.
type LRU[K comparable, V any] struct {
	cap     int
	ll      *list.List
	dict    map[K]*list.Element
	onEvict func(K, V)
}

type pair[K comparable, V any] struct {
	key K
	val V
}

// New returns an LRU with the given capacity.  Panics on cap < 1.
// onEvict, when non-nil, runs for entries dropped by capacity pressure
// (not for explicit Remove calls).
func New[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU[K, V]{
		cap:     capacity,
		ll:      list.New(),
		dict:    make(map[K]*list.Element, capacity),
		onEvict: onEvict,
	}
}

// Get retrieves a value and marks it MRU.
func (c *LRU[K, V]) Get(key K) (val V, ok bool) {
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Peek retrieves a value without touching recency.
func (c *LRU[K, V]) Peek(key K) (val V, ok bool) {
	if ele, hit := c.dict[key]; hit {
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// Add inserts or updates a value and marks it MRU.
func (c *LRU[K, V]) Add(key K, val V) {
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair[K, V]{key, val}
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(pair[K, V]{key, val})
	c.dict[key] = ele
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		p := last.Value.(pair[K, V])
		delete(c.dict, p.key)
		if c.onEvict != nil {
			c.onEvict(p.key, p.val)
		}
	}
}

// Remove deletes key.  It reports whether the key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	ele, hit := c.dict[key]
	if !hit {
		return false
	}
	c.ll.Remove(ele)
	delete(c.dict, key)
	return true
}

// Range calls fn from least to most recently used until fn returns false.
// fn must not mutate the LRU.
func (c *LRU[K, V]) Range(fn func(K, V) bool) {
	for ele := c.ll.Back(); ele != nil; ele = ele.Prev() {
		p := ele.Value.(pair[K, V])
		if !fn(p.key, p.val) {
			return
		}
	}
}

// Len reports current size.
func (c *LRU[K, V]) Len() int { return c.ll.Len() }
