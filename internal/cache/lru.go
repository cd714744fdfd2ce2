// internal/cache/lru.go
//
// Small LRU cache used by the session layer to hold one form controller per
// visitor and variant.  Safe for concurrent use.  An optional eviction hook
// lets callers release resources (Controller.Close) when an entry falls off
// the tail or is removed explicitly.
package cache

import (
	"container/list"
	"sync"
)

// LRU is a least-recently-used cache keyed by K.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	cap     int
	ll      *list.List
	dict    map[K]*list.Element
	onEvict func(K, V)
}

type pair[K comparable, V any] struct {
	key K
	val V
}

// New returns an LRU with the given capacity.  Panics on cap < 1.  onEvict
// may be nil; it runs outside the cache lock.
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
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair[K, V]).val, true
	}
	return val, false
}

// GetOrAdd returns the cached value for key, or stores and returns the
// result of mk.  mk runs under the cache lock and must not call back into
// the cache.
func (c *LRU[K, V]) GetOrAdd(key K, mk func() V) V {
	c.mu.Lock()
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		v := ele.Value.(pair[K, V]).val
		c.mu.Unlock()
		return v
	}
	v := mk()
	evicted, ok := c.insertLocked(key, v)
	c.mu.Unlock()
	if ok && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.val)
	}
	return v
}

// Add inserts or updates a value.
func (c *LRU[K, V]) Add(key K, val V) {
	c.mu.Lock()
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair[K, V]{key, val}
		c.ll.MoveToFront(ele)
		c.mu.Unlock()
		return
	}
	evicted, ok := c.insertLocked(key, val)
	c.mu.Unlock()
	if ok && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.val)
	}
}

// Remove deletes key, running the eviction hook when it was present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	ele, hit := c.dict[key]
	if hit {
		c.ll.Remove(ele)
		delete(c.dict, key)
	}
	c.mu.Unlock()
	if hit && c.onEvict != nil {
		p := ele.Value.(pair[K, V])
		c.onEvict(p.key, p.val)
	}
}

// Purge empties the cache, running the eviction hook for every entry.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	var all []pair[K, V]
	for e := c.ll.Front(); e != nil; e = e.Next() {
		all = append(all, e.Value.(pair[K, V]))
	}
	c.ll.Init()
	c.dict = make(map[K]*list.Element, c.cap)
	c.mu.Unlock()
	if c.onEvict != nil {
		for _, p := range all {
			c.onEvict(p.key, p.val)
		}
	}
}

// Len reports current size.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[K, V]) insertLocked(key K, val V) (pair[K, V], bool) {
	c.dict[key] = c.ll.PushFront(pair[K, V]{key, val})
	if c.ll.Len() <= c.cap {
		return pair[K, V]{}, false
	}
	last := c.ll.Back()
	c.ll.Remove(last)
	p := last.Value.(pair[K, V])
	delete(c.dict, p.key)
	return p, true
}
