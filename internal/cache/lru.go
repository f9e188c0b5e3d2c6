// Package cache provides a small in-process LRU cache with TTL,
// used for spot prices and other provider responses that are safe to
// share process-wide.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key     K
	value   V
	staleAt time.Time
}

// LRU holds at most capacity entries, evicting the least recently
// used one on overflow. Entries older than the TTL miss on read and
// are dropped lazily.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[K]*list.Element
	order    *list.List
}

func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if time.Now().After(e.staleAt) {
		c.drop(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		elem.Value = &entry[K, V]{key: key, value: value, staleAt: time.Now().Add(c.ttl)}
		c.order.MoveToFront(elem)
		return
	}

	c.index[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, staleAt: time.Now().Add(c.ttl)})
	for c.order.Len() > c.capacity {
		c.drop(c.order.Back())
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge walks the whole cache and drops every stale entry, returning
// how many were removed. Reads already drop stale entries, so this
// only matters for keys that stop being requested.
func (c *LRU[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[K, V]).staleAt) {
			c.drop(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRU[K, V]) drop(elem *list.Element) {
	delete(c.index, elem.Value.(*entry[K, V]).key)
	c.order.Remove(elem)
}
