package cache

import (
	"container/list"
	"sync"
)

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// LRUCache is a bounded map that drops the least recently used entry when
// full. The evict callback runs after the lock is released, so it may block
// (closing a client runtime, for instance) without stalling other callers.
type LRUCache[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List
	mu       sync.Mutex
	onEvict  func(key K, value V)
}

// NewLRUCache panics on a non-positive capacity.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// SetEvictCallback registers fn for entries dropped by capacity, Remove or
// Clear.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get marks key as recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

// GetOrCreate returns the entry under key, creating it with create when
// absent. create runs under the cache lock and must not call back into the
// cache. The boolean reports whether the entry was created.
func (c *LRUCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, bool, error) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		v := elem.Value.(*lruEntry[K, V]).value
		c.mu.Unlock()
		return v, false, nil
	}

	v, err := create()
	if err != nil {
		c.mu.Unlock()
		var zero V
		return zero, false, err
	}
	evicted := c.insert(key, v)
	fn := c.onEvict
	c.mu.Unlock()

	c.fire(fn, evicted)
	return v, true, nil
}

// Remove drops key and runs the evict callback for it.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	entry := c.unlink(elem)
	fn := c.onEvict
	c.mu.Unlock()

	c.fire(fn, []*lruEntry[K, V]{entry})
	return entry.value, true
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear empties the cache, running the evict callback for every entry.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	entries := make([]*lruEntry[K, V], 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		entries = append(entries, e.Value.(*lruEntry[K, V]))
	}
	c.items = make(map[K]*list.Element)
	c.order.Init()
	fn := c.onEvict
	c.mu.Unlock()

	c.fire(fn, entries)
}

// insert must be called with the lock held; it returns evicted entries.
func (c *LRUCache[K, V]) insert(key K, value V) []*lruEntry[K, V] {
	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})

	var evicted []*lruEntry[K, V]
	for c.order.Len() > c.capacity {
		evicted = append(evicted, c.unlink(c.order.Back()))
	}
	return evicted
}

// unlink must be called with the lock held.
func (c *LRUCache[K, V]) unlink(elem *list.Element) *lruEntry[K, V] {
	c.order.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	return entry
}

func (c *LRUCache[K, V]) fire(fn func(K, V), entries []*lruEntry[K, V]) {
	if fn == nil {
		return
	}
	for _, e := range entries {
		fn(e.key, e.value)
	}
}
