package subscription

import "sync"

// Collection is an insertion-ordered set of entities keyed by id. Applying
// the same entity twice replaces it in place, which makes handlers that
// build lists from events safe under redelivery.
type Collection[T any] struct {
	mu    sync.RWMutex
	id    func(T) string
	items []T
	index map[string]int
}

func NewCollection[T any](id func(T) string) *Collection[T] {
	return &Collection[T]{id: id, index: make(map[string]int)}
}

// Upsert inserts v, or replaces the entity with the same id. It reports
// whether v was new. Entities with an empty id are ignored.
func (c *Collection[T]) Upsert(v T) bool {
	key := c.id(v)
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upsert(key, v)
}

func (c *Collection[T]) upsert(key string, v T) bool {
	if i, ok := c.index[key]; ok {
		c.items[i] = v
		return false
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, v)
	return true
}

// Update applies fn to the entity with id, if present.
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items[i] = fn(c.items[i])
	return true
}

// Remove deletes the entity with id.
func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.id(c.items[j])] = j
	}
	return true
}

// Replace swaps the whole content, as after a re-fetch on reconnect.
// Duplicates in items collapse onto their last occurrence.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.index = make(map[string]int, len(items))
	for _, v := range items {
		if key := c.id(v); key != "" {
			c.upsert(key, v)
		}
	}
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Items returns a copy of the entities in insertion order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
