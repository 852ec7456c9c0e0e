package cache

import (
	"sync"
	"time"
)

// Cache is a typed in-memory store with per-entry insertion timestamps.
// Values are replaced whole under the lock; callers never mutate a stored
// value in place.
type Cache[T interface{}] struct {
	cache map[string]entry[T]
	mutex sync.RWMutex
}

type entry[T interface{}] struct {
	value     T
	createdAt time.Time
}

func New[T interface{}]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]entry[T]),
	}
}

func (c *Cache[T]) Get(key string) T {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.cache[key]
	if ok {
		return e.value
	}
	var zero T
	return zero
}

// Store inserts or replaces the value for key. The insertion timestamp of an
// existing entry is preserved so that updates don't extend its lifetime.
func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	createdAt := time.Now()
	if e, ok := c.cache[key]; ok {
		createdAt = e.createdAt
	}
	c.cache[key] = entry[T]{value: value, createdAt: createdAt}
}

// GetOrStore returns the existing value for key if present, otherwise stores
// value. The second return is true when an entry already existed.
func (c *Cache[T]) GetOrStore(key string, value T) (T, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if e, ok := c.cache[key]; ok {
		return e.value, true
	}
	c.cache[key] = entry[T]{value: value, createdAt: time.Now()}
	return value, false
}

func (c *Cache[T]) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
}

func (c *Cache[T]) GetKeys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[T]) Values() []T {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	values := make([]T, 0, len(c.cache))
	for _, e := range c.cache {
		values = append(values, e.value)
	}
	return values
}

func (c *Cache[T]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

func (c *Cache[T]) CreatedAt(key string) (time.Time, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.cache[key]
	return e.createdAt, ok
}

// ExpireBefore removes every entry inserted before the cutoff and returns the
// removed values so the caller can release their resources.
func (c *Cache[T]) ExpireBefore(cutoff time.Time) []T {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var expired []T
	for k, e := range c.cache {
		if e.createdAt.Before(cutoff) {
			expired = append(expired, e.value)
			delete(c.cache, k)
		}
	}
	return expired
}
