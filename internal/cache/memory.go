// ABOUTME: Thread-safe TTL cache of tool replies with size-bounded eviction.
// ABOUTME: Oldest entries are evicted first; a background goroutine drops expired ones.

package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// memoryEntry stores the value, write time and list element for a cached key.
type memoryEntry struct {
	value     json.RawMessage
	timestamp time.Time
	element   *list.Element
}

// Memory is an in-process Cache. It uses a doubly-linked list to maintain
// insertion order for O(1) eviction.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// NewMemory creates a memory cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func NewMemory(ttl time.Duration, maxSize int) *Memory {
	c := &Memory{
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get implements Cache.
func (c *Memory) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.timestamp) >= c.ttl {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Cache. If the cache is at capacity the oldest entry is
// evicted to make room.
func (c *Memory) Set(_ context.Context, key string, value json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, exists := c.entries[key]; exists {
		entry.value = value
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &memoryEntry{value: value, timestamp: now, element: elem}
	return nil
}

// Invalidate implements Cache.
func (c *Memory) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*memoryEntry)
	c.order.Init()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Memory) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (c *Memory) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Memory) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
	return nil
}
