package cache

import (
	"bytes"
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds a MemoryCache created with size <= 0.
const DefaultMemoryEntries = 512

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a bounded in-process LRU. It is safe for concurrent use.
type MemoryCache struct {
	lru *lru.Cache[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache returns an LRU holding at most size entries.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	c, _ := lru.New[string, memoryEntry](size) // only errors if size <= 0
	return &MemoryCache{lru: c, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return bytes.Clone(e.data), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int { return c.lru.Len() }

var _ Cache = (*MemoryCache)(nil)
