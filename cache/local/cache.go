// Package local implements in-process cache and pub/sub backends for
// single-node deployments and tests.
package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

const defaultGCInterval = 30 * time.Second

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// item is one key: a string or a list. A zero expireAt never expires.
type item struct {
	value    string
	list     []string
	isList   bool
	expireAt time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && now.After(it.expireAt)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// LocalCache keeps strings and lists in one keyspace, like Redis.
type LocalCache struct {
	mu        sync.Mutex
	items     map[string]*item
	stopGC    chan struct{}
	closeOnce sync.Once
}

// NewCache creates a LocalCache and starts its expiry sweeper.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = defaultGCInterval
	}
	c := &LocalCache{
		items:  make(map[string]*item),
		stopGC: make(chan struct{}),
	}
	go c.sweep(interval)
	return c, nil
}

// Close stops the sweeper. It may be called more than once.
func (c *LocalCache) Close() error {
	c.closeOnce.Do(func() { close(c.stopGC) })
	return nil
}

func (c *LocalCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.mu.Lock()
			for k, it := range c.items {
				if it.expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopGC:
			return
		}
	}
}

// live returns the unexpired item at key. Caller holds c.mu.
func (c *LocalCache) live(key string) (*item, bool) {
	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if it.expired(time.Now()) {
		delete(c.items, key)
		return nil, false
	}
	return it, true
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.live(key)
	if !ok || it.isList {
		return "", ErrNotFound
	}
	return it.value, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.items[key] = &item{value: value, expireAt: expiry(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

// PushCapped prepends value, keeps the newest max entries (all when max <= 0)
// and resets the ttl. A string stored at key is replaced.
func (c *LocalCache) PushCapped(_ context.Context, key, value string, max int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.live(key)
	if !ok || !it.isList {
		it = &item{isList: true}
		c.items[key] = it
	}
	it.list = append([]string{value}, it.list...)
	if max > 0 && int64(len(it.list)) > max {
		it.list = it.list[:max]
	}
	it.expireAt = expiry(ttl)
	return nil
}

// bounds converts Redis-style (possibly negative) indexes into a slice range.
func bounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += n
	}
	if stop >= n {
		stop = n - 1
	}
	if start >= n || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}

// LRange returns a copy of the list slice. A missing key is an empty list.
func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.live(key)
	if !ok || !it.isList {
		return nil, nil
	}
	from, to, ok := bounds(int64(len(it.list)), start, stop)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), it.list[from:to+1]...), nil
}
