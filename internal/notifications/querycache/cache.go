// Package querycache holds the cached results of named queries. Entries are
// refetched on invalidation and can be overwritten directly when a push event
// carries the new value.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the current value of a query.
type Fetcher func(ctx context.Context) (any, error)

// Entry is the cached state of one query.
type Entry struct {
	Value     any
	UpdatedAt time.Time
	// Stale is set by Invalidate and cleared by the next successful fetch or Set.
	Stale bool
	// Err is the error of the last failed fetch, cleared on success.
	Err error
}

// Cache is safe for concurrent use.
type Cache struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	entries  map[string]*Entry
	fetchers map[string]Fetcher
	nextSub  int
	subs     map[int]func(key string, value any)

	flight singleflight.Group
}

// New creates an empty Cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*Entry),
		fetchers: make(map[string]Fetcher),
		subs:     make(map[int]func(string, any)),
	}
}

// Register sets the fetcher used to load key.
func (c *Cache) Register(key string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = fetch
}

// Get returns the cached value of key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.Value == nil {
		return nil, false
	}
	return e.Value, true
}

// Entry returns a copy of the cached state of key.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetAs returns the cached value of key as a T.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Set overwrites the cached value of key without fetching.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = &Entry{Value: value, UpdatedAt: c.now()}
	c.mu.Unlock()

	c.publish(key, value)
}

// Fetch loads key through its fetcher and caches the result. Concurrent
// fetches of the same key share one call.
func (c *Cache) Fetch(ctx context.Context, key string) (any, error) {
	c.mu.RLock()
	fetch, ok := c.fetchers[key]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for query %q", key)
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		value, err := fetch(ctx)

		c.mu.Lock()
		e, exists := c.entries[key]
		if !exists {
			e = &Entry{}
			c.entries[key] = e
		}
		if err != nil {
			e.Err = err
		} else {
			*e = Entry{Value: value, UpdatedAt: c.now()}
		}
		c.mu.Unlock()

		if err != nil {
			return nil, err
		}
		c.publish(key, value)
		return value, nil
	})
	if shared {
		c.logger.Debug("joined in-flight query fetch", "query", key)
	}
	if err != nil {
		c.logger.Debug("query fetch failed", "query", key, "error", err)
		return nil, err
	}
	return v, nil
}

// Invalidate marks keys stale and refetches those with a fetcher. Every key
// is attempted; the errors are joined.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.Stale = true
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, key := range keys {
		c.mu.RLock()
		_, ok := c.fetchers[key]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		if _, err := c.Fetch(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers fn to be called after every Set and successful fetch.
// The returned function removes the subscription.
func (c *Cache) Subscribe(fn func(key string, value any)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cache) publish(key string, value any) {
	c.mu.RLock()
	subs := make([]func(string, any), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(key, value)
	}
}
