package ipsum

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCacheClosed is returned by Set once the cache has been closed.
	ErrCacheClosed = errors.New("cache is closed")
	// ErrEmptyKey is returned by Set for an empty key.
	ErrEmptyKey = errors.New("cache key is empty")
)

// Cache is the contract shared by the admission controller and the corpus
// cache. Reads report presence with a bool; only writes can fail.
//
// A ttl <= 0 passed to Set means the entry never expires.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration) error
	Take(key string) (any, bool)
}

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

// ttlItem holds a cached value and its absolute expiration.
// A zero exp means the item never expires.
type ttlItem[T any] struct {
	v   T
	exp time.Time
}

func (it ttlItem[T]) expired(now time.Time) bool {
	return !it.exp.IsZero() && !now.Before(it.exp)
}

// TTLCache is a goroutine-safe in-memory key/value cache where every entry
// carries its own optional time-to-live.
//
//   - Concurrency: protected by a single mutex; safe for concurrent use.
//   - Expiration: entries expire lazily on Get/Take. An optional background
//     sweep removes entries nobody reads again.
//   - Capacity: unbounded. Entries leave only by expiry, Take, or overwrite.
//   - Zero value: not ready for use; call NewTTLCache.
type TTLCache[T any] struct {
	mu     sync.Mutex
	data   map[string]ttlItem[T]
	now    Clock
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CacheOption configures a TTLCache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	clock Clock
	sweep time.Duration
}

// WithClock replaces time.Now as the cache's time source.
func WithClock(c Clock) CacheOption {
	return func(o *cacheOptions) { o.clock = c }
}

// WithSweepInterval starts a background goroutine that drops expired
// entries every d. A non-positive d disables the sweep.
func WithSweepInterval(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.sweep = d }
}

// NewTTLCache constructs an empty TTLCache. Call Close to stop the sweep
// goroutine when one was requested.
func NewTTLCache[T any](opts ...CacheOption) *TTLCache[T] {
	o := cacheOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	c := &TTLCache[T]{data: make(map[string]ttlItem[T]), now: o.clock}
	if o.sweep > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.sweepLoop(ctx, o.sweep)
	}
	return c
}

// Get returns the cached value for key k if present and not expired.
// Expired entries are removed lazily during this call.
func (c *TTLCache[T]) Get(k string) (T, bool) {
	var zero T
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.data[k]
	if !ok {
		return zero, false
	}
	if it.expired(now) {
		delete(c.data, k)
		return zero, false
	}
	return it.v, true
}

// Set inserts or replaces the value for key k. The entry expires ttl after
// this call; ttl <= 0 stores it without expiry.
func (c *TTLCache[T]) Set(k string, v T, ttl time.Duration) error {
	if k == "" {
		return ErrEmptyKey
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	it := ttlItem[T]{v: v}
	if ttl > 0 {
		it.exp = now.Add(ttl)
	}
	c.data[k] = it
	return nil
}

// Take atomically returns and removes the live value stored under k.
func (c *TTLCache[T]) Take(k string) (T, bool) {
	var zero T
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.data[k]
	if !ok {
		return zero, false
	}
	delete(c.data, k)
	if it.expired(now) {
		return zero, false
	}
	return it.v, true
}

// Len reports the number of stored entries, expired ones not yet swept included.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// DeleteExpired removes every expired entry and returns how many were dropped.
func (c *TTLCache[T]) DeleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, it := range c.data {
		if it.expired(now) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Close stops the sweep goroutine and makes further Set calls fail with
// ErrCacheClosed. Reads keep working. Close is safe to call more than once.
func (c *TTLCache[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *TTLCache[T]) sweepLoop(ctx context.Context, every time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.DeleteExpired()
		}
	}
}
