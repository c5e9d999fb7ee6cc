package fakes

import (
	"errors"
	"strings"
	"sync"
	"time"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

// ErrInjectedWrite is returned by Cache.Set when a failure is injected.
var ErrInjectedWrite = errors.New("injected cache write failure")

// Cache wraps a real ipsum.TTLCache and can be told to fail writes.
// FailPrefix limits the failure to keys with that prefix; empty fails all.
type Cache struct {
	*ipsum.TTLCache[any]

	mu         sync.Mutex
	FailSet    bool
	FailPrefix string
	SetCalls   int
}

func NewCache(opts ...ipsum.CacheOption) *Cache {
	return &Cache{TTLCache: ipsum.NewTTLCache[any](opts...)}
}

func (c *Cache) Set(key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	c.SetCalls++
	fail := c.FailSet && strings.HasPrefix(key, c.FailPrefix)
	c.mu.Unlock()
	if fail {
		return ErrInjectedWrite
	}
	return c.TTLCache.Set(key, v, ttl)
}

// Fail toggles write failures for keys starting with prefix.
func (c *Cache) Fail(on bool, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FailSet = on
	c.FailPrefix = prefix
}
