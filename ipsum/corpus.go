package ipsum

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEmptyCatalog means the store returned no categories (unseeded database).
	ErrEmptyCatalog = errors.New("no types were found in the database")
	// ErrEmptyCorpus means the store returned no words for the requested categories.
	ErrEmptyCorpus = errors.New("no words were found in the database")
)

// CorpusStore is the backing store queried on a cache miss.
type CorpusStore interface {
	Categories(ctx context.Context) ([]Category, error)
	Words(ctx context.Context, typeIDs []int) ([]Word, error)
}

// CorpusCache memoizes category and word lookups in a Cache without expiry.
// Entries live for the life of the cache; there is no invalidation.
//
// Concurrent misses for the same key share one store query, which outlives
// the cancellation of whichever caller started it. A failed
// cache write is logged and the freshly fetched rows are still returned.
// Returned slices and maps are copies; callers may modify them.
type CorpusCache struct {
	cache Cache
	store CorpusStore
	log   *log.Logger
	group singleflight.Group
}

// CorpusOption configures a CorpusCache.
type CorpusOption func(*CorpusCache)

// WithCorpusLogger sets the logger used for cache write failures.
func WithCorpusLogger(lg *log.Logger) CorpusOption {
	return func(c *CorpusCache) { c.log = lg }
}

// NewCorpusCache builds a read-through cache over store.
func NewCorpusCache(c Cache, store CorpusStore, opts ...CorpusOption) *CorpusCache {
	if c == nil {
		panic("corpus cache requires a cache")
	}
	if store == nil {
		panic("corpus cache requires a store")
	}
	cc := &CorpusCache{cache: c, store: store, log: log.Default()}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// CategoryMap returns every category row and the derived name -> type id map.
func (c *CorpusCache) CategoryMap(ctx context.Context) ([]Category, map[string]int, error) {
	if v, ok := c.cache.Get(CategoryRowsKey); ok {
		if rows, ok := v.([]Category); ok {
			byName, ok := c.cachedNameMap()
			if !ok {
				byName = categoryNames(rows)
				c.put(CategoryMapKey, byName)
			}
			return slices.Clone(rows), maps.Clone(byName), nil
		}
	}

	v, err := c.shared(ctx, CategoryRowsKey, func(ctx context.Context) (any, error) {
		rows, err := c.store.Categories(ctx)
		if err != nil {
			return nil, fmt.Errorf("load types: %w", err)
		}
		if len(rows) == 0 {
			return nil, ErrEmptyCatalog
		}
		c.put(CategoryRowsKey, rows)
		c.put(CategoryMapKey, categoryNames(rows))
		return rows, nil
	})
	if err != nil {
		return nil, nil, err
	}
	rows := v.([]Category)
	return slices.Clone(rows), categoryNames(rows), nil
}

// Words returns the word rows whose type id is in typeIDs. The id set is
// canonicalized, so order and duplicates do not matter.
func (c *CorpusCache) Words(ctx context.Context, typeIDs []int) ([]Word, error) {
	ids := CanonicalIDs(typeIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no type ids requested", ErrEmptyCorpus)
	}
	key := WordsKey(ids)
	if v, ok := c.cache.Get(key); ok {
		if rows, ok := v.([]Word); ok {
			return slices.Clone(rows), nil
		}
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		rows, err := c.store.Words(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load words: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: type ids %v", ErrEmptyCorpus, ids)
		}
		c.put(key, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Word)), nil
}

// shared runs fetch once per key for all concurrent callers. The fetch is
// detached from any single caller's cancellation; each caller still returns
// as soon as its own ctx is done.
func (c *CorpusCache) shared(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) { return fetch(detached) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (c *CorpusCache) cachedNameMap() (map[string]int, bool) {
	v, ok := c.cache.Get(CategoryMapKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]int)
	return m, ok
}

// put stores v without expiry. Failures only cost a repeated store query.
func (c *CorpusCache) put(key string, v any) {
	if err := c.cache.Set(key, v, 0); err != nil {
		c.log.Warn("corpus cache write failed", "key", key, "err", err)
	}
}

func categoryNames(rows []Category) map[string]int {
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[r.Name] = r.TypeID
	}
	return m
}
